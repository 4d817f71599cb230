package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"termweave/internal/config"
	"termweave/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and their outcomes",
	Long: `Display recent orchestration runs from the history store, with
per-execution outcomes for the most recent run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 5, "Number of runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.History.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Run 'termweave run <plan.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate history store: %w", err)
	}

	runs, err := db.RecentRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No run history. Run 'termweave run <plan.yaml>' to start.")
		return nil
	}

	fmt.Println("Recent runs:")
	for _, run := range runs {
		elapsed := formatDuration(time.Since(run.StartedAt))
		statusColor := color.New(color.FgYellow)
		switch run.Status {
		case state.RunCompleted:
			statusColor = color.New(color.FgGreen)
		case state.RunAborted:
			statusColor = color.New(color.FgRed)
		}
		fmt.Printf("  %s  %s  %s ago  ", run.ID[:8], run.Plan, elapsed)
		statusColor.Println(string(run.Status))
	}

	// Show outcome detail for the newest run.
	outcomes, err := db.RunOutcomes(runs[0].ID)
	if err != nil {
		return fmt.Errorf("query outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		return nil
	}

	fmt.Printf("\nLatest run (%s):\n", runs[0].ID[:8])
	for _, o := range outcomes {
		line := fmt.Sprintf("  cmd-%d on agent-%d: %s (exit %d)", o.CommandID, o.AgentID, o.Result, o.ExitCode)
		switch o.Result {
		case "completed":
			color.Green(line)
		case "failed":
			if o.FailureReason != "" {
				line += " " + o.FailureReason
			}
			color.Red(line)
		default:
			color.Yellow(line)
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
