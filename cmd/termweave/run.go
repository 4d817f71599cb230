package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"termweave/internal/config"
	"termweave/internal/exec"
	"termweave/internal/orchestrator"
	"termweave/internal/runtime"
	"termweave/internal/state"
	"termweave/pkg/models"
)

var (
	runWatch      bool
	runApproveAll bool
	runHistoryDB  string
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a command plan",
	Long: `Load a YAML plan, spawn its agents, queue its commands, and drive
them to completion with the simulated executor.

The plan's dependency graph is validated before anything is queued;
cycles and references to unknown commands are rejected. Commands without
the approved flag stay queued until approved (see --approve-all).

With --watch, the plan is re-executed every time the file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run the plan when the file changes")
	runCmd.Flags().BoolVar(&runApproveAll, "approve-all", false, "Approve every queued command")
	runCmd.Flags().StringVar(&runHistoryDB, "history-db", "", "Path to the history database (default from config)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := runHistoryDB
	if dbPath == "" {
		dbPath = cfg.History.DBPath
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate history store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := executePlan(ctx, cfg, db, planPath); err != nil {
		return err
	}
	if !runWatch {
		return nil
	}
	return watchPlan(ctx, cfg, db, planPath)
}

// watchPlan re-executes the plan on every write to the file until the
// context is cancelled.
func watchPlan(ctx context.Context, cfg *config.Config, db *state.DB, planPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(planPath)); err != nil {
		return fmt.Errorf("watch %s: %w", planPath, err)
	}

	color.New(color.Faint).Printf("watching %s for changes\n", planPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(planPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire several events per save; let them settle.
			time.Sleep(100 * time.Millisecond)
			if err := executePlan(ctx, cfg, db, planPath); err != nil {
				color.Red("run failed: %v", err)
			}
			color.New(color.Faint).Printf("watching %s for changes\n", planPath)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			color.Red("watch error: %v", err)
		}
	}
}

// executePlan runs one plan file to completion or stall.
func executePlan(ctx context.Context, cfg *config.Config, db *state.DB, planPath string) error {
	plan, commands, err := LoadPlan(planPath)
	if err != nil {
		return err
	}
	agentCaps, err := plan.AgentCapabilities()
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxAgents:     cfg.Limits.MaxAgents,
		MaxTerminals:  cfg.Limits.MaxTerminals,
		MaxQueueSize:  cfg.Limits.MaxQueueSize,
		MaxExecutions: cfg.Limits.MaxExecutions,
	})
	orch.SetApprovalConfig(orchestrator.ApprovalConfig{
		MaxRequests:     cfg.Approval.MaxRequests,
		MaxPerAgent:     cfg.Approval.MaxPerAgent,
		Timeout:         cfg.Approval.Timeout,
		MaxAuditEntries: 256,
	})

	sim := exec.NewSimulator(cfg.Simulator.Latency, cfg.Runtime.EventBuffer)
	rt := runtime.New(orch, sim, runtime.Config{
		TickInterval: cfg.Runtime.TickInterval,
		EventBuffer:  cfg.Runtime.EventBuffer,
	})
	defer rt.Close()

	runID, err := db.BeginRun(plan.Name)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	recorderDone := make(chan struct{})
	go recordEvents(db, runID, rt, recorderDone)

	for _, caps := range agentCaps {
		if _, err := rt.SpawnAgent(caps); err != nil {
			return fmt.Errorf("spawn agent: %w", err)
		}
	}
	for _, c := range commands {
		id, err := rt.QueueCommand(c)
		if err != nil {
			return fmt.Errorf("queue command: %w", err)
		}
		if runApproveAll {
			if err := rt.ApproveCommand(id); err != nil {
				return fmt.Errorf("approve command: %w", err)
			}
		}
	}

	color.New(color.Bold).Printf("running %s: %d commands, %d agents\n", plan.Name, len(commands), len(agentCaps))

	status := driveUntilDrained(ctx, rt, len(commands))

	if err := db.FinishRun(runID, status); err != nil {
		color.Red("record run end: %v", err)
	}

	rt.Close()
	<-recorderDone

	printSummary(rt, len(commands), status)
	if status != state.RunCompleted {
		return fmt.Errorf("plan did not drain: %d of %d commands completed",
			len(rt.Snapshot().CompletedCommands), len(commands))
	}
	return nil
}

// driveUntilDrained ticks the runtime until every command completes,
// progress stops, or the context is cancelled.
func driveUntilDrained(ctx context.Context, rt *runtime.Runtime, total int) state.RunStatus {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	stalled := 0
	for {
		select {
		case <-ctx.Done():
			return state.RunAborted
		case <-ticker.C:
			result := rt.Tick(ctx)
			snap := rt.Snapshot()

			if len(snap.CompletedCommands) >= total {
				return state.RunCompleted
			}
			if result.Assigned == 0 && result.Started == 0 && result.Completions == 0 && snap.ActiveExecutions == 0 {
				stalled++
				if stalled >= 20 {
					return state.RunAborted
				}
			} else {
				stalled = 0
			}
		}
	}
}

// recordEvents consumes the runtime event stream, printing progress and
// persisting execution outcomes.
func recordEvents(db *state.DB, runID string, rt *runtime.Runtime, done chan struct{}) {
	defer close(done)
	for ev := range rt.Events() {
		switch ev.Type {
		case runtime.EventExecutionStarted:
			color.New(color.FgCyan).Printf("  %s started on %s (%s)\n", ev.CommandID, ev.AgentID, ev.ExecutionID)
		case runtime.EventExecutionCompleted:
			color.Green("  %s completed (exit %d)", ev.CommandID, ev.ExitCode)
			recordOutcome(db, runID, ev, "completed")
		case runtime.EventExecutionFailed:
			color.Red("  %s failed (exit %d): %s", ev.CommandID, ev.ExitCode, ev.Message)
			recordOutcome(db, runID, ev, "failed")
		case runtime.EventExecutionCancelled:
			color.Yellow("  %s cancelled", ev.CommandID)
			recordOutcome(db, runID, ev, "cancelled")
		}
	}
}

func recordOutcome(db *state.DB, runID string, ev runtime.Event, result string) {
	err := db.RecordOutcome(state.Outcome{
		RunID:         runID,
		ExecutionID:   uint64(ev.ExecutionID),
		AgentID:       uint64(ev.AgentID),
		CommandID:     uint64(ev.CommandID),
		Result:        result,
		ExitCode:      ev.ExitCode,
		FailureReason: ev.Message,
		EndedAt:       ev.Timestamp,
	})
	if err != nil {
		color.Red("record outcome: %v", err)
	}
}

func printSummary(rt *runtime.Runtime, total int, status state.RunStatus) {
	stats := rt.Stats()
	snap := rt.Snapshot()

	fmt.Println()
	if status == state.RunCompleted {
		color.Green("done: %d/%d commands completed", len(snap.CompletedCommands), total)
	} else {
		color.Yellow("stopped: %d/%d commands completed", len(snap.CompletedCommands), total)
		for id, agentState := range snap.AgentStates {
			if agentState == models.AgentFailed {
				color.Red("  %s ended failed", id)
			}
		}
	}
	fmt.Printf("  executions: %d completed, %d failed, %d cancelled\n", stats.Completed, stats.Failed, stats.Cancelled)
}
