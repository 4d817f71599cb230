package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	// RunActive means the run is still in progress.
	RunActive RunStatus = "active"
	// RunCompleted means the run drained its plan.
	RunCompleted RunStatus = "completed"
	// RunAborted means the run stopped before draining.
	RunAborted RunStatus = "aborted"
)

// Run is one recorded orchestration run.
type Run struct {
	// ID is the run's UUID.
	ID string
	// Plan names the plan that was executed.
	Plan string
	// StartedAt is when the run began.
	StartedAt time.Time
	// FinishedAt is when the run ended, nil while active.
	FinishedAt *time.Time
	// Status is the run's lifecycle state.
	Status RunStatus
}

// Outcome is one recorded execution ending within a run.
type Outcome struct {
	// RunID is the run the execution belonged to.
	RunID string
	// ExecutionID is the orchestrator's execution id.
	ExecutionID uint64
	// AgentID is the agent that ran the command.
	AgentID uint64
	// CommandID is the command that ran.
	CommandID uint64
	// Result classifies the ending (completed, failed, cancelled).
	Result string
	// ExitCode is the reported exit code.
	ExitCode int
	// FailureReason describes a failure, empty otherwise.
	FailureReason string
	// EndedAt is when the execution ended.
	EndedAt time.Time
}

// BeginRun records the start of a run and returns its UUID.
func (db *DB) BeginRun(plan string) (string, error) {
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO runs (id, plan, started_at, status) VALUES (?, ?, ?, ?)
	`, id, plan, formatTime(time.Now()), string(RunActive))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun records the end of a run.
func (db *DB) FinishRun(runID string, status RunStatus) error {
	result, err := db.Exec(`
		UPDATE runs SET finished_at = ?, status = ? WHERE id = ?
	`, formatTime(time.Now()), string(status), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// RecordOutcome stores one execution ending for a run.
func (db *DB) RecordOutcome(o Outcome) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO outcomes
			(run_id, execution_id, agent_id, command_id, outcome, exit_code, failure_reason, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.ExecutionID, o.AgentID, o.CommandID, o.Result, o.ExitCode, o.FailureReason, formatTime(o.EndedAt))
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RecentRuns returns the most recently started runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, plan, started_at, finished_at, status
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
			status     string
		)
		if err := rows.Scan(&run.ID, &run.Plan, &startedAt, &finishedAt, &status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, err = parseTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		run.FinishedAt = parseNullableTime(finishedAt)
		run.Status = RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunOutcomes returns a run's execution endings in execution order.
func (db *DB) RunOutcomes(runID string) ([]Outcome, error) {
	rows, err := db.Query(`
		SELECT run_id, execution_id, agent_id, command_id, outcome, exit_code, failure_reason, ended_at
		FROM outcomes WHERE run_id = ? ORDER BY execution_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o       Outcome
			reason  sql.NullString
			endedAt string
		)
		if err := rows.Scan(&o.RunID, &o.ExecutionID, &o.AgentID, &o.CommandID, &o.Result, &o.ExitCode, &reason, &endedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.FailureReason = reason.String
		o.EndedAt, err = parseTime(endedAt)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
