package models

import (
	"fmt"
	"time"
)

// ExecutionID identifies an execution record. IDs are assigned when
// execution begins, strictly increasing, and never reused.
type ExecutionID uint64

// String returns a short human-readable form, e.g. "exec-5".
func (id ExecutionID) String() string {
	return fmt.Sprintf("exec-%d", uint64(id))
}

// ExecutionState represents the state of an execution record.
type ExecutionState string

const (
	// ExecutionRunning indicates the execution holds a terminal slot.
	ExecutionRunning ExecutionState = "running"
	// ExecutionCompleted indicates the execution finished successfully.
	ExecutionCompleted ExecutionState = "completed"
	// ExecutionCancelled indicates the execution was cancelled.
	ExecutionCancelled ExecutionState = "cancelled"
	// ExecutionFailed indicates the execution failed.
	ExecutionFailed ExecutionState = "failed"
)

// Valid returns true if the state is a known value.
func (s ExecutionState) Valid() bool {
	switch s {
	case ExecutionRunning, ExecutionCompleted, ExecutionCancelled, ExecutionFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once the execution has ended.
func (s ExecutionState) Terminal() bool {
	return s != ExecutionRunning
}

// Execution records one agent running one command while holding one
// terminal slot. Records persist after completion for inspection.
type Execution struct {
	// ID is assigned when execution begins.
	ID ExecutionID `json:"id"`
	// AgentID is the agent running the command.
	AgentID AgentID `json:"agent_id"`
	// CommandID is the command being executed.
	CommandID CommandID `json:"command_id"`
	// State is the current execution state.
	State ExecutionState `json:"state"`
	// ExitCode is set when the execution completes, or on failure when
	// the external process exited with a known code.
	ExitCode *int `json:"exit_code,omitempty"`
	// FailureReason describes why the execution failed.
	FailureReason string `json:"failure_reason,omitempty"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the execution reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// NewExecution creates a running execution record.
func NewExecution(id ExecutionID, agentID AgentID, cmdID CommandID) *Execution {
	return &Execution{
		ID:        id,
		AgentID:   agentID,
		CommandID: cmdID,
		State:     ExecutionRunning,
		StartedAt: time.Now(),
	}
}

// Complete marks the execution as successfully finished.
func (e *Execution) Complete(exitCode int) error {
	if e.State != ExecutionRunning {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, e.State)
	}
	e.State = ExecutionCompleted
	e.ExitCode = &exitCode
	e.markEnded()
	return nil
}

// Fail marks the execution as failed with a reason.
func (e *Execution) Fail(reason string) error {
	if e.State != ExecutionRunning {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, e.State)
	}
	e.State = ExecutionFailed
	e.FailureReason = reason
	e.markEnded()
	return nil
}

// FailWithExitCode marks the execution as failed and records the exit
// code reported by the external process.
func (e *Execution) FailWithExitCode(exitCode int, reason string) error {
	if err := e.Fail(reason); err != nil {
		return err
	}
	e.ExitCode = &exitCode
	return nil
}

// Cancel marks the execution as cancelled.
func (e *Execution) Cancel() error {
	if e.State != ExecutionRunning {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, e.State)
	}
	e.State = ExecutionCancelled
	e.markEnded()
	return nil
}

func (e *Execution) markEnded() {
	now := time.Now()
	e.EndedAt = &now
}
