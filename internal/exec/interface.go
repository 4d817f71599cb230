// Package exec provides the executor boundary for the runtime.
package exec

import (
	"context"

	"termweave/pkg/models"
)

// StartRequest describes one execution handed to an executor.
type StartRequest struct {
	// ExecutionID identifies the execution in the orchestrator.
	ExecutionID models.ExecutionID
	// AgentID is the agent the execution belongs to.
	AgentID models.AgentID
	// CommandID is the command being executed.
	CommandID models.CommandID
	// Type is the command's type.
	Type models.CommandType
	// Payload is the opaque command payload.
	Payload string
}

// Outcome classifies how an execution ended.
type Outcome string

const (
	// OutcomeCompleted means the command finished successfully.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the command finished unsuccessfully.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means the command was cancelled before finishing.
	OutcomeCancelled Outcome = "cancelled"
)

// Result reports one finished execution back to the runtime.
type Result struct {
	// ExecutionID identifies the execution that ended.
	ExecutionID models.ExecutionID
	// AgentID is the agent the execution belonged to.
	AgentID models.AgentID
	// CommandID is the command that was executed.
	CommandID models.CommandID
	// Outcome classifies the ending.
	Outcome Outcome
	// ExitCode is the process-style exit code, when one applies.
	ExitCode int
	// FailureReason describes a failure, empty otherwise.
	FailureReason string
}

// Executor runs commands handed to it by the runtime and reports
// outcomes on its results channel. Implementations own any goroutines
// or processes they spawn; Close must not return until all of them have
// stopped.
type Executor interface {
	// Start begins executing the request. The context bounds the
	// executor's own startup work, not the command's lifetime.
	Start(ctx context.Context, req StartRequest) error

	// Results returns the channel on which finished executions are
	// reported. The channel is closed by Close.
	Results() <-chan Result

	// Cancel asks the executor to stop a running execution. The
	// cancellation is reported as a Result like any other outcome.
	Cancel(id models.ExecutionID)

	// Close stops all in-flight work and closes the results channel.
	Close()
}
