package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition indicates a state-machine transition was attempted
// from a state that does not permit it.
var ErrInvalidTransition = errors.New("invalid state transition")

// AgentID identifies a worker agent. IDs are assigned at spawn time,
// strictly increasing, and never reused.
type AgentID uint64

// String returns a short human-readable form, e.g. "agent-2".
func (id AgentID) String() string {
	return fmt.Sprintf("agent-%d", uint64(id))
}

// AgentState represents the current state of an agent.
//
// The lifecycle is Idle -> Assigned -> Executing -> {Completed, Cancelled,
// Failed} -> Idle (via Reset). The three terminal states are explicit
// markers rather than an inferred "finished" flag so that transition
// checks and invariant verification stay exhaustive.
type AgentState string

const (
	// AgentIdle indicates the agent has no command bound.
	AgentIdle AgentState = "idle"
	// AgentAssigned indicates a command is bound but not yet executing.
	AgentAssigned AgentState = "assigned"
	// AgentExecuting indicates the agent holds a terminal slot and runs
	// its command.
	AgentExecuting AgentState = "executing"
	// AgentCompleted indicates the last execution succeeded; the agent
	// must be reset before reuse.
	AgentCompleted AgentState = "completed"
	// AgentCancelled indicates the last assignment or execution was
	// cancelled; the agent must be reset before reuse.
	AgentCancelled AgentState = "cancelled"
	// AgentFailed indicates the last execution failed; the agent must be
	// reset before reuse.
	AgentFailed AgentState = "failed"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case AgentIdle, AgentAssigned, AgentExecuting, AgentCompleted, AgentCancelled, AgentFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for the three post-execution marker states.
func (s AgentState) Terminal() bool {
	return s == AgentCompleted || s == AgentCancelled || s == AgentFailed
}

// Agent is a capability-tagged worker. Capabilities are fixed at spawn;
// only the state and the command/execution bindings change afterwards.
type Agent struct {
	// ID is assigned at spawn time.
	ID AgentID `json:"id"`
	// Capabilities declares what command types this agent may execute.
	Capabilities []Capability `json:"capabilities"`
	// State is the current lifecycle state.
	State AgentState `json:"state"`
	// CommandID is the bound command, set from Assigned until Reset.
	CommandID *CommandID `json:"command_id,omitempty"`
	// ExecutionID is the current or last execution, set while Executing
	// and retained through the terminal states until Reset.
	ExecutionID *ExecutionID `json:"execution_id,omitempty"`
	// SpawnedAt is when the agent was created.
	SpawnedAt time.Time `json:"spawned_at"`
}

// NewAgent creates an idle agent with the given identity and capabilities.
func NewAgent(id AgentID, capabilities []Capability) *Agent {
	return &Agent{
		ID:           id,
		Capabilities: capabilities,
		State:        AgentIdle,
		SpawnedAt:    time.Now(),
	}
}

// HasCapabilities returns true if the agent's capability set is a
// superset of required.
func (a *Agent) HasCapabilities(required []Capability) bool {
	return HasAll(a.Capabilities, required)
}

// Assign binds a command to an idle agent.
func (a *Agent) Assign(cmdID CommandID) error {
	if a.State != AgentIdle {
		return fmt.Errorf("%w: assign from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentAssigned
	a.CommandID = &cmdID
	return nil
}

// BeginExecution moves an assigned agent into the executing state.
func (a *Agent) BeginExecution(execID ExecutionID) error {
	if a.State != AgentAssigned {
		return fmt.Errorf("%w: begin execution from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentExecuting
	a.ExecutionID = &execID
	return nil
}

// Complete marks an executing agent as completed.
func (a *Agent) Complete() error {
	if a.State != AgentExecuting {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentCompleted
	return nil
}

// Fail marks an executing agent as failed.
func (a *Agent) Fail() error {
	if a.State != AgentExecuting {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentFailed
	return nil
}

// Cancel marks an assigned or executing agent as cancelled.
func (a *Agent) Cancel() error {
	if a.State != AgentAssigned && a.State != AgentExecuting {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentCancelled
	return nil
}

// Reset clears the command and execution bindings and returns the agent
// to Idle. Valid only from the terminal states.
func (a *Agent) Reset() error {
	if !a.State.Terminal() {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, a.State)
	}
	a.State = AgentIdle
	a.CommandID = nil
	a.ExecutionID = nil
	return nil
}
