package orchestrator

import "errors"

// Capacity errors. Callers can recover by retrying or freeing resources.
var (
	// ErrMaxAgentsReached indicates the agent pool is at capacity.
	ErrMaxAgentsReached = errors.New("maximum agents reached")
	// ErrMaxExecutionsReached indicates the concurrent execution ceiling
	// has been hit.
	ErrMaxExecutionsReached = errors.New("maximum concurrent executions reached")
	// ErrQueueFull indicates the command queue holds the maximum number
	// of unresolved commands.
	ErrQueueFull = errors.New("command queue full")
	// ErrNoTerminalAvailable indicates every terminal slot is in use.
	ErrNoTerminalAvailable = errors.New("no terminal slot available")
)

// Lookup errors. These indicate stale identifiers.
var (
	// ErrAgentNotFound indicates an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrCommandNotFound indicates an unknown command id.
	ErrCommandNotFound = errors.New("command not found")
	// ErrExecutionNotFound indicates an unknown execution id.
	ErrExecutionNotFound = errors.New("execution not found")
)

// State errors. These indicate caller protocol violations.
var (
	// ErrAlreadyAssigned indicates the command is bound to another agent.
	ErrAlreadyAssigned = errors.New("command already assigned")
	// ErrNotApproved indicates the command has not been approved.
	ErrNotApproved = errors.New("command not approved")
	// ErrAgentNotIdle indicates the agent cannot accept an assignment.
	ErrAgentNotIdle = errors.New("agent not idle")
	// ErrCapabilityMismatch indicates the agent lacks a required capability.
	ErrCapabilityMismatch = errors.New("agent lacks required capabilities")
	// ErrDependenciesNotSatisfied indicates the command has incomplete
	// dependencies.
	ErrDependenciesNotSatisfied = errors.New("command dependencies not satisfied")
	// ErrInvalidStateTransition indicates an operation was attempted from
	// a state that does not permit it.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// Approval errors.
var (
	// ErrApprovalNotFound indicates an unknown approval request id.
	ErrApprovalNotFound = errors.New("approval request not found")
	// ErrApprovalLimitReached indicates the pending-request cap was hit.
	ErrApprovalLimitReached = errors.New("approval request limit reached")
	// ErrNotRequestOwner indicates an agent tried to cancel a request it
	// did not submit.
	ErrNotRequestOwner = errors.New("not the requesting agent")
)
