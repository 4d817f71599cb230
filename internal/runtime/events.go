// Package runtime drives the orchestrator: it serializes access behind
// one mutex, hands started executions to an executor, and funnels
// executor outcomes back into the orchestrator on a tick loop.
package runtime

import (
	"log"
	"sync/atomic"
	"time"

	"termweave/pkg/models"
)

// EventType represents the type of runtime event.
type EventType string

const (
	// EventAgentSpawned indicates a new agent was created.
	EventAgentSpawned EventType = "agent_spawned"
	// EventCommandQueued indicates a command entered the queue.
	EventCommandQueued EventType = "command_queued"
	// EventCommandApproved indicates a command became assignable.
	EventCommandApproved EventType = "command_approved"
	// EventCommandAssigned indicates a command was bound to an agent.
	EventCommandAssigned EventType = "command_assigned"
	// EventExecutionStarted indicates an execution began.
	EventExecutionStarted EventType = "execution_started"
	// EventExecutionCompleted indicates an execution finished successfully.
	EventExecutionCompleted EventType = "execution_completed"
	// EventExecutionFailed indicates an execution failed.
	EventExecutionFailed EventType = "execution_failed"
	// EventExecutionCancelled indicates an execution was cancelled.
	EventExecutionCancelled EventType = "execution_cancelled"
	// EventAgentReset indicates a finished agent returned to idle.
	EventAgentReset EventType = "agent_reset"
	// EventApprovalExpired indicates pending approval requests timed out.
	EventApprovalExpired EventType = "approval_expired"
)

// Event represents an event emitted by the runtime. Subscribers such as
// the history store and the CLI receive these to track progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// AgentID is the related agent, if applicable.
	AgentID models.AgentID
	// CommandID is the related command, if applicable.
	CommandID models.CommandID
	// ExecutionID is the related execution, if applicable.
	ExecutionID models.ExecutionID
	// ExitCode carries the exit code for completion/failure events.
	ExitCode int
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter provides a buffered, drop-on-overflow event channel.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event on the channel. A full channel gets a short grace
// period before the event is dropped and counted.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[runtime] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
func (e *EventEmitter) Close() {
	close(e.events)
}
