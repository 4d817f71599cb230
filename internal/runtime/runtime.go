package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"termweave/internal/exec"
	"termweave/internal/orchestrator"
	"termweave/pkg/models"
)

// Config holds runtime tuning knobs.
type Config struct {
	// TickInterval is the delay between scheduler passes in Run.
	TickInterval time.Duration
	// EventBuffer is the emitter's channel buffer size.
	EventBuffer int
	// MaxRecentCompletions bounds the recent-completion list.
	MaxRecentCompletions int
	// RetryFailures resets agents after failed or cancelled executions,
	// putting the command back in contention. When false the agent keeps
	// its terminal state until reset explicitly.
	RetryFailures bool
}

// DefaultConfig returns the standard runtime settings.
func DefaultConfig() Config {
	return Config{
		TickInterval:         50 * time.Millisecond,
		EventBuffer:          256,
		MaxRecentCompletions: 100,
	}
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	// Assigned is the number of commands bound to agents.
	Assigned int
	// Started is the number of executions begun.
	Started int
	// Completions is the number of executor results processed.
	Completions int
	// ExpiredApprovals is the number of approval requests timed out.
	ExpiredApprovals int
}

// CompletionRecord describes one finished execution.
type CompletionRecord struct {
	// ExecutionID identifies the execution.
	ExecutionID models.ExecutionID
	// AgentID is the agent that ran the command.
	AgentID models.AgentID
	// CommandID is the command that ran.
	CommandID models.CommandID
	// Outcome classifies the ending.
	Outcome exec.Outcome
	// ExitCode is the reported exit code.
	ExitCode int
	// FailureReason describes a failure, empty otherwise.
	FailureReason string
	// EndedAt is when the result was processed.
	EndedAt time.Time
}

// Stats is an aggregate view of runtime progress.
type Stats struct {
	// IdleAgents is the number of agents available for assignment.
	IdleAgents int
	// ExecutingAgents is the number of agents currently executing.
	ExecutingAgents int
	// ActiveExecutions is the number of running executions.
	ActiveExecutions int
	// TerminalsInUse is the number of occupied terminal slots.
	TerminalsInUse int
	// TerminalsAvailable is the number of free terminal slots.
	TerminalsAvailable int
	// PendingApprovals is the number of undecided approval requests.
	PendingApprovals int
	// Completed is the total number of successful executions.
	Completed int
	// Failed is the total number of failed executions.
	Failed int
	// Cancelled is the total number of cancelled executions.
	Cancelled int
	// DroppedEvents is the number of events dropped by the emitter.
	DroppedEvents uint64
}

// Runtime drives an orchestrator against an executor. All orchestrator
// access goes through the runtime's mutex, making it the single
// serialization point the core requires.
type Runtime struct {
	mu       sync.Mutex
	orch     *orchestrator.Orchestrator
	executor exec.Executor
	emitter  *EventEmitter
	config   Config

	recent    []CompletionRecord
	completed int
	failed    int
	cancelled int

	closeOnce sync.Once
}

// New creates a runtime around the given orchestrator and executor.
func New(orch *orchestrator.Orchestrator, executor exec.Executor, config Config) *Runtime {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	if config.MaxRecentCompletions <= 0 {
		config.MaxRecentCompletions = DefaultConfig().MaxRecentCompletions
	}
	return &Runtime{
		orch:     orch,
		executor: executor,
		emitter:  NewEventEmitter(config.EventBuffer),
		config:   config,
	}
}

// Events returns the runtime's event stream.
func (r *Runtime) Events() <-chan Event {
	return r.emitter.Events()
}

// SpawnAgent creates an agent and emits an event.
func (r *Runtime) SpawnAgent(capabilities []models.Capability) (models.AgentID, error) {
	r.mu.Lock()
	id, err := r.orch.SpawnAgent(capabilities)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	r.emitter.Emit(Event{Type: EventAgentSpawned, AgentID: id})
	return id, nil
}

// QueueCommand queues a command and emits an event.
func (r *Runtime) QueueCommand(cmd *models.Command) (models.CommandID, error) {
	r.mu.Lock()
	id, err := r.orch.QueueCommand(cmd)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	r.emitter.Emit(Event{Type: EventCommandQueued, CommandID: id, Message: cmd.Description})
	return id, nil
}

// ApproveCommand approves a command and emits an event.
func (r *Runtime) ApproveCommand(id models.CommandID) error {
	r.mu.Lock()
	err := r.orch.ApproveCommand(id)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.emitter.Emit(Event{Type: EventCommandApproved, CommandID: id})
	return nil
}

// CancelAgent cancels an agent's current work, asks the executor to stop
// the underlying execution, and emits an event.
func (r *Runtime) CancelAgent(agentID models.AgentID) error {
	r.mu.Lock()
	execRecord := r.orch.FindExecutionByAgent(agentID)
	err := r.orch.CancelExecution(agentID)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if execRecord != nil {
		r.executor.Cancel(execRecord.ID)
		r.emitter.Emit(Event{Type: EventExecutionCancelled, AgentID: agentID, ExecutionID: execRecord.ID, CommandID: execRecord.CommandID})
	}
	return nil
}

// ResetAgent returns a finished agent to idle and emits an event.
func (r *Runtime) ResetAgent(agentID models.AgentID) error {
	r.mu.Lock()
	err := r.orch.ResetAgent(agentID)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.emitter.Emit(Event{Type: EventAgentReset, AgentID: agentID})
	return nil
}

// Snapshot returns a point-in-time view of the underlying orchestrator.
func (r *Runtime) Snapshot() orchestrator.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orch.Snapshot()
}

// Tick performs one scheduler pass: drain executor results, expire
// stale approvals, assign ready commands, and start executions.
func (r *Runtime) Tick(ctx context.Context) TickResult {
	var result TickResult

	result.Completions = r.drainResults()

	r.mu.Lock()
	result.ExpiredApprovals = r.orch.ProcessApprovalTimeouts()
	result.Assigned = r.orch.AutoAssign()
	r.mu.Unlock()

	if result.ExpiredApprovals > 0 {
		r.emitter.Emit(Event{Type: EventApprovalExpired, Message: fmt.Sprintf("%d requests expired", result.ExpiredApprovals)})
	}

	result.Started = r.startAssigned(ctx)
	return result
}

// Run loops Tick at the configured interval until the context is
// cancelled.
func (r *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// startAssigned begins execution for assigned agents and hands each
// started execution to the executor. A failed executor start rolls the
// orchestrator back: the execution is cancelled and the agent returned
// to idle.
func (r *Runtime) startAssigned(ctx context.Context) int {
	started := 0

	r.mu.Lock()
	var assigned []models.AgentID
	for _, agent := range r.orch.Agents() {
		if agent.State == models.AgentAssigned {
			assigned = append(assigned, agent.ID)
		}
	}
	r.mu.Unlock()

	for _, agentID := range assigned {
		r.mu.Lock()
		execID, err := r.orch.BeginExecution(agentID)
		if err != nil {
			r.mu.Unlock()
			if errors.Is(err, orchestrator.ErrNoTerminalAvailable) || errors.Is(err, orchestrator.ErrMaxExecutionsReached) {
				break
			}
			continue
		}
		execRecord, lookupErr := r.orch.GetExecution(execID)
		r.mu.Unlock()
		if lookupErr != nil {
			continue
		}

		cmdID := execRecord.CommandID
		r.mu.Lock()
		cmd, cmdErr := r.orch.GetCommand(cmdID)
		r.mu.Unlock()
		if cmdErr != nil {
			continue
		}

		req := exec.StartRequest{
			ExecutionID: execID,
			AgentID:     agentID,
			CommandID:   cmdID,
			Type:        cmd.Type,
			Payload:     cmd.Payload,
		}
		if err := r.executor.Start(ctx, req); err != nil {
			r.mu.Lock()
			if r.orch.CancelExecution(agentID) == nil {
				_ = r.orch.ResetAgent(agentID)
			}
			r.mu.Unlock()
			r.emitter.Emit(Event{Type: EventExecutionCancelled, AgentID: agentID, ExecutionID: execID, CommandID: cmdID, Message: err.Error()})
			continue
		}

		started++
		r.emitter.Emit(Event{Type: EventExecutionStarted, AgentID: agentID, ExecutionID: execID, CommandID: cmdID})
	}
	return started
}

// drainResults applies every immediately available executor result to
// the orchestrator.
func (r *Runtime) drainResults() int {
	processed := 0
	for {
		select {
		case res, ok := <-r.executor.Results():
			if !ok {
				return processed
			}
			r.applyResult(res)
			processed++
		default:
			return processed
		}
	}
}

func (r *Runtime) applyResult(res exec.Result) {
	r.mu.Lock()

	var err error
	emit := true
	eventType := EventExecutionCompleted
	switch res.Outcome {
	case exec.OutcomeCompleted:
		err = r.orch.CompleteExecution(res.AgentID, res.ExitCode)
	case exec.OutcomeFailed:
		err = r.orch.FailExecutionWithExitCode(res.AgentID, res.ExitCode, res.FailureReason)
		eventType = EventExecutionFailed
	case exec.OutcomeCancelled:
		// CancelAgent usually already cancelled the agent and emitted
		// the event before the executor reported back.
		if running := r.orch.FindExecutionByAgent(res.AgentID); running != nil && running.ID == res.ExecutionID {
			err = r.orch.CancelExecution(res.AgentID)
		} else {
			emit = false
		}
		eventType = EventExecutionCancelled
	}

	if err == nil {
		switch res.Outcome {
		case exec.OutcomeCompleted:
			r.completed++
		case exec.OutcomeFailed:
			r.failed++
		case exec.OutcomeCancelled:
			r.cancelled++
		}
	}

	r.record(CompletionRecord{
		ExecutionID:   res.ExecutionID,
		AgentID:       res.AgentID,
		CommandID:     res.CommandID,
		Outcome:       res.Outcome,
		ExitCode:      res.ExitCode,
		FailureReason: res.FailureReason,
		EndedAt:       time.Now(),
	})

	// Only completed agents reset unconditionally; a failed or cancelled
	// command would re-enter the ready set and run again.
	reset := false
	if res.Outcome == exec.OutcomeCompleted || r.config.RetryFailures {
		reset = r.orch.ResetAgent(res.AgentID) == nil
	}
	r.mu.Unlock()

	if err == nil && emit {
		r.emitter.Emit(Event{
			Type:        eventType,
			AgentID:     res.AgentID,
			CommandID:   res.CommandID,
			ExecutionID: res.ExecutionID,
			ExitCode:    res.ExitCode,
			Message:     res.FailureReason,
		})
	}
	if reset {
		r.emitter.Emit(Event{Type: EventAgentReset, AgentID: res.AgentID})
	}
}

// record appends to the bounded recent-completion list.
func (r *Runtime) record(rec CompletionRecord) {
	r.recent = append(r.recent, rec)
	if len(r.recent) > r.config.MaxRecentCompletions {
		r.recent = r.recent[len(r.recent)-r.config.MaxRecentCompletions:]
	}
}

// RecentCompletions returns a copy of the bounded recent-completion
// list, oldest first.
func (r *Runtime) RecentCompletions() []CompletionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CompletionRecord, len(r.recent))
	copy(out, r.recent)
	return out
}

// Stats returns an aggregate view of runtime progress.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	snap := r.orch.Snapshot()
	executing := 0
	idle := 0
	for _, state := range snap.AgentStates {
		switch state {
		case models.AgentExecuting:
			executing++
		case models.AgentIdle:
			idle++
		}
	}
	stats := Stats{
		IdleAgents:         idle,
		ExecutingAgents:    executing,
		ActiveExecutions:   snap.ActiveExecutions,
		TerminalsInUse:     snap.TerminalsInUse,
		TerminalsAvailable: snap.TerminalsAvailable,
		PendingApprovals:   snap.PendingApprovals,
		Completed:          r.completed,
		Failed:             r.failed,
		Cancelled:          r.cancelled,
	}
	r.mu.Unlock()

	stats.DroppedEvents = r.emitter.DroppedCount()
	return stats
}

// Close shuts down the executor and the event stream. Pending executor
// results are applied before the stream closes. Safe to call more than
// once.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.executor.Close()
		r.drainResults()
		r.emitter.Close()
	})
}
