package orchestrator

import (
	"fmt"
	"time"

	"termweave/pkg/models"
)

// Orchestrator is the central coordinator for agent execution. It owns
// the agent table, the command table, the execution table, and the
// terminal pool, and enforces the configured capacity limits on every
// transition.
//
// Not safe for concurrent use; see the package documentation.
type Orchestrator struct {
	config    Config
	agents    *agentTable
	commands  *commandTable
	execs     *executionTable
	terminals *TerminalPool
	approvals *ApprovalManager
	logger    *DebugLogger
}

// New creates an orchestrator with the given capacity limits.
func New(config Config) *Orchestrator {
	return &Orchestrator{
		config:    config,
		agents:    newAgentTable(config.MaxAgents),
		commands:  newCommandTable(config.MaxQueueSize),
		execs:     newExecutionTable(config.MaxExecutions),
		terminals: NewTerminalPool(config.MaxTerminals),
		approvals: NewApprovalManager(DefaultApprovalConfig()),
		logger:    NopLogger(),
	}
}

// WithDefaults creates an orchestrator with the default capacity limits.
func WithDefaults() *Orchestrator {
	return New(DefaultConfig())
}

// SetLogger sets the debug logger. Passing nil restores the no-op logger.
func (o *Orchestrator) SetLogger(logger *DebugLogger) {
	if logger == nil {
		logger = NopLogger()
	}
	o.logger = logger
}

// SetApprovalConfig replaces the approval manager configuration.
func (o *Orchestrator) SetApprovalConfig(cfg ApprovalConfig) {
	o.approvals = NewApprovalManager(cfg)
}

// Config returns the orchestrator's capacity limits.
func (o *Orchestrator) Config() Config {
	return o.config
}

// SpawnAgent creates a new idle agent with the given capabilities.
// Fails with ErrMaxAgentsReached at the configured bound. An agent must
// declare at least one capability.
func (o *Orchestrator) SpawnAgent(capabilities []models.Capability) (models.AgentID, error) {
	if len(capabilities) == 0 {
		return 0, fmt.Errorf("%w: agent needs at least one capability", ErrInvalidStateTransition)
	}
	agent, err := o.agents.spawn(capabilities)
	if err != nil {
		return 0, err
	}
	o.logger.Log("[orchestrator] spawned %s with capabilities %v", agent.ID, agent.Capabilities)
	return agent.ID, nil
}

// GetAgent returns the agent for the given id. The returned value is
// owned by the orchestrator and must not be mutated by the caller.
func (o *Orchestrator) GetAgent(id models.AgentID) (*models.Agent, error) {
	agent, ok := o.agents.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return agent, nil
}

// Agents returns every agent in ascending id order.
func (o *Orchestrator) Agents() []*models.Agent {
	return o.agents.all()
}

// IdleAgents returns idle agents in ascending id order.
func (o *Orchestrator) IdleAgents() []*models.Agent {
	return o.agents.idle()
}

// ResetAgent returns an agent in a terminal state to Idle, clearing its
// command and execution bindings. Resetting an idle, assigned, or
// executing agent fails with ErrInvalidStateTransition.
func (o *Orchestrator) ResetAgent(id models.AgentID) error {
	agent, ok := o.agents.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	if err := agent.Reset(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	o.logger.Log("[orchestrator] reset %s to idle", id)
	return nil
}

// QueueCommand assigns a fresh id to the command and stores it. Fails
// with ErrQueueFull once MaxQueueSize unresolved commands are held.
// Dependencies are accepted as given, including ids not yet queued.
func (o *Orchestrator) QueueCommand(cmd *models.Command) (models.CommandID, error) {
	id, err := o.commands.enqueue(cmd)
	if err != nil {
		return 0, err
	}
	o.logger.Log("[orchestrator] queued %s type=%s deps=%v approved=%v", id, cmd.Type, cmd.DependsOn, cmd.Approved)
	return id, nil
}

// ApproveCommand sets the command's approved flag. Idempotent.
func (o *Orchestrator) ApproveCommand(id models.CommandID) error {
	if err := o.commands.approve(id); err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}
	o.logger.Log("[orchestrator] approved %s", id)
	return nil
}

// GetCommand returns the command for the given id.
func (o *Orchestrator) GetCommand(id models.CommandID) (*models.Command, error) {
	cmd, ok := o.commands.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}
	return cmd, nil
}

// ReadyCommands returns, in ascending id order, every command that is
// approved, dependency-satisfied, not completed, and not bound to an
// agent. The set is recomputed on every call.
func (o *Orchestrator) ReadyCommands() []models.CommandID {
	return o.commands.ready(o.agents.boundCommands())
}

// CompletedCommands returns the ids of successfully completed commands
// in ascending order.
func (o *Orchestrator) CompletedCommands() []models.CommandID {
	return o.commands.completedIDs()
}

// IsCompleted reports whether the command completed successfully.
func (o *Orchestrator) IsCompleted(id models.CommandID) bool {
	return o.commands.isCompleted(id)
}

// AssignCommand binds a ready command to an idle agent. The command must
// exist, be approved, have all dependencies completed, and be neither
// completed nor bound to another agent;
// the agent must exist, be idle, and hold every required capability.
func (o *Orchestrator) AssignCommand(agentID models.AgentID, cmdID models.CommandID) error {
	cmd, ok := o.commands.get(cmdID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, cmdID)
	}
	if !cmd.Approved {
		return fmt.Errorf("%w: %s", ErrNotApproved, cmdID)
	}
	if !o.commands.dependenciesSatisfied(cmd) {
		return fmt.Errorf("%w: %s", ErrDependenciesNotSatisfied, cmdID)
	}
	if o.commands.isCompleted(cmdID) {
		return fmt.Errorf("%w: %s already completed", ErrAlreadyAssigned, cmdID)
	}
	if o.agents.boundCommands()[cmdID] {
		return fmt.Errorf("%w: %s", ErrAlreadyAssigned, cmdID)
	}

	agent, ok := o.agents.get(agentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if !agent.HasCapabilities(cmd.Requirements()) {
		return fmt.Errorf("%w: %s needs %v", ErrCapabilityMismatch, cmdID, cmd.Requirements())
	}
	if agent.State != models.AgentIdle {
		return fmt.Errorf("%w: %s is %s", ErrAgentNotIdle, agentID, agent.State)
	}

	if err := agent.Assign(cmdID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	o.logger.Log("[orchestrator] assigned %s to %s", cmdID, agentID)
	return nil
}

// BeginExecution starts execution of the agent's assigned command. It
// acquires one terminal slot and creates a running execution record.
// Fails with ErrMaxExecutionsReached or ErrNoTerminalAvailable when
// capacity is exhausted, leaving all state untouched.
func (o *Orchestrator) BeginExecution(agentID models.AgentID) (models.ExecutionID, error) {
	agent, ok := o.agents.get(agentID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if agent.State != models.AgentAssigned || agent.CommandID == nil {
		return 0, fmt.Errorf("%w: begin execution on %s agent", ErrInvalidStateTransition, agent.State)
	}
	cmdID := *agent.CommandID
	cmd, ok := o.commands.get(cmdID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCommandNotFound, cmdID)
	}
	if !cmd.Approved {
		return 0, fmt.Errorf("%w: %s", ErrNotApproved, cmdID)
	}

	// Check both ceilings before mutating anything.
	if !o.execs.canStart() {
		return 0, ErrMaxExecutionsReached
	}
	if !o.terminals.HasAvailable() {
		return 0, ErrNoTerminalAvailable
	}

	if err := o.terminals.Acquire(); err != nil {
		return 0, err
	}
	exec, err := o.execs.start(agentID, cmdID)
	if err != nil {
		// Unreachable after canStart, but keep the slot balanced.
		_ = o.terminals.Release()
		return 0, err
	}
	if err := agent.BeginExecution(exec.ID); err != nil {
		_ = o.terminals.Release()
		return 0, fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}

	o.logger.Log("[orchestrator] %s began %s for %s (terminals in use: %d)", agentID, exec.ID, cmdID, o.terminals.InUse())
	return exec.ID, nil
}

// CompleteExecution records a successful execution outcome. The terminal
// slot is released, the command enters the completed set (unlocking
// dependents), and the agent moves to the Completed marker state.
func (o *Orchestrator) CompleteExecution(agentID models.AgentID, exitCode int) error {
	agent, exec, err := o.executingAgent(agentID)
	if err != nil {
		return err
	}

	if err := exec.Complete(exitCode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	if err := o.terminals.Release(); err != nil {
		return err
	}
	if err := agent.Complete(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	o.commands.markCompleted(exec.CommandID)

	o.logger.Log("[orchestrator] %s completed %s exit=%d", agentID, exec.CommandID, exitCode)
	return nil
}

// FailExecution records a failed execution outcome. The terminal slot is
// released immediately; the command is not added to the completed set,
// so a retry remains possible after the agent is reset.
func (o *Orchestrator) FailExecution(agentID models.AgentID, reason string) error {
	return o.failExecution(agentID, nil, reason)
}

// FailExecutionWithExitCode is FailExecution with the exit code reported
// by the external process recorded on the execution.
func (o *Orchestrator) FailExecutionWithExitCode(agentID models.AgentID, exitCode int, reason string) error {
	return o.failExecution(agentID, &exitCode, reason)
}

func (o *Orchestrator) failExecution(agentID models.AgentID, exitCode *int, reason string) error {
	agent, exec, err := o.executingAgent(agentID)
	if err != nil {
		return err
	}

	if exitCode != nil {
		err = exec.FailWithExitCode(*exitCode, reason)
	} else {
		err = exec.Fail(reason)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	if err := o.terminals.Release(); err != nil {
		return err
	}
	if err := agent.Fail(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}

	o.logger.Log("[orchestrator] %s failed %s: %s", agentID, exec.CommandID, reason)
	return nil
}

// CancelExecution cancels the agent's current work. From Assigned no
// terminal is held and no execution record exists, so only the agent
// state changes. From Executing the execution is cancelled and its
// terminal slot released. Cancellation is cooperative: terminating any
// external process is the executor's responsibility.
func (o *Orchestrator) CancelExecution(agentID models.AgentID) error {
	agent, ok := o.agents.get(agentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	if agent.State == models.AgentExecuting && agent.ExecutionID != nil {
		exec, ok := o.execs.get(*agent.ExecutionID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, *agent.ExecutionID)
		}
		if err := exec.Cancel(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
		}
		if err := o.terminals.Release(); err != nil {
			return err
		}
	}

	if err := agent.Cancel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	}
	o.logger.Log("[orchestrator] cancelled %s", agentID)
	return nil
}

// AutoAssign greedily assigns ready commands to idle capable agents in
// ascending command id order. Single pass, no backtracking; each agent
// is considered at most once per call. Returns the number assigned.
func (o *Orchestrator) AutoAssign() int {
	assigned := 0
	for _, cmdID := range o.ReadyCommands() {
		cmd, ok := o.commands.get(cmdID)
		if !ok {
			continue
		}
		for _, agent := range o.agents.idle() {
			if !agent.HasCapabilities(cmd.Requirements()) {
				continue
			}
			if err := o.AssignCommand(agent.ID, cmdID); err == nil {
				assigned++
			}
			break
		}
	}
	return assigned
}

// AutoExecute begins execution for assigned agents in ascending id order
// until terminal or execution capacity is exhausted. Returns the number
// started.
func (o *Orchestrator) AutoExecute() int {
	started := 0
	for _, agent := range o.agents.inState(models.AgentAssigned) {
		_, err := o.BeginExecution(agent.ID)
		switch {
		case err == nil:
			started++
		case err == ErrNoTerminalAvailable || err == ErrMaxExecutionsReached:
			return started
		}
	}
	return started
}

// Step runs one auto-assign pass followed by one auto-execute pass.
// Returns (assignments, executions started).
func (o *Orchestrator) Step() (int, int) {
	assigned := o.AutoAssign()
	started := o.AutoExecute()
	return assigned, started
}

// GetExecution returns the execution record for the given id.
func (o *Orchestrator) GetExecution(id models.ExecutionID) (*models.Execution, error) {
	exec, ok := o.execs.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	return exec, nil
}

// FindExecutionByAgent returns the running execution for the given
// agent, or nil if the agent is not executing.
func (o *Orchestrator) FindExecutionByAgent(agentID models.AgentID) *models.Execution {
	exec, ok := o.execs.findByAgent(agentID)
	if !ok {
		return nil
	}
	return exec
}

// RunningExecutions returns running executions in ascending id order.
func (o *Orchestrator) RunningExecutions() []*models.Execution {
	return o.execs.running()
}

// ActiveExecutionCount returns the number of running executions.
func (o *Orchestrator) ActiveExecutionCount() int {
	return o.execs.activeCount()
}

// TerminalStats returns (available, in use) terminal slot counts.
func (o *Orchestrator) TerminalStats() (available, inUse int) {
	return o.terminals.Available(), o.terminals.InUse()
}

// HasAvailableTerminals returns true if at least one slot is free.
func (o *Orchestrator) HasAvailableTerminals() bool {
	return o.terminals.HasAvailable()
}

// RequestApproval raises a pending approval request for an unapproved
// command on behalf of an agent. The action class is derived from the
// command type.
func (o *Orchestrator) RequestApproval(agentID models.AgentID, cmdID models.CommandID) (ApprovalRequestID, error) {
	if _, ok := o.agents.get(agentID); !ok {
		return 0, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	cmd, ok := o.commands.get(cmdID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCommandNotFound, cmdID)
	}

	id, err := o.approvals.Request(agentID, cmdID, string(cmd.Type))
	if err != nil {
		return 0, err
	}
	o.logger.Log("[orchestrator] %s requested approval %s for %s", agentID, id, cmdID)
	return id, nil
}

// ApproveRequest grants a pending approval request and marks the
// underlying command approved, making it assignable.
func (o *Orchestrator) ApproveRequest(id ApprovalRequestID) error {
	req, err := o.approvals.Approve(id)
	if err != nil {
		return err
	}
	if err := o.commands.approve(req.CommandID); err != nil {
		return fmt.Errorf("%w: %s", err, req.CommandID)
	}
	o.logger.Log("[orchestrator] approved request %s, command %s now assignable", id, req.CommandID)
	return nil
}

// RejectRequest denies a pending approval request. The command stays
// unapproved.
func (o *Orchestrator) RejectRequest(id ApprovalRequestID, reason string) error {
	req, err := o.approvals.Reject(id, reason)
	if err != nil {
		return err
	}
	o.logger.Log("[orchestrator] rejected request %s for %s: %s", id, req.CommandID, reason)
	return nil
}

// CancelRequest withdraws a pending request. Only the requesting agent
// may cancel.
func (o *Orchestrator) CancelRequest(agentID models.AgentID, id ApprovalRequestID) error {
	if err := o.approvals.Cancel(agentID, id); err != nil {
		return err
	}
	o.logger.Log("[orchestrator] %s cancelled request %s", agentID, id)
	return nil
}

// ProcessApprovalTimeouts expires stale pending requests and returns
// how many expired.
func (o *Orchestrator) ProcessApprovalTimeouts() int {
	expired := o.approvals.ProcessTimeouts(time.Now())
	for _, req := range expired {
		o.logger.Log("[orchestrator] approval request %s for %s expired", req.ID, req.CommandID)
	}
	return len(expired)
}

// GetApprovalRequest returns the approval request for the given id.
func (o *Orchestrator) GetApprovalRequest(id ApprovalRequestID) (*ApprovalRequest, error) {
	return o.approvals.Get(id)
}

// PendingApprovals returns pending requests in ascending id order.
func (o *Orchestrator) PendingApprovals() []*ApprovalRequest {
	return o.approvals.Pending()
}

// ApprovalAudit returns the approval decision trail, oldest first.
func (o *Orchestrator) ApprovalAudit() []AuditEntry {
	return o.approvals.Audit()
}

// executingAgent resolves an agent in the Executing state together with
// its running execution record.
func (o *Orchestrator) executingAgent(agentID models.AgentID) (*models.Agent, *models.Execution, error) {
	agent, ok := o.agents.get(agentID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if agent.State != models.AgentExecuting || agent.ExecutionID == nil {
		return nil, nil, fmt.Errorf("%w: %s is %s, not executing", ErrInvalidStateTransition, agentID, agent.State)
	}
	exec, ok := o.execs.get(*agent.ExecutionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, *agent.ExecutionID)
	}
	return agent, exec, nil
}
