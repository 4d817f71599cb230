package orchestrator

import (
	"errors"
	"testing"

	"termweave/pkg/models"
)

func newTestOrchestrator() *Orchestrator {
	return New(Config{
		MaxAgents:     10,
		MaxTerminals:  5,
		MaxQueueSize:  100,
		MaxExecutions: 5,
	})
}

func mustSpawn(t *testing.T, o *Orchestrator, caps ...models.Capability) models.AgentID {
	t.Helper()
	id, err := o.SpawnAgent(caps)
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	return id
}

func mustQueue(t *testing.T, o *Orchestrator, cmd *models.Command) models.CommandID {
	t.Helper()
	id, err := o.QueueCommand(cmd)
	if err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}
	return id
}

// runToCompletion assigns, executes, completes, and resets in one go.
func runToCompletion(t *testing.T, o *Orchestrator, agentID models.AgentID, cmdID models.CommandID) {
	t.Helper()
	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("AssignCommand(%s, %s): %v", agentID, cmdID, err)
	}
	if _, err := o.BeginExecution(agentID); err != nil {
		t.Fatalf("BeginExecution(%s): %v", agentID, err)
	}
	if err := o.CompleteExecution(agentID, 0); err != nil {
		t.Fatalf("CompleteExecution(%s): %v", agentID, err)
	}
	if err := o.ResetAgent(agentID); err != nil {
		t.Fatalf("ResetAgent(%s): %v", agentID, err)
	}
}

func TestFullLifecycle(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("echo hello"))

	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("AssignCommand: %v", err)
	}
	agent, _ := o.GetAgent(agentID)
	if agent.State != models.AgentAssigned {
		t.Errorf("agent state = %s, want %s", agent.State, models.AgentAssigned)
	}

	execID, err := o.BeginExecution(agentID)
	if err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}
	if avail, inUse := o.TerminalStats(); avail != 4 || inUse != 1 {
		t.Errorf("terminal stats = (%d, %d), want (4, 1)", avail, inUse)
	}

	if err := o.CompleteExecution(agentID, 0); err != nil {
		t.Fatalf("CompleteExecution: %v", err)
	}
	exec, err := o.GetExecution(execID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec.State != models.ExecutionCompleted {
		t.Errorf("execution state = %s, want %s", exec.State, models.ExecutionCompleted)
	}
	if exec.ExitCode == nil || *exec.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", exec.ExitCode)
	}
	if avail, inUse := o.TerminalStats(); avail != 5 || inUse != 0 {
		t.Errorf("terminal stats after completion = (%d, %d), want (5, 0)", avail, inUse)
	}
	if !o.IsCompleted(cmdID) {
		t.Error("command not in completed set after successful execution")
	}

	if err := o.ResetAgent(agentID); err != nil {
		t.Fatalf("ResetAgent: %v", err)
	}
	agent, _ = o.GetAgent(agentID)
	if agent.State != models.AgentIdle {
		t.Errorf("agent state after reset = %s, want %s", agent.State, models.AgentIdle)
	}
	if agent.CommandID != nil || agent.ExecutionID != nil {
		t.Error("reset agent still holds bindings")
	}
	if !o.VerifyInvariants() {
		t.Errorf("invariants violated: %v", o.InvariantViolations())
	}
}

func TestSpawnAgentLimit(t *testing.T) {
	o := New(Config{MaxAgents: 2, MaxTerminals: 5, MaxQueueSize: 10, MaxExecutions: 5})
	mustSpawn(t, o, models.CapabilityShell)
	mustSpawn(t, o, models.CapabilityShell)

	if _, err := o.SpawnAgent([]models.Capability{models.CapabilityShell}); !errors.Is(err, ErrMaxAgentsReached) {
		t.Errorf("third spawn error = %v, want ErrMaxAgentsReached", err)
	}
}

func TestQueueFull(t *testing.T) {
	o := New(Config{MaxAgents: 2, MaxTerminals: 2, MaxQueueSize: 2, MaxExecutions: 2})
	mustQueue(t, o, models.ShellCommand("one"))
	cmd2 := mustQueue(t, o, models.ShellCommand("two"))

	if _, err := o.QueueCommand(models.ShellCommand("three")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third queue error = %v, want ErrQueueFull", err)
	}

	// Completing a command frees queue capacity.
	agentID := mustSpawn(t, o, models.CapabilityShell)
	runToCompletion(t, o, agentID, cmd2)
	if _, err := o.QueueCommand(models.ShellCommand("three")); err != nil {
		t.Fatalf("queue after completion: %v", err)
	}
}

func TestAssignPreconditions(t *testing.T) {
	o := newTestOrchestrator()
	shellAgent := mustSpawn(t, o, models.CapabilityShell)
	fileAgent := mustSpawn(t, o, models.CapabilityFile)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "unknown command",
			run:     func() error { return o.AssignCommand(shellAgent, 999) },
			wantErr: ErrCommandNotFound,
		},
		{
			name:    "unknown agent",
			run:     func() error { return o.AssignCommand(999, cmdID) },
			wantErr: ErrAgentNotFound,
		},
		{
			name:    "capability mismatch",
			run:     func() error { return o.AssignCommand(fileAgent, cmdID) },
			wantErr: ErrCapabilityMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssignAlreadyAssignedCommand(t *testing.T) {
	o := newTestOrchestrator()
	first := mustSpawn(t, o, models.CapabilityShell)
	second := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))

	if err := o.AssignCommand(first, cmdID); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := o.AssignCommand(second, cmdID); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("second assign error = %v, want ErrAlreadyAssigned", err)
	}
}

func TestAssignCompletedCommand(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("make build"))
	runToCompletion(t, o, agentID, cmdID)

	if err := o.AssignCommand(agentID, cmdID); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("assign after completion error = %v, want ErrAlreadyAssigned", err)
	}
	agent, _ := o.GetAgent(agentID)
	if agent.State != models.AgentIdle {
		t.Errorf("agent state = %s, want %s", agent.State, models.AgentIdle)
	}
	if !o.VerifyInvariants() {
		t.Errorf("invariants violated: %v", o.InvariantViolations())
	}
}

func TestAssignDependenciesNotSatisfied(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	dep := mustQueue(t, o, models.ShellCommand("first"))

	cmd := models.ShellCommand("second")
	cmd.DependsOn = []models.CommandID{dep}
	cmdID := mustQueue(t, o, cmd)

	if err := o.AssignCommand(agentID, cmdID); !errors.Is(err, ErrDependenciesNotSatisfied) {
		t.Errorf("assign error = %v, want ErrDependenciesNotSatisfied", err)
	}
}

func TestBeginExecutionCapacity(t *testing.T) {
	o := New(Config{MaxAgents: 5, MaxTerminals: 2, MaxQueueSize: 10, MaxExecutions: 3})

	var agents []models.AgentID
	for i := 0; i < 3; i++ {
		agentID := mustSpawn(t, o, models.CapabilityShell)
		cmdID := mustQueue(t, o, models.ShellCommand("work"))
		if err := o.AssignCommand(agentID, cmdID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		agents = append(agents, agentID)
	}

	if _, err := o.BeginExecution(agents[0]); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := o.BeginExecution(agents[1]); err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if _, err := o.BeginExecution(agents[2]); !errors.Is(err, ErrNoTerminalAvailable) {
		t.Errorf("third begin error = %v, want ErrNoTerminalAvailable", err)
	}
	// Failed begin must not leak a terminal slot.
	if avail, inUse := o.TerminalStats(); avail != 0 || inUse != 2 {
		t.Errorf("terminal stats = (%d, %d), want (0, 2)", avail, inUse)
	}
}

func TestMaxExecutionsCheckedBeforeTerminal(t *testing.T) {
	o := New(Config{MaxAgents: 5, MaxTerminals: 3, MaxQueueSize: 10, MaxExecutions: 1})

	for i := 0; i < 2; i++ {
		agentID := mustSpawn(t, o, models.CapabilityShell)
		cmdID := mustQueue(t, o, models.ShellCommand("work"))
		if err := o.AssignCommand(agentID, cmdID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	if _, err := o.BeginExecution(1); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := o.BeginExecution(2); !errors.Is(err, ErrMaxExecutionsReached) {
		t.Errorf("second begin error = %v, want ErrMaxExecutionsReached", err)
	}
	if avail, inUse := o.TerminalStats(); avail != 2 || inUse != 1 {
		t.Errorf("terminal stats = (%d, %d), want (2, 1)", avail, inUse)
	}
}

func TestCancelFromAssignedReleasesNoTerminal(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))
	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if err := o.CancelExecution(agentID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if avail, inUse := o.TerminalStats(); avail != 5 || inUse != 0 {
		t.Errorf("terminal stats = (%d, %d), want (5, 0)", avail, inUse)
	}
	agent, _ := o.GetAgent(agentID)
	if agent.State != models.AgentCancelled {
		t.Errorf("agent state = %s, want %s", agent.State, models.AgentCancelled)
	}
}

func TestCancelFromExecutingReleasesTerminal(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("sleep"))
	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	execID, err := o.BeginExecution(agentID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := o.CancelExecution(agentID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	exec, _ := o.GetExecution(execID)
	if exec.State != models.ExecutionCancelled {
		t.Errorf("execution state = %s, want %s", exec.State, models.ExecutionCancelled)
	}
	if avail, inUse := o.TerminalStats(); avail != 5 || inUse != 0 {
		t.Errorf("terminal stats = (%d, %d), want (5, 0)", avail, inUse)
	}
	if o.IsCompleted(cmdID) {
		t.Error("cancelled command must not enter the completed set")
	}
}

func TestResetAgentRequiresTerminalState(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))

	if err := o.ResetAgent(agentID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("reset idle error = %v, want ErrInvalidStateTransition", err)
	}

	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := o.ResetAgent(agentID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("reset assigned error = %v, want ErrInvalidStateTransition", err)
	}

	if _, err := o.BeginExecution(agentID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := o.ResetAgent(agentID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("reset executing error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestApproveCommandIdempotent(t *testing.T) {
	o := newTestOrchestrator()
	cmd := models.NewCommand(models.CommandShell, "rm -rf /tmp/scratch")
	cmdID := mustQueue(t, o, cmd)

	if err := o.ApproveCommand(cmdID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if err := o.ApproveCommand(cmdID); err != nil {
		t.Fatalf("second approve: %v", err)
	}
	got, _ := o.GetCommand(cmdID)
	if !got.Approved {
		t.Error("command not approved")
	}
}

// Scenario: chain cmd1 -> cmd2 -> cmd3 with a single agent.
func TestDependencyChain(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)

	cmd1 := mustQueue(t, o, models.ShellCommand("step 1"))
	c2 := models.ShellCommand("step 2")
	c2.DependsOn = []models.CommandID{cmd1}
	cmd2 := mustQueue(t, o, c2)
	c3 := models.ShellCommand("step 3")
	c3.DependsOn = []models.CommandID{cmd2}
	cmd3 := mustQueue(t, o, c3)

	assertReady := func(want ...models.CommandID) {
		t.Helper()
		got := o.ReadyCommands()
		if len(got) != len(want) {
			t.Fatalf("ready = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ready = %v, want %v", got, want)
			}
		}
	}

	assertReady(cmd1)
	runToCompletion(t, o, agentID, cmd1)
	assertReady(cmd2)
	runToCompletion(t, o, agentID, cmd2)
	assertReady(cmd3)
	runToCompletion(t, o, agentID, cmd3)
	assertReady()

	if got := o.CompletedCommands(); len(got) != 3 {
		t.Errorf("completed = %v, want all three", got)
	}
}

// Scenario: diamond cmd1 -> {cmd2, cmd3} -> cmd4.
func TestDependencyDiamond(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)

	cmd1 := mustQueue(t, o, models.ShellCommand("root"))
	c2 := models.ShellCommand("left")
	c2.DependsOn = []models.CommandID{cmd1}
	cmd2 := mustQueue(t, o, c2)
	c3 := models.ShellCommand("right")
	c3.DependsOn = []models.CommandID{cmd1}
	cmd3 := mustQueue(t, o, c3)
	c4 := models.ShellCommand("join")
	c4.DependsOn = []models.CommandID{cmd2, cmd3}
	cmd4 := mustQueue(t, o, c4)

	runToCompletion(t, o, agentID, cmd1)

	ready := o.ReadyCommands()
	if len(ready) != 2 || ready[0] != cmd2 || ready[1] != cmd3 {
		t.Fatalf("ready after root = %v, want [%s %s]", ready, cmd2, cmd3)
	}

	runToCompletion(t, o, agentID, cmd2)
	for _, id := range o.ReadyCommands() {
		if id == cmd4 {
			t.Fatal("join ready with only one branch complete")
		}
	}

	runToCompletion(t, o, agentID, cmd3)
	ready = o.ReadyCommands()
	if len(ready) != 1 || ready[0] != cmd4 {
		t.Fatalf("ready after both branches = %v, want [%s]", ready, cmd4)
	}
}

// Scenario: three terminals, five independent commands, five agents.
func TestAutoSchedulingBoundedByTerminals(t *testing.T) {
	o := New(Config{MaxAgents: 5, MaxTerminals: 3, MaxQueueSize: 10, MaxExecutions: 10})
	for i := 0; i < 5; i++ {
		mustSpawn(t, o, models.CapabilityShell)
		mustQueue(t, o, models.ShellCommand("work"))
	}

	if got := o.AutoAssign(); got != 5 {
		t.Errorf("AutoAssign = %d, want 5", got)
	}
	if got := o.AutoExecute(); got != 3 {
		t.Errorf("AutoExecute = %d, want 3", got)
	}
	if got := o.ActiveExecutionCount(); got != 3 {
		t.Errorf("ActiveExecutionCount = %d, want 3", got)
	}
	if avail, inUse := o.TerminalStats(); avail != 0 || inUse != 3 {
		t.Errorf("terminal stats = (%d, %d), want (0, 3)", avail, inUse)
	}
	if !o.VerifyInvariants() {
		t.Errorf("invariants violated: %v", o.InvariantViolations())
	}
}

// Scenario: a failed execution frees its terminal and keeps the command
// out of the completed set; after reset the agent works again.
func TestFailExecutionFreesTerminal(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("flaky"))

	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	execID, err := o.BeginExecution(agentID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := o.FailExecutionWithExitCode(agentID, 127, "command not found"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if avail, inUse := o.TerminalStats(); avail != 5 || inUse != 0 {
		t.Errorf("terminal stats = (%d, %d), want (5, 0)", avail, inUse)
	}
	if o.IsCompleted(cmdID) {
		t.Error("failed command must not enter the completed set")
	}
	exec, _ := o.GetExecution(execID)
	if exec.State != models.ExecutionFailed || exec.FailureReason != "command not found" {
		t.Errorf("execution = %s/%q, want failed/command not found", exec.State, exec.FailureReason)
	}
	if exec.ExitCode == nil || *exec.ExitCode != 127 {
		t.Errorf("exit code = %v, want 127", exec.ExitCode)
	}

	// Retry after reset.
	if err := o.ResetAgent(agentID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runToCompletion(t, o, agentID, cmdID)
	if !o.IsCompleted(cmdID) {
		t.Error("retried command missing from completed set")
	}
}

// Scenario: unapproved commands are invisible to scheduling until approved.
func TestUnapprovedCommandFlow(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.NewCommand(models.CommandShell, "rm important.txt"))

	if got := o.ReadyCommands(); len(got) != 0 {
		t.Errorf("ready = %v, want empty before approval", got)
	}
	if err := o.AssignCommand(agentID, cmdID); !errors.Is(err, ErrNotApproved) {
		t.Errorf("assign error = %v, want ErrNotApproved", err)
	}

	if err := o.ApproveCommand(cmdID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	ready := o.ReadyCommands()
	if len(ready) != 1 || ready[0] != cmdID {
		t.Fatalf("ready after approval = %v, want [%s]", ready, cmdID)
	}
	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Errorf("assign after approval: %v", err)
	}
}

func TestStep(t *testing.T) {
	o := New(Config{MaxAgents: 3, MaxTerminals: 2, MaxQueueSize: 10, MaxExecutions: 10})
	for i := 0; i < 3; i++ {
		mustSpawn(t, o, models.CapabilityShell)
		mustQueue(t, o, models.ShellCommand("work"))
	}

	assigned, started := o.Step()
	if assigned != 3 || started != 2 {
		t.Errorf("Step = (%d, %d), want (3, 2)", assigned, started)
	}
}

func TestAutoAssignSkipsIncapableAgents(t *testing.T) {
	o := newTestOrchestrator()
	mustSpawn(t, o, models.CapabilityFile)
	gitAgent := mustSpawn(t, o, models.CapabilityGit)
	mustQueue(t, o, models.ShellCommand("git status")) // shell, nobody capable

	gitCmd := models.NewCommand(models.CommandGit, "git pull")
	gitCmd.Approved = true
	gitID := mustQueue(t, o, gitCmd)

	if got := o.AutoAssign(); got != 1 {
		t.Errorf("AutoAssign = %d, want 1", got)
	}
	agent, _ := o.GetAgent(gitAgent)
	if agent.CommandID == nil || *agent.CommandID != gitID {
		t.Errorf("git agent bound to %v, want %s", agent.CommandID, gitID)
	}
}

func TestFindExecutionByAgent(t *testing.T) {
	o := newTestOrchestrator()
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))

	if exec := o.FindExecutionByAgent(agentID); exec != nil {
		t.Errorf("found execution %s for idle agent", exec.ID)
	}

	if err := o.AssignCommand(agentID, cmdID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	execID, err := o.BeginExecution(agentID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	exec := o.FindExecutionByAgent(agentID)
	if exec == nil || exec.ID != execID {
		t.Errorf("FindExecutionByAgent = %v, want %s", exec, execID)
	}
}

func TestSnapshot(t *testing.T) {
	o := New(Config{MaxAgents: 3, MaxTerminals: 2, MaxQueueSize: 10, MaxExecutions: 10})
	agentID := mustSpawn(t, o, models.CapabilityShell)
	cmdID := mustQueue(t, o, models.ShellCommand("ls"))
	mustQueue(t, o, models.ShellCommand("pwd"))
	runToCompletion(t, o, agentID, cmdID)

	snap := o.Snapshot()
	if snap.QueuedCommands != 2 {
		t.Errorf("QueuedCommands = %d, want 2", snap.QueuedCommands)
	}
	if len(snap.CompletedCommands) != 1 || snap.CompletedCommands[0] != cmdID {
		t.Errorf("CompletedCommands = %v, want [%s]", snap.CompletedCommands, cmdID)
	}
	if snap.TotalExecutions != 1 || snap.ActiveExecutions != 0 {
		t.Errorf("executions = %d total / %d active, want 1/0", snap.TotalExecutions, snap.ActiveExecutions)
	}
	if snap.AgentStates[agentID] != models.AgentIdle {
		t.Errorf("agent state in snapshot = %s, want idle", snap.AgentStates[agentID])
	}
	if snap.TerminalsInUse != 0 || snap.TerminalsAvailable != 2 {
		t.Errorf("terminals = %d in use / %d available, want 0/2", snap.TerminalsInUse, snap.TerminalsAvailable)
	}
}
