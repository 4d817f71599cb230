package orchestrator

import (
	"fmt"

	"termweave/pkg/models"
)

// VerifyInvariants re-derives the orchestrator's structural invariants
// from the current collections and reports whether all of them hold.
// Intended for tests and debug assertions, not the hot path; cost is
// O(agents + executions + commands).
func (o *Orchestrator) VerifyInvariants() bool {
	return len(o.InvariantViolations()) == 0
}

// InvariantViolations returns a description of every violated invariant,
// or nil when the state is consistent.
func (o *Orchestrator) InvariantViolations() []string {
	var violations []string

	// No two agents may reference the same command.
	commandOwner := make(map[models.CommandID]models.AgentID)
	executing := 0
	for _, agent := range o.agents.all() {
		if agent.CommandID != nil {
			if owner, dup := commandOwner[*agent.CommandID]; dup {
				violations = append(violations, fmt.Sprintf(
					"command %s bound to both %s and %s", *agent.CommandID, owner, agent.ID))
			}
			commandOwner[*agent.CommandID] = agent.ID
		}
		if agent.State == models.AgentExecuting {
			executing++
		}

		// Assigned and executing agents must reference a live,
		// not-yet-completed command.
		if agent.State == models.AgentAssigned || agent.State == models.AgentExecuting {
			if agent.CommandID == nil {
				violations = append(violations, fmt.Sprintf(
					"%s is %s with no command bound", agent.ID, agent.State))
				continue
			}
			if _, ok := o.commands.get(*agent.CommandID); !ok {
				violations = append(violations, fmt.Sprintf(
					"%s references unknown command %s", agent.ID, *agent.CommandID))
			} else if o.commands.isCompleted(*agent.CommandID) {
				violations = append(violations, fmt.Sprintf(
					"%s is %s on already-completed command %s", agent.ID, agent.State, *agent.CommandID))
			}
		}
	}

	// Executing agents are bounded by both capacity ceilings, and the
	// terminal pool must account for exactly one slot per executing agent.
	if executing > o.config.MaxTerminals {
		violations = append(violations, fmt.Sprintf(
			"%d agents executing, terminal capacity is %d", executing, o.config.MaxTerminals))
	}
	if executing > o.config.MaxExecutions {
		violations = append(violations, fmt.Sprintf(
			"%d agents executing, execution ceiling is %d", executing, o.config.MaxExecutions))
	}
	if o.terminals.InUse() != executing {
		violations = append(violations, fmt.Sprintf(
			"%d terminals in use, %d agents executing", o.terminals.InUse(), executing))
	}

	// The completed set must be dependency-closed.
	for _, id := range o.commands.completedIDs() {
		cmd, ok := o.commands.get(id)
		if !ok {
			violations = append(violations, fmt.Sprintf(
				"completed set contains unknown command %s", id))
			continue
		}
		for _, dep := range cmd.DependsOn {
			if !o.commands.isCompleted(dep) {
				violations = append(violations, fmt.Sprintf(
					"%s completed before its dependency %s", id, dep))
			}
		}
	}

	// Every execution must reference a real agent and command, and a
	// running execution must be mirrored by its agent's state.
	for _, exec := range o.execs.allRecords() {
		agent, ok := o.agents.get(exec.AgentID)
		if !ok {
			violations = append(violations, fmt.Sprintf(
				"%s references unknown agent %s", exec.ID, exec.AgentID))
			continue
		}
		if _, ok := o.commands.get(exec.CommandID); !ok {
			violations = append(violations, fmt.Sprintf(
				"%s references unknown command %s", exec.ID, exec.CommandID))
		}
		if exec.State == models.ExecutionRunning {
			if agent.State != models.AgentExecuting || agent.ExecutionID == nil || *agent.ExecutionID != exec.ID {
				violations = append(violations, fmt.Sprintf(
					"%s is running but %s is %s", exec.ID, agent.ID, agent.State))
			}
			if agent.CommandID == nil || *agent.CommandID != exec.CommandID {
				violations = append(violations, fmt.Sprintf(
					"%s runs %s but its agent is bound elsewhere", exec.ID, exec.CommandID))
			}
		}
	}

	return violations
}
