package orchestrator

import (
	"termweave/pkg/models"
)

// Snapshot is a point-in-time view of orchestrator state. All slices
// and maps are copies; mutating a snapshot never affects the
// orchestrator.
type Snapshot struct {
	// Config is the orchestrator's capacity limits.
	Config Config
	// AgentStates maps each agent to its state at snapshot time.
	AgentStates map[models.AgentID]models.AgentState
	// QueuedCommands is the total number of commands ever queued.
	QueuedCommands int
	// ReadyCommands are the commands ready for assignment, ascending.
	ReadyCommands []models.CommandID
	// CompletedCommands is the completed set, ascending.
	CompletedCommands []models.CommandID
	// ActiveExecutions is the number of running executions.
	ActiveExecutions int
	// TotalExecutions is the number of executions ever started.
	TotalExecutions int
	// TerminalsInUse is the number of occupied terminal slots.
	TerminalsInUse int
	// TerminalsAvailable is the number of free terminal slots.
	TerminalsAvailable int
	// PendingApprovals is the number of undecided approval requests.
	PendingApprovals int
}

// Snapshot captures the current orchestrator state.
func (o *Orchestrator) Snapshot() Snapshot {
	states := make(map[models.AgentID]models.AgentState)
	for _, agent := range o.agents.all() {
		states[agent.ID] = agent.State
	}

	return Snapshot{
		Config:             o.config,
		AgentStates:        states,
		QueuedCommands:     o.commands.size(),
		ReadyCommands:      o.ReadyCommands(),
		CompletedCommands:  o.commands.completedIDs(),
		ActiveExecutions:   o.execs.activeCount(),
		TotalExecutions:    o.execs.size(),
		TerminalsInUse:     o.terminals.InUse(),
		TerminalsAvailable: o.terminals.Available(),
		PendingApprovals:   o.approvals.PendingCount(),
	}
}
