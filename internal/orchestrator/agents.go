package orchestrator

import (
	"termweave/pkg/models"
)

// agentTable stores every spawned agent, keyed by id. Agents are never
// removed; the pool only grows up to the configured bound.
type agentTable struct {
	agents    map[models.AgentID]*models.Agent
	order     []models.AgentID
	maxAgents int
	nextID    models.AgentID
}

func newAgentTable(maxAgents int) *agentTable {
	return &agentTable{
		agents:    make(map[models.AgentID]*models.Agent),
		maxAgents: maxAgents,
		nextID:    1,
	}
}

// spawn creates a new idle agent with the given capabilities.
func (t *agentTable) spawn(capabilities []models.Capability) (*models.Agent, error) {
	if len(t.agents) >= t.maxAgents {
		return nil, ErrMaxAgentsReached
	}

	id := t.nextID
	t.nextID++

	caps := make([]models.Capability, len(capabilities))
	copy(caps, capabilities)

	agent := models.NewAgent(id, caps)
	t.agents[id] = agent
	t.order = append(t.order, id)
	return agent, nil
}

func (t *agentTable) get(id models.AgentID) (*models.Agent, bool) {
	agent, ok := t.agents[id]
	return agent, ok
}

// all returns every agent in ascending id order.
func (t *agentTable) all() []*models.Agent {
	agents := make([]*models.Agent, 0, len(t.agents))
	for _, id := range t.order {
		agents = append(agents, t.agents[id])
	}
	return agents
}

// idle returns idle agents in ascending id order.
func (t *agentTable) idle() []*models.Agent {
	var idle []*models.Agent
	for _, id := range t.order {
		if agent := t.agents[id]; agent.State == models.AgentIdle {
			idle = append(idle, agent)
		}
	}
	return idle
}

// inState returns agents in the given state, ascending id order.
func (t *agentTable) inState(state models.AgentState) []*models.Agent {
	var out []*models.Agent
	for _, id := range t.order {
		if agent := t.agents[id]; agent.State == state {
			out = append(out, agent)
		}
	}
	return out
}

// boundCommands returns the set of command ids currently bound to any
// agent. A binding lasts from assignment until the agent is reset.
func (t *agentTable) boundCommands() map[models.CommandID]bool {
	bound := make(map[models.CommandID]bool)
	for _, agent := range t.agents {
		if agent.CommandID != nil {
			bound[*agent.CommandID] = true
		}
	}
	return bound
}

func (t *agentTable) size() int {
	return len(t.agents)
}
