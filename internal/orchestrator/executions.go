package orchestrator

import (
	"termweave/pkg/models"
)

// executionTable stores every execution record, keyed by id. Records
// remain inspectable after they reach a terminal state.
type executionTable struct {
	executions map[models.ExecutionID]*models.Execution
	order      []models.ExecutionID
	maxActive  int
	nextID     models.ExecutionID
}

func newExecutionTable(maxActive int) *executionTable {
	return &executionTable{
		executions: make(map[models.ExecutionID]*models.Execution),
		maxActive:  maxActive,
		nextID:     1,
	}
}

// canStart reports whether another execution may begin under the
// concurrency ceiling.
func (t *executionTable) canStart() bool {
	return t.activeCount() < t.maxActive
}

// start creates a running execution record.
func (t *executionTable) start(agentID models.AgentID, cmdID models.CommandID) (*models.Execution, error) {
	if !t.canStart() {
		return nil, ErrMaxExecutionsReached
	}

	id := t.nextID
	t.nextID++

	exec := models.NewExecution(id, agentID, cmdID)
	t.executions[id] = exec
	t.order = append(t.order, id)
	return exec, nil
}

func (t *executionTable) get(id models.ExecutionID) (*models.Execution, bool) {
	exec, ok := t.executions[id]
	return exec, ok
}

// activeCount returns the number of running executions.
func (t *executionTable) activeCount() int {
	count := 0
	for _, exec := range t.executions {
		if exec.State == models.ExecutionRunning {
			count++
		}
	}
	return count
}

// running returns running executions in ascending id order.
func (t *executionTable) running() []*models.Execution {
	var out []*models.Execution
	for _, id := range t.order {
		if exec := t.executions[id]; exec.State == models.ExecutionRunning {
			out = append(out, exec)
		}
	}
	return out
}

// findByAgent returns the running execution for the given agent, if any.
func (t *executionTable) findByAgent(agentID models.AgentID) (*models.Execution, bool) {
	for _, id := range t.order {
		exec := t.executions[id]
		if exec.AgentID == agentID && exec.State == models.ExecutionRunning {
			return exec, true
		}
	}
	return nil, false
}

// allRecords returns every execution record in ascending id order.
func (t *executionTable) allRecords() []*models.Execution {
	out := make([]*models.Execution, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.executions[id])
	}
	return out
}

func (t *executionTable) size() int {
	return len(t.executions)
}
