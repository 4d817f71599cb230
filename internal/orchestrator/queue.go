package orchestrator

import (
	"sort"
	"time"

	"termweave/pkg/models"
)

// commandTable stores every submitted command, keyed by id, and tracks
// the completed set used for dependency resolution. Commands are never
// structurally deleted; they persist for audit and dependency checks.
type commandTable struct {
	commands  map[models.CommandID]*models.Command
	order     []models.CommandID
	completed map[models.CommandID]bool
	maxQueue  int
	nextID    models.CommandID
}

func newCommandTable(maxQueue int) *commandTable {
	return &commandTable{
		commands:  make(map[models.CommandID]*models.Command),
		completed: make(map[models.CommandID]bool),
		maxQueue:  maxQueue,
		nextID:    1,
	}
}

// enqueue assigns a fresh id and stores the command. Dependencies are
// stored as given: forward or unknown ids are accepted optimistically,
// and no cycle check is performed. A cyclic dependency set simply never
// becomes ready.
func (t *commandTable) enqueue(cmd *models.Command) (models.CommandID, error) {
	if t.unresolvedCount() >= t.maxQueue {
		return 0, ErrQueueFull
	}

	id := t.nextID
	t.nextID++

	cmd.ID = id
	cmd.QueuedAt = time.Now()
	if len(cmd.RequiredCapabilities) == 0 {
		cmd.RequiredCapabilities = []models.Capability{cmd.Type.RequiredCapability()}
	}

	t.commands[id] = cmd
	t.order = append(t.order, id)
	return id, nil
}

// approve sets the approved flag. Idempotent.
func (t *commandTable) approve(id models.CommandID) error {
	cmd, ok := t.commands[id]
	if !ok {
		return ErrCommandNotFound
	}
	cmd.Approved = true
	return nil
}

func (t *commandTable) get(id models.CommandID) (*models.Command, bool) {
	cmd, ok := t.commands[id]
	return cmd, ok
}

// ready returns, in ascending id order, every command that is approved,
// has all dependencies completed, is not itself completed, and is not
// bound to any agent. The result is recomputed on every call.
func (t *commandTable) ready(bound map[models.CommandID]bool) []models.CommandID {
	var ready []models.CommandID
	for _, id := range t.order {
		cmd := t.commands[id]
		if !cmd.Approved || t.completed[id] || bound[id] {
			continue
		}
		if !t.dependenciesSatisfied(cmd) {
			continue
		}
		ready = append(ready, id)
	}
	return ready
}

func (t *commandTable) dependenciesSatisfied(cmd *models.Command) bool {
	for _, dep := range cmd.DependsOn {
		if !t.completed[dep] {
			return false
		}
	}
	return true
}

// markCompleted records the command in the completed set. Only commands
// whose execution ended successfully belong here.
func (t *commandTable) markCompleted(id models.CommandID) {
	t.completed[id] = true
}

func (t *commandTable) isCompleted(id models.CommandID) bool {
	return t.completed[id]
}

// completedIDs returns the completed set in ascending order.
func (t *commandTable) completedIDs() []models.CommandID {
	ids := make([]models.CommandID, 0, len(t.completed))
	for id := range t.completed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// unresolvedCount counts commands not yet completed. Cancelled and
// failed commands remain unresolved because a retry is still possible.
func (t *commandTable) unresolvedCount() int {
	return len(t.commands) - len(t.completed)
}

func (t *commandTable) size() int {
	return len(t.commands)
}
