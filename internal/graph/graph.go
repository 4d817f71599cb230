// Package graph provides a dependency graph for command plans.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"termweave/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the plan.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed acyclic graph of command
// dependencies. Commands are nodes, and edges represent "blocked by"
// relationships.
//
// The orchestrator itself accepts dependency sets optimistically; this
// graph exists for callers that want to validate a whole plan up front
// before queueing it.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps command ID to the command itself.
	nodes map[models.CommandID]*models.Command
	// order preserves insertion order for deterministic traversal.
	order []models.CommandID
	// edges maps command ID to IDs of commands it depends on.
	edges map[models.CommandID][]models.CommandID
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[models.CommandID]*models.Command),
		edges: make(map[models.CommandID][]models.CommandID),
	}
}

// Build constructs the dependency graph from a slice of commands.
// Returns an error if a cycle is detected or dependencies reference
// unknown commands.
func (g *DependencyGraph) Build(commands []*models.Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, cmd := range commands {
		g.nodes[cmd.ID] = cmd
		g.order = append(g.order, cmd.ID)
		g.edges[cmd.ID] = nil
	}

	for _, cmd := range commands {
		for _, depID := range cmd.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("%s depends on unknown command %s", cmd.ID, depID)
			}
			g.edges[cmd.ID] = append(g.edges[cmd.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[models.CommandID]int)

	var visit func(id models.CommandID) bool
	visit = func(id models.CommandID) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge, cycle found.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalSort returns command IDs in an order where all dependencies
// come before the commands that depend on them.
// Returns an error if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]models.CommandID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[models.CommandID]bool)
	var result []models.CommandID

	var visit func(id models.CommandID)
	visit = func(id models.CommandID) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// GetCommand returns the command for a given ID, or nil if not found.
func (g *DependencyGraph) GetCommand(id models.CommandID) *models.Command {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of commands in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of commands that the given command
// depends on.
func (g *DependencyGraph) Dependencies(id models.CommandID) []models.CommandID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// Dependents returns the IDs of commands that depend on the given
// command, in insertion order.
func (g *DependencyGraph) Dependents(id models.CommandID) []models.CommandID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []models.CommandID
	for _, nodeID := range g.order {
		for _, depID := range g.edges[nodeID] {
			if depID == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	return dependents
}
