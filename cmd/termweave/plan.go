package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"termweave/internal/graph"
	"termweave/pkg/models"
)

// Plan is a YAML-described batch of agents and commands.
type Plan struct {
	// Name labels the plan in output and history.
	Name string `yaml:"name"`
	// Agents describes the agents to spawn before queueing.
	Agents []PlanAgent `yaml:"agents"`
	// Commands describes the work, in order. Dependency references are
	// 1-based positions within this list.
	Commands []PlanCommand `yaml:"commands"`
}

// PlanAgent is one agent entry in a plan.
type PlanAgent struct {
	// Capabilities the agent is spawned with.
	Capabilities []string `yaml:"capabilities"`
}

// PlanCommand is one command entry in a plan.
type PlanCommand struct {
	// Type is the command type (shell, file, net, git, ...).
	Type string `yaml:"type"`
	// Payload is the opaque command payload.
	Payload string `yaml:"payload"`
	// Description is an optional human label.
	Description string `yaml:"description"`
	// Capabilities overrides the capability set implied by the type.
	Capabilities []string `yaml:"capabilities"`
	// DependsOn lists 1-based positions of earlier commands this one
	// waits for.
	DependsOn []int `yaml:"depends_on"`
	// Approved pre-approves the command.
	Approved bool `yaml:"approved"`
}

// LoadPlan reads and validates a plan file. Dependency references are
// resolved against list positions, and the resulting graph is rejected
// if it contains unknown references or cycles.
func LoadPlan(path string) (*Plan, []*models.Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(plan.Commands) == 0 {
		return nil, nil, fmt.Errorf("plan %s has no commands", path)
	}
	if len(plan.Agents) == 0 {
		return nil, nil, fmt.Errorf("plan %s has no agents", path)
	}
	if plan.Name == "" {
		plan.Name = path
	}

	commands, err := plan.buildCommands()
	if err != nil {
		return nil, nil, err
	}

	g := graph.New()
	if err := g.Build(commands); err != nil {
		return nil, nil, fmt.Errorf("invalid dependency graph: %w", err)
	}

	return &plan, commands, nil
}

// AgentCapabilities resolves each plan agent's capability set.
func (p *Plan) AgentCapabilities() ([][]models.Capability, error) {
	var out [][]models.Capability
	for i, agent := range p.Agents {
		if len(agent.Capabilities) == 0 {
			return nil, fmt.Errorf("agent %d has no capabilities", i+1)
		}
		caps, err := parseCapabilities(agent.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i+1, err)
		}
		out = append(out, caps)
	}
	return out, nil
}

// buildCommands converts plan entries to commands. Ids are assigned
// positionally so that a fresh orchestrator queueing them in order
// reproduces the same ids.
func (p *Plan) buildCommands() ([]*models.Command, error) {
	commands := make([]*models.Command, 0, len(p.Commands))
	for i, entry := range p.Commands {
		cmdType := models.CommandType(entry.Type)
		if !cmdType.Valid() {
			return nil, fmt.Errorf("command %d: unknown type %q", i+1, entry.Type)
		}
		if entry.Payload == "" {
			return nil, fmt.Errorf("command %d: empty payload", i+1)
		}

		cmd := models.NewCommand(cmdType, entry.Payload)
		cmd.ID = models.CommandID(i + 1)
		cmd.Description = entry.Description
		cmd.Approved = entry.Approved

		if len(entry.Capabilities) > 0 {
			caps, err := parseCapabilities(entry.Capabilities)
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i+1, err)
			}
			cmd.RequiredCapabilities = caps
		}

		for _, dep := range entry.DependsOn {
			if dep < 1 || dep > len(p.Commands) {
				return nil, fmt.Errorf("command %d: dependency %d out of range", i+1, dep)
			}
			if dep == i+1 {
				return nil, fmt.Errorf("command %d depends on itself", i+1)
			}
			cmd.DependsOn = append(cmd.DependsOn, models.CommandID(dep))
		}

		commands = append(commands, cmd)
	}
	return commands, nil
}

func parseCapabilities(names []string) ([]models.Capability, error) {
	var caps []models.Capability
	for _, name := range names {
		c := models.Capability(name)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		caps = append(caps, c)
	}
	return caps, nil
}
