package models

import (
	"fmt"
	"time"
)

// CommandID identifies a queued command. IDs are assigned by the
// orchestrator at queue time, strictly increasing, and never reused.
type CommandID uint64

// String returns a short human-readable form, e.g. "cmd-3".
func (id CommandID) String() string {
	return fmt.Sprintf("cmd-%d", uint64(id))
}

// CommandType classifies a command by the kind of work it performs.
// Each type implies a required capability.
type CommandType string

const (
	// CommandShell is a shell command.
	CommandShell CommandType = "shell"
	// CommandFileOp is a file operation.
	CommandFileOp CommandType = "file_op"
	// CommandNetwork is a network operation.
	CommandNetwork CommandType = "network"
	// CommandGit is a git operation.
	CommandGit CommandType = "git"
	// CommandPackage is a package manager operation.
	CommandPackage CommandType = "package"
	// CommandContainer is a container operation.
	CommandContainer CommandType = "container"
	// CommandDatabase is a database operation.
	CommandDatabase CommandType = "database"
	// CommandAdmin is a privileged administrative operation.
	CommandAdmin CommandType = "admin"
)

// Valid returns true if the command type is a known value.
func (t CommandType) Valid() bool {
	switch t {
	case CommandShell, CommandFileOp, CommandNetwork, CommandGit,
		CommandPackage, CommandContainer, CommandDatabase, CommandAdmin:
		return true
	default:
		return false
	}
}

// RequiredCapability returns the capability implied by the command type.
func (t CommandType) RequiredCapability() Capability {
	switch t {
	case CommandShell:
		return CapabilityShell
	case CommandFileOp:
		return CapabilityFile
	case CommandNetwork:
		return CapabilityNet
	case CommandGit:
		return CapabilityGit
	case CommandPackage:
		return CapabilityPackage
	case CommandContainer:
		return CapabilityContainer
	case CommandDatabase:
		return CapabilityDatabase
	case CommandAdmin:
		return CapabilityAdmin
	default:
		return CapabilityShell
	}
}

// Command is a unit of work submitted to the orchestrator. Once queued,
// a command is immutable except for the Approved flag.
type Command struct {
	// ID is assigned by the orchestrator at queue time.
	ID CommandID `json:"id"`
	// Type classifies the command.
	Type CommandType `json:"type"`
	// Payload is the opaque command text; the orchestrator never parses it.
	Payload string `json:"payload"`
	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`
	// Approved gates assignment; only approved commands can be assigned.
	Approved bool `json:"approved"`
	// RequiredCapabilities lists capabilities an agent must hold to run
	// this command. If empty, the type's implied capability is used.
	RequiredCapabilities []Capability `json:"required_capabilities,omitempty"`
	// DependsOn lists command IDs that must complete before this command
	// becomes ready.
	DependsOn []CommandID `json:"depends_on,omitempty"`
	// QueuedAt is when the command was accepted by the orchestrator.
	QueuedAt time.Time `json:"queued_at"`
}

// NewCommand creates an unapproved command of the given type.
func NewCommand(t CommandType, payload string) *Command {
	return &Command{
		Type:                 t,
		Payload:              payload,
		RequiredCapabilities: []Capability{t.RequiredCapability()},
	}
}

// ShellCommand creates a pre-approved shell command. Convenient for
// callers that handle approval out of band.
func ShellCommand(payload string) *Command {
	cmd := NewCommand(CommandShell, payload)
	cmd.Approved = true
	return cmd
}

// Requirements returns the effective required capabilities: the explicit
// set if present, otherwise the type's implied capability.
func (c *Command) Requirements() []Capability {
	if len(c.RequiredCapabilities) > 0 {
		return c.RequiredCapabilities
	}
	return []Capability{c.Type.RequiredCapability()}
}
