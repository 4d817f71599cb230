// Package models defines the shared domain types for termweave:
// capabilities, commands, agents, and executions.
package models

// Capability declares a class of work an agent is qualified to perform.
// Commands are matched to agents by comparing the command's required
// capabilities against the agent's capability set.
type Capability string

const (
	// CapabilityShell allows running shell commands.
	CapabilityShell Capability = "shell"
	// CapabilityFile allows file operations.
	CapabilityFile Capability = "file"
	// CapabilityNet allows network operations.
	CapabilityNet Capability = "net"
	// CapabilityGit allows git operations.
	CapabilityGit Capability = "git"
	// CapabilityPackage allows package manager operations.
	CapabilityPackage Capability = "package"
	// CapabilityContainer allows container operations.
	CapabilityContainer Capability = "container"
	// CapabilityDatabase allows database operations.
	CapabilityDatabase Capability = "database"
	// CapabilityAdmin allows privileged administrative operations.
	CapabilityAdmin Capability = "admin"
)

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityShell, CapabilityFile, CapabilityNet, CapabilityGit,
		CapabilityPackage, CapabilityContainer, CapabilityDatabase, CapabilityAdmin:
		return true
	default:
		return false
	}
}

// HasAll returns true if the set contains every capability in required.
func HasAll(set []Capability, required []Capability) bool {
	for _, req := range required {
		found := false
		for _, c := range set {
			if c == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
