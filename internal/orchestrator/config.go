package orchestrator

// Config holds the orchestrator's capacity limits. The config is
// immutable for the orchestrator's lifetime.
type Config struct {
	// MaxAgents bounds the agent pool.
	MaxAgents int
	// MaxTerminals bounds the terminal slot pool.
	MaxTerminals int
	// MaxQueueSize bounds the number of unresolved commands held.
	MaxQueueSize int
	// MaxExecutions bounds concurrent executions, independently of
	// MaxTerminals. The effective concurrency ceiling is the smaller of
	// the two.
	MaxExecutions int
}

// DefaultConfig returns the default capacity limits.
func DefaultConfig() Config {
	return Config{
		MaxAgents:     10,
		MaxTerminals:  5,
		MaxQueueSize:  100,
		MaxExecutions: 5,
	}
}
