// Package orchestrator coordinates capability-tagged agents executing
// commands inside a bounded pool of terminal slots.
//
// The orchestrator is a single-writer, synchronous state machine: every
// public operation is a discrete transition that succeeds or fails
// immediately, and preconditions are checked before any mutation so a
// failed call never leaves partial state. The package performs no
// locking of its own; callers running concurrent agents must funnel all
// calls through a single serialization point (the runtime package does
// this with one mutex).
//
// Actual command execution happens outside this package. The
// orchestrator records intent (BeginExecution) and outcome
// (Complete/Fail/CancelExecution) reported back by an external executor.
// Every successful BeginExecution must be paired with exactly one
// outcome call so the terminal slot it acquired is released.
package orchestrator
