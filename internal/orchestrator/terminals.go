package orchestrator

import "fmt"

// TerminalPool is a bounded counting resource. Slots are fungible: the
// pool tracks how many are in use, not which. A slot is acquired when an
// execution begins and released when it ends.
type TerminalPool struct {
	capacity int
	inUse    int
}

// NewTerminalPool creates a pool with the given capacity.
func NewTerminalPool(capacity int) *TerminalPool {
	return &TerminalPool{capacity: capacity}
}

// Acquire takes one slot. Returns ErrNoTerminalAvailable when the pool
// is exhausted.
func (p *TerminalPool) Acquire() error {
	if p.inUse >= p.capacity {
		return ErrNoTerminalAvailable
	}
	p.inUse++
	return nil
}

// Release returns one slot to the pool. Releasing with no slots in use
// indicates a pairing bug in the caller.
func (p *TerminalPool) Release() error {
	if p.inUse <= 0 {
		return fmt.Errorf("%w: release with no terminals in use", ErrInvalidStateTransition)
	}
	p.inUse--
	return nil
}

// Capacity returns the total number of slots.
func (p *TerminalPool) Capacity() int {
	return p.capacity
}

// InUse returns the number of slots currently held.
func (p *TerminalPool) InUse() int {
	return p.inUse
}

// Available returns the number of free slots.
func (p *TerminalPool) Available() int {
	return p.capacity - p.inUse
}

// HasAvailable returns true if at least one slot is free.
func (p *TerminalPool) HasAvailable() bool {
	return p.inUse < p.capacity
}
