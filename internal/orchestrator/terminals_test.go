package orchestrator

import (
	"errors"
	"testing"
)

func TestTerminalPoolAcquireRelease(t *testing.T) {
	p := NewTerminalPool(2)

	if p.Capacity() != 2 || p.InUse() != 0 || p.Available() != 2 {
		t.Fatalf("fresh pool = cap %d, in use %d, available %d", p.Capacity(), p.InUse(), p.Available())
	}

	if err := p.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := p.Acquire(); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if p.HasAvailable() {
		t.Error("HasAvailable = true at capacity")
	}
	if err := p.Acquire(); !errors.Is(err, ErrNoTerminalAvailable) {
		t.Errorf("third acquire error = %v, want ErrNoTerminalAvailable", err)
	}

	if err := p.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if p.InUse() != 1 || p.Available() != 1 {
		t.Errorf("after release: in use %d, available %d, want 1/1", p.InUse(), p.Available())
	}
}

func TestTerminalPoolReleaseWithoutAcquire(t *testing.T) {
	p := NewTerminalPool(1)
	if err := p.Release(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("release error = %v, want ErrInvalidStateTransition", err)
	}
}
