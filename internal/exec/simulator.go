package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"termweave/pkg/models"
)

// Script describes the simulated outcome for a command payload.
type Script struct {
	// Outcome is the ending to report. Defaults to OutcomeCompleted.
	Outcome Outcome
	// ExitCode is the exit code to report.
	ExitCode int
	// FailureReason is reported for failed outcomes.
	FailureReason string
	// Delay overrides the simulator's default latency.
	Delay time.Duration
}

// Simulator is a deterministic in-process executor. It runs no OS
// processes: each started execution sleeps for its scripted delay and
// then reports its scripted outcome. Unscripted payloads succeed with
// exit code zero after the default latency.
//
// Safe for concurrent use.
type Simulator struct {
	mu       sync.Mutex
	scripts  map[string]Script
	cancels  map[models.ExecutionID]context.CancelFunc
	results  chan Result
	done     chan struct{}
	latency  time.Duration
	wg       sync.WaitGroup
	closed   bool
	closeOne sync.Once
}

// NewSimulator creates a simulator with the given default latency and
// result buffer size.
func NewSimulator(latency time.Duration, buffer int) *Simulator {
	if buffer <= 0 {
		buffer = 64
	}
	return &Simulator{
		scripts: make(map[string]Script),
		cancels: make(map[models.ExecutionID]context.CancelFunc),
		results: make(chan Result, buffer),
		done:    make(chan struct{}),
		latency: latency,
	}
}

// ScriptOutcome registers the outcome to report for executions whose
// payload matches exactly.
func (s *Simulator) ScriptOutcome(payload string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[payload] = script
}

// Start begins simulating the request.
func (s *Simulator) Start(ctx context.Context, req StartRequest) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("executor closed")
	}
	script, scripted := s.scripts[req.Payload]
	if !scripted {
		script = Script{Outcome: OutcomeCompleted}
	}
	if script.Outcome == "" {
		script.Outcome = OutcomeCompleted
	}
	delay := script.Delay
	if delay == 0 {
		delay = s.latency
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancels[req.ExecutionID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx, req, script, delay)
	return nil
}

func (s *Simulator) run(ctx context.Context, req StartRequest, script Script, delay time.Duration) {
	defer s.wg.Done()

	result := Result{
		ExecutionID: req.ExecutionID,
		AgentID:     req.AgentID,
		CommandID:   req.CommandID,
		Outcome:     script.Outcome,
		ExitCode:    script.ExitCode,
	}
	if script.Outcome == OutcomeFailed {
		result.FailureReason = script.FailureReason
		if result.FailureReason == "" {
			result.FailureReason = "simulated failure"
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		result.Outcome = OutcomeCancelled
		result.ExitCode = 0
		result.FailureReason = ""
	}

	s.mu.Lock()
	delete(s.cancels, req.ExecutionID)
	s.mu.Unlock()

	select {
	case s.results <- result:
	case <-s.done:
	}
}

// Results returns the channel on which finished executions are reported.
func (s *Simulator) Results() <-chan Result {
	return s.results
}

// Cancel stops a running simulated execution. Unknown ids are ignored.
func (s *Simulator) Cancel(id models.ExecutionID) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close cancels all in-flight executions, waits for their goroutines,
// and closes the results channel. Safe to call more than once.
func (s *Simulator) Close() {
	s.closeOne.Do(func() {
		s.mu.Lock()
		s.closed = true
		for _, cancel := range s.cancels {
			cancel()
		}
		s.mu.Unlock()

		close(s.done)
		s.wg.Wait()
		close(s.results)
	})
}

// Verify Simulator implements Executor at compile time.
var _ Executor = (*Simulator)(nil)
