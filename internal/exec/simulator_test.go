package exec

import (
	"context"
	"testing"
	"time"
)

func TestSimulatorDefaultSuccess(t *testing.T) {
	s := NewSimulator(time.Millisecond, 4)
	defer s.Close()

	err := s.Start(context.Background(), StartRequest{
		ExecutionID: 1,
		AgentID:     1,
		CommandID:   1,
		Payload:     "echo hello",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case res := <-s.Results():
		if res.ExecutionID != 1 || res.Outcome != OutcomeCompleted || res.ExitCode != 0 {
			t.Errorf("result = %+v, want completed exec-1 exit 0", res)
		}
	case <-time.After(time.Second):
		t.Fatal("no result within a second")
	}
}

func TestSimulatorScriptedFailure(t *testing.T) {
	s := NewSimulator(time.Millisecond, 4)
	defer s.Close()

	s.ScriptOutcome("bad command", Script{
		Outcome:       OutcomeFailed,
		ExitCode:      127,
		FailureReason: "command not found",
	})

	if err := s.Start(context.Background(), StartRequest{ExecutionID: 7, Payload: "bad command"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case res := <-s.Results():
		if res.Outcome != OutcomeFailed || res.ExitCode != 127 || res.FailureReason != "command not found" {
			t.Errorf("result = %+v, want scripted failure", res)
		}
	case <-time.After(time.Second):
		t.Fatal("no result within a second")
	}
}

func TestSimulatorCancel(t *testing.T) {
	s := NewSimulator(10*time.Second, 4)
	defer s.Close()

	if err := s.Start(context.Background(), StartRequest{ExecutionID: 3, Payload: "sleep"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Cancel(3)

	select {
	case res := <-s.Results():
		if res.ExecutionID != 3 || res.Outcome != OutcomeCancelled {
			t.Errorf("result = %+v, want cancelled exec-3", res)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel produced no result within a second")
	}
}

func TestSimulatorCloseStopsWork(t *testing.T) {
	s := NewSimulator(10*time.Second, 4)
	if err := s.Start(context.Background(), StartRequest{ExecutionID: 1, Payload: "sleep"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return within a second")
	}

	// Results channel is closed after Close.
	for range s.Results() {
	}

	if err := s.Start(context.Background(), StartRequest{ExecutionID: 2}); err == nil {
		t.Error("Start after Close succeeded")
	}
}
