package gateway

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(nil)
	if s.State() != StateUninitialized {
		t.Fatalf("new session state: %s", s.State())
	}

	steps := []SessionState{StateInitializing, StateQRPending, StateReady}
	for _, next := range steps {
		if err := s.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if !s.Ready() {
		t.Fatalf("expected ready session")
	}

	if err := s.Transition(StateDestroyed); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := s.Transition(StateReady); err == nil {
		t.Fatalf("destroyed session must not transition")
	}
}

func TestSessionRejectsSkips(t *testing.T) {
	s := NewSession(nil)
	if err := s.Transition(StateReady); err == nil {
		t.Fatalf("UNINITIALIZED -> READY must be rejected")
	}
}

func TestReconnectBackoffGrowsAndCaps(t *testing.T) {
	sup := &ReconnectSupervisor{MaxAttempts: 10, BaseDelay: time.Second}

	d1, ok := sup.NextDelay()
	if !ok || d1 != time.Second {
		t.Fatalf("first delay: %v ok=%v", d1, ok)
	}
	d2, _ := sup.NextDelay()
	if d2 != 2*time.Second {
		t.Fatalf("second delay: %v", d2)
	}

	var last time.Duration
	for i := 0; i < 8; i++ {
		last, ok = sup.NextDelay()
		if !ok {
			break
		}
	}
	if last > time.Minute {
		t.Fatalf("delay not capped: %v", last)
	}
}

func TestReconnectBudgetExhausts(t *testing.T) {
	sup := &ReconnectSupervisor{MaxAttempts: 2, BaseDelay: time.Second}
	if _, ok := sup.NextDelay(); !ok {
		t.Fatalf("attempt 1 should be allowed")
	}
	if _, ok := sup.NextDelay(); !ok {
		t.Fatalf("attempt 2 should be allowed")
	}
	if _, ok := sup.NextDelay(); ok {
		t.Fatalf("attempt 3 should exhaust the budget")
	}

	sup.Reset()
	if _, ok := sup.NextDelay(); !ok {
		t.Fatalf("reset should restore the budget")
	}
}
