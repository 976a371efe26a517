package gateway

import (
	"errors"
	"sync"
	"time"
)

// SessionState is the explicit lifecycle of one paired gateway session.
// There is no package-level session; the value is constructed once and
// injected wherever sending is needed.
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateInitializing  SessionState = "INITIALIZING"
	StateQRPending     SessionState = "QR_PENDING"
	StateReady         SessionState = "READY"
	StateDestroyed     SessionState = "DESTROYED"
)

var ErrSessionNotReady = errors.New("gateway session not ready")

var validTransitions = map[SessionState][]SessionState{
	StateUninitialized: {StateInitializing},
	StateInitializing:  {StateQRPending, StateReady, StateDestroyed},
	StateQRPending:     {StateReady, StateDestroyed},
	StateReady:         {StateInitializing, StateDestroyed},
	StateDestroyed:     {},
}

// Session pairs the HTTP client with the lifecycle state machine.
type Session struct {
	Client *Client

	mu    sync.Mutex
	state SessionState
}

func NewSession(client *Client) *Session {
	return &Session{Client: client, state: StateUninitialized}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next if the state machine allows it.
func (s *Session) Transition(next SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range validTransitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return errors.New("invalid session transition: " + string(s.state) + " -> " + string(next))
}

// Ready reports whether the session can send.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}

// ReconnectSupervisor owns the reconnect loop's bookkeeping. Attempts are a
// field of this value, not ambient state.
type ReconnectSupervisor struct {
	Session     *Session
	MaxAttempts int
	BaseDelay   time.Duration

	attempts int
}

// NextDelay registers one failed attempt and returns how long to wait
// before the next one, or false once the budget is exhausted.
func (r *ReconnectSupervisor) NextDelay() (time.Duration, bool) {
	r.attempts++
	if r.MaxAttempts > 0 && r.attempts > r.MaxAttempts {
		return 0, false
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < r.attempts; i++ {
		delay *= 2
		if delay >= time.Minute {
			return time.Minute, true
		}
	}
	return delay, true
}

// Reset clears the attempt counter after a successful reconnect.
func (r *ReconnectSupervisor) Reset() { r.attempts = 0 }

func (r *ReconnectSupervisor) Attempts() int { return r.attempts }
