package actuator

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Apply after Close.
var ErrClosed = errors.New("actuator closed")

// Simulated records every applied duty cycle.  It stands in for hardware on
// development machines and in tests.
type Simulated struct {
	mu      sync.Mutex
	history []float64
	closed  bool
}

// NewSimulated returns an empty Simulated actuator.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Apply implements Actuator.
func (s *Simulated) Apply(duty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.history = append(s.history, clampDuty(duty))
	return nil
}

// Close implements Actuator.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Last returns the most recently applied duty.
func (s *Simulated) Last() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return 0, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of every applied duty in order.
func (s *Simulated) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.history))
	copy(out, s.history)
	return out
}

// Closed reports whether Close has been called.
func (s *Simulated) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
