package main

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MotionEvent is one edge reported by the PIR sensor.
type MotionEvent struct {
	Pin    int       `json:"pin"`
	Motion bool      `json:"motion"`
	At     time.Time `json:"at"`
}

// MotionStatus summarises the sensor for /api/status.
type MotionStatus struct {
	Enabled    bool      `json:"enabled"`
	Motion     bool      `json:"motion"`
	Count      int       `json:"count"`
	LastMotion time.Time `json:"last_motion,omitempty"`
}

// MotionMonitor polls a PIR input and reports motion / no-motion edges.
// The no-motion edge is delayed until the input has been idle for hold, so
// a sensor that flickers during continuous movement reports one event.
type MotionMonitor struct {
	pin      int
	mode     string
	interval time.Duration
	hold     time.Duration
	read     func(pin int) bool
	onEdge   func(MotionEvent)

	mu         sync.Mutex
	motion     bool
	lastActive time.Time
	lastMotion time.Time
	count      int
}

// NewMotionMonitor builds a monitor for cfg.  read samples the pin and
// onEdge receives every edge; both are called from Run's goroutine.
func NewMotionMonitor(cfg PIRConfig, read func(int) bool, onEdge func(MotionEvent)) *MotionMonitor {
	return &MotionMonitor{
		pin:      cfg.Pin,
		mode:     strings.ToUpper(cfg.Mode),
		interval: time.Duration(cfg.PollMs) * time.Millisecond,
		hold:     time.Duration(cfg.HoldMs) * time.Millisecond,
		read:     read,
		onEdge:   onEdge,
	}
}

// active interprets the raw level according to the wiring mode.  For
// normally closed (NC) outputs a low level means motion; anything else is
// treated as normally open.
func (m *MotionMonitor) active() bool {
	state := m.read(m.pin)
	if m.mode == "NC" {
		return !state
	}
	return state
}

// Run polls until ctx is done.
func (m *MotionMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if ev, ok := m.sample(now, m.active()); ok && m.onEdge != nil {
				m.onEdge(ev)
			}
		}
	}
}

// sample feeds one reading taken at now and returns an edge if the
// reported state changed.
func (m *MotionMonitor) sample(now time.Time, active bool) (MotionEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active {
		m.lastActive = now
		if !m.motion {
			m.motion = true
			m.lastMotion = now
			m.count++
			return MotionEvent{Pin: m.pin, Motion: true, At: now}, true
		}
		return MotionEvent{}, false
	}
	if m.motion && now.Sub(m.lastActive) >= m.hold {
		m.motion = false
		return MotionEvent{Pin: m.pin, Motion: false, At: now}, true
	}
	return MotionEvent{}, false
}

// Status returns the current sensor summary.
func (m *MotionMonitor) Status() MotionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MotionStatus{Enabled: true, Motion: m.motion, Count: m.count, LastMotion: m.lastMotion}
}
