package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMotionMonitorEdgesWithHold(t *testing.T) {
	m := NewMotionMonitor(PIRConfig{Pin: 17, Mode: "NO", PollMs: 100, HoldMs: 1000}, nil, nil)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	steps := []struct {
		ms       int
		active   bool
		wantEdge bool
		motion   bool
	}{
		{0, false, false, false},
		{100, true, true, true},
		{200, true, false, true},
		{300, false, false, true},  // idle 100ms, inside hold
		{400, true, false, true},   // flicker back, same motion
		{1300, false, false, true}, // idle 900ms
		{1400, false, true, false}, // idle 1000ms, clears
		{1500, false, false, false},
		{1600, true, true, true},
	}
	for _, st := range steps {
		ev, ok := m.sample(at(st.ms), st.active)
		if ok != st.wantEdge {
			t.Fatalf("t=%dms edge = %v, want %v", st.ms, ok, st.wantEdge)
		}
		if ok && (ev.Motion != st.motion || ev.Pin != 17 || !ev.At.Equal(at(st.ms))) {
			t.Fatalf("t=%dms event = %+v", st.ms, ev)
		}
		if got := m.Status().Motion; got != st.motion {
			t.Fatalf("t=%dms motion = %v, want %v", st.ms, got, st.motion)
		}
	}
	if c := m.Status().Count; c != 2 {
		t.Fatalf("Count = %d, want 2", c)
	}
}

func TestMotionMonitorModes(t *testing.T) {
	high := func(int) bool { return true }
	low := func(int) bool { return false }

	tests := []struct {
		mode string
		read func(int) bool
		want bool
	}{
		{"NO", high, true},
		{"NO", low, false},
		{"nc", high, false},
		{"NC", low, true},
		{"", high, true},
	}
	for _, tt := range tests {
		m := NewMotionMonitor(PIRConfig{Pin: 17, Mode: tt.mode, PollMs: 10}, tt.read, nil)
		if got := m.active(); got != tt.want {
			t.Errorf("mode %q active() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestMotionMonitorRunReportsEdges(t *testing.T) {
	var level atomic.Bool
	edges := make(chan MotionEvent, 4)
	m := NewMotionMonitor(PIRConfig{Pin: 17, Mode: "NO", PollMs: 1, HoldMs: 0},
		func(int) bool { return level.Load() },
		func(ev MotionEvent) { edges <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	level.Store(true)
	select {
	case ev := <-edges:
		if !ev.Motion {
			t.Fatalf("first edge = %+v, want motion", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for motion edge")
	}

	level.Store(false)
	select {
	case ev := <-edges:
		if ev.Motion {
			t.Fatalf("second edge = %+v, want cleared", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for clear edge")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
