package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEventLoggerTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	el := NewEventLogger(path)
	el.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	if _, err := el.Tail(5); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Tail before first event err = %v", err)
	}
	for i := 0; i < 5; i++ {
		el.Log("event %d", i)
	}

	lines, err := el.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("Tail(2) = %v", lines)
	}
	if lines[0] != "2025-01-02T03:04:05Z - event 3" || !strings.HasSuffix(lines[1], "event 4") {
		t.Fatalf("Tail(2) = %q", lines)
	}

	all, _ := el.Tail(100)
	if len(all) != 5 {
		t.Fatalf("Tail(100) returned %d lines, want 5", len(all))
	}
	if none, _ := el.Tail(0); none != nil {
		t.Fatalf("Tail(0) = %v", none)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error":   LogLevelError,
		"WARN":    LogLevelWarn,
		"warning": LogLevelWarn,
		"info":    LogLevelInfo,
		"Debug":   LogLevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("parseLogLevel(trace) succeeded")
	}
}
