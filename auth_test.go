package main

import (
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	passwordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestPasswordHashRoundTrip(t *testing.T) {
	h := hashPassword("hunter2")
	if h == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if err := checkPasswordHash("hunter2", h); err != nil {
		t.Fatalf("check correct password: %v", err)
	}
	if err := checkPasswordHash("hunter3", h); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	sm := NewSessionManager()
	sm.now = func() time.Time { return now }

	id, sess, err := sm.Create("alice", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" || sess.Username != "alice" || !sess.Expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected session %q %+v", id, sess)
	}
	if got, ok := sm.Get(id); !ok || got.Username != "alice" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := sm.Get(id); ok {
		t.Fatal("expired session still valid")
	}
	if n := sm.Purge(); n != 1 {
		t.Fatalf("Purge removed %d, want 1", n)
	}
	if sm.Delete(id) {
		t.Fatal("Delete after purge reported existing session")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	sm := NewSessionManager()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _, err := sm.Create("u", time.Minute)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
