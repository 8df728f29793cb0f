package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the bcrypt cost used for new hashes.  Tests lower it.
var passwordCost = bcrypt.DefaultCost

// sessionTTL is how long a login stays valid.
const sessionTTL = 24 * time.Hour

// hashPassword takes a plaintext password and returns a bcrypt hash.  If hashing
// fails the program panics because it is a programmer error.
func hashPassword(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// checkPasswordHash verifies a plaintext password against a stored bcrypt hash.
// It returns nil if the password matches, or an error otherwise.
func checkPasswordHash(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Session represents an authenticated web control session.
type Session struct {
	Username string
	Expires  time.Time
}

// SessionManager keeps sessions in memory; they do not survive a restart.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewSessionManager constructs an empty session store.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]Session), now: time.Now}
}

// Create starts a new session for the given username.  The session expires after
// the provided duration.
func (sm *SessionManager) Create(username string, ttl time.Duration) (string, Session, error) {
	id, err := randomString(32)
	if err != nil {
		return "", Session{}, err
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := Session{Username: username, Expires: sm.now().Add(ttl)}
	sm.sessions[id] = s
	return id, s, nil
}

// Get retrieves a session by ID.  If the session has expired or does not exist
// it returns false.
func (sm *SessionManager) Get(id string) (Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	if !ok || sm.now().After(s.Expires) {
		return Session{}, false
	}
	return s, true
}

// Delete removes a session.  It returns true if the session existed.
func (sm *SessionManager) Delete(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.sessions[id]; ok {
		delete(sm.sessions, id)
		return true
	}
	return false
}

// Purge removes all expired sessions and returns how many were dropped.
func (sm *SessionManager) Purge() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	n := 0
	for id, s := range sm.sessions {
		if now.After(s.Expires) {
			delete(sm.sessions, id)
			n++
		}
	}
	return n
}

// RunPurge calls Purge every interval until ctx is done.
func (sm *SessionManager) RunPurge(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sm.Purge()
		}
	}
}

// randomString returns a URL-safe base64 string of length n bytes (before encoding).
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
