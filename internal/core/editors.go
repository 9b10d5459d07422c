package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EditorManager hands out edit sessions to clients and expires abandoned
// ones. A session expires after maxAge or after idleTimeout without use;
// zero disables the respective check.
type EditorManager struct {
	deps        SessionDeps
	maxAge      time.Duration
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewEditorManager creates a manager whose sessions share deps.
func NewEditorManager(deps SessionDeps, maxAge, idleTimeout time.Duration) *EditorManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &EditorManager{
		deps:        deps,
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
	}
}

// Create creates a closed session and returns it.
func (m *EditorManager) Create() *Session {
	s := NewSession(uuid.NewString(), m.deps)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns a session by ID, or nil if it is unknown or expired.
func (m *EditorManager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if m.expired(s) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove cancels and forgets a session.
func (m *EditorManager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		_ = s.Cancel()
	}
}

// Len returns the number of tracked sessions.
func (m *EditorManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
// Sessions mid-commit are kept until the commit finishes.
func (m *EditorManager) Cleanup() int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if m.expired(s) && s.State() != StateCommitting {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		_ = s.Cancel()
	}
	return len(stale)
}

// Run calls Cleanup every interval until ctx is done.
func (m *EditorManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.deps.Logger.Debug("expired edit sessions", "count", n)
			}
		}
	}
}

func (m *EditorManager) expired(s *Session) bool {
	if m.maxAge > 0 && time.Since(s.createdAt) > m.maxAge {
		return true
	}
	return m.idleTimeout > 0 && time.Since(s.idleSince()) > m.idleTimeout
}
