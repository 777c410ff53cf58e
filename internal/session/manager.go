package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yousuf/tracecanon/internal/console"
)

// Manager manages session contexts
type Manager struct {
	sessions   map[string]*Context
	mu         sync.RWMutex
	levels     []string
	newSandbox SandboxFactory
}

// NewManager creates a new session manager. Sessions capture console calls at
// levels; newSandbox may be nil when no script runtime is configured.
func NewManager(levels []string, newSandbox SandboxFactory) *Manager {
	return &Manager{
		sessions:   make(map[string]*Context),
		levels:     levels,
		newSandbox: newSandbox,
	}
}

// GetOrCreateSession gets an existing session or creates a new one
func (m *Manager) GetOrCreateSession(sessionID string) *Context {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if exists {
		return session
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if session, exists := m.sessions[sessionID]; exists {
		return session
	}

	session = NewContext(sessionID, console.NewCapturer(m.levels), m.newSandbox)
	m.sessions[sessionID] = session
	return session
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(sessionID string) *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// DeleteSession removes a session and cleans up its resources
func (m *Manager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session %q not found", sessionID)
	}
	delete(m.sessions, sessionID)

	if err := session.Close(); err != nil {
		return fmt.Errorf("failed to close session %q: %w", sessionID, err)
	}
	return nil
}

// CloseAll closes all sessions
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for sessionID, session := range m.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", sessionID, err))
		}
	}

	m.sessions = make(map[string]*Context)
	return errors.Join(errs...)
}
