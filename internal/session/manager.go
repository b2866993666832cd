package session

import (
	"log/slog"
	"sync"

	"github.com/eidolon-live/eidolon/internal/shared"
)

// Manager owns the live sessions. Each session's gate and tracker state
// belongs to that session alone; the manager only routes by ID.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger.With("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID()]; exists {
		return shared.ErrConflict
	}
	m.sessions[s.ID()] = s
	return nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

// Remove stops the session and drops it from the registry.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return shared.ErrNotFound
	}
	s.Stop()
	m.logger.Info("session removed", "session_id", id)
	return nil
}

func (m *Manager) List() []Status {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	return statuses
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session. Called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}
