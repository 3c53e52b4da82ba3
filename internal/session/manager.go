package session

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/pkg/logger"
)

type managedSession struct {
	mu  sync.Mutex
	ctx *Context
}

// Manager partitions history by session id. The least recently used
// session is dropped once MaxSessions is reached.
type Manager struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *managedSession]
	maxTurns int
	rules    []InheritRule
	log      *logger.Logger
}

// NewManager creates a manager from session settings. Rules default to
// DefaultRules.
func NewManager(cfg config.SessionConfig, log *logger.Logger, rules ...InheritRule) (*Manager, error) {
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("max sessions must be positive, got %d", cfg.MaxSessions)
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	m := &Manager{
		maxTurns: cfg.MaxTurns,
		rules:    rules,
		log:      log,
	}

	cache, err := lru.NewWithEvict[string, *managedSession](cfg.MaxSessions, func(id string, _ *managedSession) {
		m.log.Debug("Session evicted", "session", id)
	})
	if err != nil {
		return nil, err
	}
	m.sessions = cache
	return m, nil
}

// Acquire returns the session for id, creating one under a fresh id when id
// is empty, malformed or unknown. The session is held exclusively until
// release is called.
func (m *Manager) Acquire(id string) (string, *Context, func()) {
	m.mu.Lock()
	s, ok := m.lookup(id)
	if !ok {
		id = NewID()
		s = &managedSession{ctx: NewContext(m.maxTurns, m.rules...)}
		m.sessions.Add(id, s)
		m.log.Debug("Session created", "session", id)
	}
	m.mu.Unlock()

	s.mu.Lock()
	return id, s.ctx, s.mu.Unlock
}

func (m *Manager) lookup(id string) (*managedSession, bool) {
	if id == "" || !validID(id) {
		return nil, false
	}
	return m.sessions.Get(id)
}

// Remove drops a session. It reports whether the session existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Len()
}
