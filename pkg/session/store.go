// Package session holds per-conversation state between query turns. The
// store is an explicit injected dependency so lifecycle and TTL behavior
// are testable, never a module-level singleton.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// Store is the session store interface consumed by the orchestrator.
type Store interface {
	// Get returns the session for an (org, conversation) pair, creating it
	// lazily on first use.
	Get(orgID uuid.UUID, sessionID string) *models.DataAgentSession
	// Put saves an updated session.
	Put(s *models.DataAgentSession)
	// Delete removes a session.
	Delete(orgID uuid.UUID, sessionID string)
	// Sweep purges sessions idle past the TTL and returns how many were removed.
	Sweep() int
}

type sessionKey struct {
	orgID     uuid.UUID
	sessionID string
}

// MemoryStore is an in-process session store with TTL sweeping. Each
// session key is only mutated by the single request goroutine handling that
// conversation; the mutex protects the map itself.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*models.DataAgentSession
	ttl      time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewMemoryStore creates a session store with the given inactivity TTL.
func NewMemoryStore(ttl time.Duration, clock Clock, logger *zap.Logger) *MemoryStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryStore{
		sessions: make(map[sessionKey]*models.DataAgentSession),
		ttl:      ttl,
		clock:    clock,
		logger:   logger.Named("session"),
	}
}

// Get implements Store. Expired sessions are treated as absent.
func (s *MemoryStore) Get(orgID uuid.UUID, sessionID string) *models.DataAgentSession {
	key := sessionKey{orgID: orgID, sessionID: sessionID}
	now := s.clock.Now()

	s.mu.RLock()
	existing, ok := s.sessions[key]
	s.mu.RUnlock()

	if ok && now.Sub(existing.LastActivity) <= s.ttl {
		return existing
	}

	fresh := &models.DataAgentSession{
		OrgID:        orgID,
		SessionID:    sessionID,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[key] = fresh
	s.mu.Unlock()

	return fresh
}

// Put implements Store.
func (s *MemoryStore) Put(sess *models.DataAgentSession) {
	key := sessionKey{orgID: sess.OrgID, sessionID: sess.SessionID}
	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()
}

// Delete implements Store.
func (s *MemoryStore) Delete(orgID uuid.UUID, sessionID string) {
	key := sessionKey{orgID: orgID, sessionID: sessionID}
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// Sweep implements Store.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.ttl {
			delete(s.sessions, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("swept expired sessions", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of live sessions; used by tests and health checks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeping runs Sweep on an interval until the context is cancelled.
func StartSweeping(ctx context.Context, store Store, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.Sweep()
			}
		}
	}()
}
