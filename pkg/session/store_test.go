package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(ttl, clock, zap.NewNop()), clock
}

func TestGet_CreatesLazily(t *testing.T) {
	store, _ := newTestStore(30 * time.Minute)
	orgID := uuid.New()

	sess := store.Get(orgID, "s1")
	if sess == nil {
		t.Fatal("expected lazily created session")
	}
	if sess.OrgID != orgID || sess.SessionID != "s1" {
		t.Errorf("session key not set: %+v", sess)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 session, got %d", store.Len())
	}
}

func TestGet_ReturnsLiveSession(t *testing.T) {
	store, clock := newTestStore(30 * time.Minute)
	orgID := uuid.New()

	first := store.Get(orgID, "s1")
	first.CurrentDomain = models.DomainEcommerce
	first.LastActivity = clock.Now()
	store.Put(first)

	clock.advance(10 * time.Minute)
	again := store.Get(orgID, "s1")
	if again.CurrentDomain != models.DomainEcommerce {
		t.Error("expected the same session back within the TTL")
	}
}

func TestGet_ExpiredSessionIsReplaced(t *testing.T) {
	store, clock := newTestStore(30 * time.Minute)
	orgID := uuid.New()

	first := store.Get(orgID, "s1")
	first.CurrentDomain = models.DomainEcommerce
	store.Put(first)

	clock.advance(31 * time.Minute)
	fresh := store.Get(orgID, "s1")
	if fresh.CurrentDomain != "" {
		t.Error("expired session served instead of a fresh one")
	}
}

func TestSessionsAreTenantScoped(t *testing.T) {
	store, _ := newTestStore(30 * time.Minute)

	a := store.Get(uuid.New(), "shared-id")
	a.CurrentDomain = models.DomainCRM
	store.Put(a)

	b := store.Get(uuid.New(), "shared-id")
	if b.CurrentDomain != "" {
		t.Error("session leaked across tenants with the same session id")
	}
}

func TestSweep(t *testing.T) {
	store, clock := newTestStore(30 * time.Minute)
	orgID := uuid.New()

	store.Get(orgID, "old")
	clock.advance(20 * time.Minute)
	store.Get(orgID, "young")

	clock.advance(15 * time.Minute) // old at 35m, young at 15m

	if removed := store.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 surviving session, got %d", store.Len())
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(30 * time.Minute)
	orgID := uuid.New()

	store.Get(orgID, "s1")
	store.Delete(orgID, "s1")
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}
