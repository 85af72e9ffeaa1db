package schema

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func snapshotAt(indexed time.Time) *models.SchemaMap {
	return &models.SchemaMap{
		Tables: map[string]*models.TableSchema{
			"orders": {Name: "orders", Domain: models.DomainEcommerce},
		},
		IndexedAt: indexed,
	}
}

func TestCache_GetMiss(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(10*time.Minute, clock, nil, zap.NewNop())

	if _, ok := cache.Get(context.Background(), uuid.New()); ok {
		t.Fatal("expected miss for unknown tenant")
	}
}

func TestCache_PutThenGet(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(10*time.Minute, clock, nil, zap.NewNop())
	tenantID := uuid.New()

	cache.Put(context.Background(), tenantID, snapshotAt(clock.now))

	got, ok := cache.Get(context.Background(), tenantID)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if _, ok := got.Table("orders"); !ok {
		t.Fatal("snapshot missing orders table")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(10*time.Minute, clock, nil, zap.NewNop())
	tenantID := uuid.New()

	cache.Put(context.Background(), tenantID, snapshotAt(clock.now))

	clock.advance(9 * time.Minute)
	if _, ok := cache.Get(context.Background(), tenantID); !ok {
		t.Fatal("snapshot expired before TTL")
	}

	clock.advance(2 * time.Minute)
	if _, ok := cache.Get(context.Background(), tenantID); ok {
		t.Fatal("snapshot survived past TTL")
	}
}

func TestCache_TenantIsolation(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(10*time.Minute, clock, nil, zap.NewNop())
	a, b := uuid.New(), uuid.New()

	cache.Put(context.Background(), a, snapshotAt(clock.now))

	if _, ok := cache.Get(context.Background(), b); ok {
		t.Fatal("tenant b must not see tenant a's snapshot")
	}
}

func TestCache_Invalidate(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(10*time.Minute, clock, nil, zap.NewNop())
	tenantID := uuid.New()

	cache.Put(context.Background(), tenantID, snapshotAt(clock.now))
	cache.Invalidate(tenantID)

	if _, ok := cache.Get(context.Background(), tenantID); ok {
		t.Fatal("expected miss after Invalidate")
	}
}
