package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/session"
)

// Cache holds per-tenant schema snapshots with a TTL. An optional Redis
// client shares snapshots across replicas; any Redis failure degrades to
// the in-process map and live introspection, never an error.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*models.SchemaMap
	ttl       time.Duration
	clock     session.Clock
	redis     *redis.Client
	logger    *zap.Logger
}

// NewCache creates a snapshot cache. redisClient may be nil.
func NewCache(ttl time.Duration, clock session.Clock, redisClient *redis.Client, logger *zap.Logger) *Cache {
	if clock == nil {
		clock = session.SystemClock{}
	}
	return &Cache{
		snapshots: make(map[uuid.UUID]*models.SchemaMap),
		ttl:       ttl,
		clock:     clock,
		redis:     redisClient,
		logger:    logger.Named("schema.cache"),
	}
}

func (c *Cache) redisKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("dataagent:schema:%s", tenantID)
}

// Get returns a fresh snapshot or (nil, false) when absent or expired.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID) (*models.SchemaMap, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	snapshot, ok := c.snapshots[tenantID]
	c.mu.RUnlock()

	if ok && snapshot.Age(now) <= c.ttl {
		return snapshot, true
	}

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, c.redisKey(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("redis get failed", zap.Error(err))
		}
		return nil, false
	}

	var shared models.SchemaMap
	if err := json.Unmarshal(data, &shared); err != nil {
		c.logger.Debug("redis snapshot unmarshal failed", zap.Error(err))
		return nil, false
	}
	if shared.Age(now) > c.ttl {
		return nil, false
	}

	c.mu.Lock()
	c.snapshots[tenantID] = &shared
	c.mu.Unlock()

	return &shared, true
}

// Put stores a snapshot locally and, when configured, in Redis.
func (c *Cache) Put(ctx context.Context, tenantID uuid.UUID, snapshot *models.SchemaMap) {
	c.mu.Lock()
	c.snapshots[tenantID] = snapshot
	c.mu.Unlock()

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Debug("snapshot marshal failed", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.redisKey(tenantID), data, c.ttl).Err(); err != nil {
		c.logger.Debug("redis set failed", zap.Error(err))
	}
}

// Invalidate drops the snapshot for a tenant.
func (c *Cache) Invalidate(tenantID uuid.UUID) {
	c.mu.Lock()
	delete(c.snapshots, tenantID)
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Del(context.Background(), c.redisKey(tenantID)).Err(); err != nil {
			c.logger.Debug("redis del failed", zap.Error(err))
		}
	}
}
