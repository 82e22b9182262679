package dedup

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"ai-bookingchat-be/internal/pkg/logger"
)

// IdempotencyCache drops duplicate webhook deliveries before any state is
// read. The primary tier is a Redis SET NX with TTL shared by every
// instance; when Redis is unreachable the check degrades to a
// process-local map with the same TTL. Only provider-assigned message ids
// go through here; messages without one rely on the persister's
// content+timing rule instead.
type IdempotencyCache struct {
	rdb    *redis.Client
	local  *gocache.Cache
	ttl    time.Duration
	logger logger.ILogger
}

func NewIdempotencyCache(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *IdempotencyCache {
	return &IdempotencyCache{
		rdb:    rdb,
		local:  gocache.New(ttl, ttl/2),
		ttl:    ttl,
		logger: log,
	}
}

// SeenAndMark records the message id and reports whether it had been seen
// already. The check-and-set is a single atomic operation on the Redis
// tier, so two instances racing over the same delivery agree on exactly
// one first sighting.
func (c *IdempotencyCache) SeenAndMark(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}

	if c.rdb != nil {
		ok, err := c.rdb.SetNX(ctx, "dedup:"+messageID, time.Now().Unix(), c.ttl).Result()
		if err == nil {
			return !ok
		}
		c.logger.Warn("IdempotencyCache", "Redis unavailable, falling back to local tier", map[string]interface{}{"error": err.Error()})
	}

	if _, found := c.local.Get(messageID); found {
		return true
	}
	c.local.Set(messageID, time.Now(), gocache.DefaultExpiration)
	return false
}

// Seen reports without marking. Used by tests and diagnostics.
func (c *IdempotencyCache) Seen(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	if c.rdb != nil {
		n, err := c.rdb.Exists(ctx, "dedup:"+messageID).Result()
		if err == nil {
			return n > 0
		}
	}
	_, found := c.local.Get(messageID)
	return found
}
