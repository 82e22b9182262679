package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/pkg/store"
)

// ErrVersionConflict reports that another writer committed between this
// writer's read and its write. The caller must re-resolve and retry; it
// must never blindly overwrite.
var ErrVersionConflict = errors.New("session cache: version conflict")

// SessionCache is the two-tier read/write cache for hydrated sessions.
// The Redis tier is shared across instances and is the consistency
// mechanism; the local tier is a private fallback that keeps a single
// process correct when Redis is down. Every mutation goes through
// Update, the sole concurrency-control primitive in the engine.
type SessionCache struct {
	rdb    *redis.Client
	local  *localTier
	ttl    time.Duration
	logger logger.ILogger

	// serializes the commit window (re-read version + write) in-process
	commitMu sync.Mutex
}

func NewSessionCache(rdb *redis.Client, localSize int, ttl time.Duration, log logger.ILogger) *SessionCache {
	return &SessionCache{
		rdb:    rdb,
		local:  newLocalTier(localSize),
		ttl:    ttl,
		logger: log,
	}
}

// Key builds the cache key for one conversation identity.
func Key(channel, channelUserID, businessID string) string {
	return fmt.Sprintf("session:%s:%s:%s", channel, channelUserID, businessID)
}

// Get returns a private snapshot of the cached session. Callers can
// mutate the result freely; stored state only changes through Update.
func (c *SessionCache) Get(ctx context.Context, key string) (*store.CachedSession, bool) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var session store.CachedSession
			if err := json.Unmarshal(raw, &session); err == nil {
				// keep the local tier warm for the fallback path
				c.putLocal(key, &session)
				return &session, true
			}
			c.logger.Warn("SessionCache", "Corrupt cached session, treating as miss", map[string]interface{}{"key": key})
		} else if err != redis.Nil {
			c.logger.Warn("SessionCache", "Redis read failed, using local tier", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	cached, found := c.local.Get(key)
	if !found {
		return nil, false
	}
	clone, err := cloneSession(cached)
	if err != nil {
		c.logger.Warn("SessionCache", "Unreadable local entry, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	return clone, true
}

// Set writes through both tiers. A distributed-tier failure is logged and
// absorbed: the local tier remains the single-process correctness
// fallback, and cross-instance consistency degrades to best effort.
func (c *SessionCache) Set(ctx context.Context, key string, session *store.CachedSession) {
	session.LastActivity = time.Now()

	c.putLocal(key, session)

	if c.rdb != nil {
		raw, err := json.Marshal(session)
		if err == nil {
			err = c.rdb.Set(ctx, key, raw, c.ttl).Err()
		}
		if err != nil {
			c.logger.Warn("SessionCache", "Redis write failed, local tier only", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}

// Update applies fn under optimistic locking: clone the current entry,
// apply fn, then commit only if the stored version still matches the one
// the clone started from. On mismatch nothing is written and
// ErrVersionConflict is returned.
func (c *SessionCache) Update(ctx context.Context, key string, fn func(*store.CachedSession) error) error {
	current, found := c.Get(ctx, key)
	if !found {
		return fmt.Errorf("session cache: no entry for %s", key)
	}

	startVersion := current.Version

	clone, err := cloneSession(current)
	if err != nil {
		return err
	}
	if err := fn(clone); err != nil {
		return err
	}
	clone.Version = startVersion + 1

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if stored, ok := c.Get(ctx, key); ok && stored.Version != startVersion {
		return ErrVersionConflict
	}
	c.Set(ctx, key, clone)
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, key string) {
	c.local.Delete(key)
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("SessionCache", "Redis delete failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}

// StartSweeper evicts idle local entries in the background until ctx is
// done. Redis entries expire on their own TTL.
func (c *SessionCache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.local.Sweep(c.ttl); removed > 0 {
					c.logger.Debug("SessionCache", "Swept idle local entries", map[string]interface{}{"removed": removed})
				}
			}
		}
	}()
}

// putLocal stores its own copy, the caller's pointer stays private to
// the caller.
func (c *SessionCache) putLocal(key string, session *store.CachedSession) {
	clone, err := cloneSession(session)
	if err != nil {
		c.logger.Warn("SessionCache", "Session snapshot failed, local tier skipped", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	c.local.Set(key, clone)
}

func cloneSession(s *store.CachedSession) (*store.CachedSession, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var clone store.CachedSession
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
