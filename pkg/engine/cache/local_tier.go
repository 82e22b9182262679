package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ai-bookingchat-be/pkg/store"
)

// localTier is the bounded in-process fallback. Overflow evicts the
// oldest inserted entry rather than the least recently used one; hot
// sessions are re-fetched constantly so insertion order is close enough.
type localTier struct {
	c     *gocache.Cache
	mu    sync.Mutex
	order []string
	max   int
}

func newLocalTier(max int) *localTier {
	return &localTier{
		c:     gocache.New(gocache.NoExpiration, 0),
		order: make([]string, 0, max),
		max:   max,
	}
}

func (t *localTier) Get(key string) (*store.CachedSession, bool) {
	if x, found := t.c.Get(key); found {
		return x.(*store.CachedSession), true
	}
	return nil, false
}

func (t *localTier) Set(key string, session *store.CachedSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if len(t.order) >= t.max {
		oldest := t.order[0]
		t.order = t.order[1:]
		t.c.Delete(oldest)
	}
	t.order = append(t.order, key)
	t.c.Set(key, session, gocache.NoExpiration)
}

func (t *localTier) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.c.Delete(key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Sweep drops entries whose last activity aged past the TTL and returns
// how many were removed.
func (t *localTier) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for key, item := range t.c.Items() {
		session, ok := item.Object.(*store.CachedSession)
		if !ok || session.LastActivity.Before(cutoff) {
			t.Delete(key)
			removed++
		}
	}
	return removed
}

func (t *localTier) Len() int {
	return t.c.ItemCount()
}
