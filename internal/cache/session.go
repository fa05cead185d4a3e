// internal/cache/session.go
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"payload-log/internal/metrics"
	"payload-log/internal/model"

	"github.com/rs/zerolog/log"
)

// DefaultTTL is used when NewSessionCache gets a non-positive ttl.
const DefaultTTL = 10 * time.Minute

// Lister is the part of source.Source the cache needs.
type Lister interface {
	ListSessions(ctx context.Context) (model.SessionIndex, error)
}

// SessionCache
// ------------------------------------------------------------
// Time-bounded memo of the session index.
//
//   - Get serves the cached index while it is unexpired
//   - otherwise it lists storage, stores the result with a fresh expiry
//   - listing errors are returned and nothing is stored
//
// The (index, expiry) pair is read and written under one RWMutex, so a
// reader never sees an index with another refresh's expiry. The listing
// itself runs outside the lock; concurrent misses may each list storage
// and the last one to finish wins.
type SessionCache struct {
	src     Lister
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	mu      sync.RWMutex
	value   model.SessionIndex
	expires time.Time
	valid   bool
}

func NewSessionCache(src Lister, ttl time.Duration, m *metrics.Metrics) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if m == nil {
		m = metrics.New()
	}
	return &SessionCache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
	}
}

// Get returns the session index, refreshing it when expired.
func (c *SessionCache) Get(ctx context.Context) (model.SessionIndex, error) {
	c.mu.RLock()
	value, expires, valid := c.value, c.expires, c.valid
	c.mu.RUnlock()

	if valid && c.now().Before(expires) {
		atomic.AddInt64(&c.metrics.SessionCacheHitsTotal, 1)
		return value, nil
	}
	atomic.AddInt64(&c.metrics.SessionCacheMissesTotal, 1)

	start := c.now()
	idx, err := c.src.ListSessions(ctx)
	if err != nil {
		atomic.AddInt64(&c.metrics.StorageErrorsTotal, 1)
		log.Warn().Err(err).Msg("session listing failed")
		return model.SessionIndex{}, err
	}

	c.mu.Lock()
	c.value = idx
	c.expires = c.now().Add(c.ttl)
	c.valid = true
	c.mu.Unlock()

	atomic.AddInt64(&c.metrics.SessionCacheRefreshesTotal, 1)
	log.Debug().
		Int("services", idx.Len()).
		Dur("took", c.now().Sub(start)).
		Msg("session index refreshed")

	return idx, nil
}

// Invalidate drops the cached index; the next Get lists storage again.
func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	c.value = model.SessionIndex{}
	c.expires = time.Time{}
	c.valid = false
	c.mu.Unlock()
}
