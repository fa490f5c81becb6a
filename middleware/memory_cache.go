package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shrek82/projectdb/conn"
)

// MemoryCacheMiddleware keeps recorded result sets in process memory.
// Caching is opt-in per call, see WithCacheTTL.
type MemoryCacheMiddleware struct {
	DefaultTTL time.Duration
	// MaxEntries bounds the cache; the entry closest to expiry is evicted
	// first. Zero means unbounded.
	MaxEntries int
	// SweepInterval is how often expired entries are dropped.
	SweepInterval time.Duration

	mu      sync.Mutex
	entries map[string]cachedResult

	hits, misses atomic.Int64
	done         chan struct{}
	stop         sync.Once
}

type cachedResult struct {
	rows    []byte
	expires time.Time // zero never expires
}

func (r cachedResult) expired(now time.Time) bool {
	return !r.expires.IsZero() && !now.Before(r.expires)
}

// NewMemoryCache returns a cache whose UseDefault TTL is ttl, or five
// minutes when ttl is omitted.
func NewMemoryCache(ttl ...time.Duration) *MemoryCacheMiddleware {
	m := &MemoryCacheMiddleware{
		DefaultTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
		entries:       make(map[string]cachedResult),
		done:          make(chan struct{}),
	}
	if len(ttl) > 0 && ttl[0] > 0 {
		m.DefaultTTL = ttl[0]
	}
	return m
}

func (m *MemoryCacheMiddleware) Name() string {
	return "MemoryCache"
}

func (m *MemoryCacheMiddleware) Init(*conn.Manager) error {
	go m.sweepLoop()
	return nil
}

func (m *MemoryCacheMiddleware) Shutdown() error {
	m.stop.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryCacheMiddleware) sweepLoop() {
	ticker := time.NewTicker(m.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *MemoryCacheMiddleware) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.entries {
		if r.expired(now) {
			delete(m.entries, k)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (m *MemoryCacheMiddleware) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Hits and Misses count lookups of cache enabled queries.
func (m *MemoryCacheMiddleware) Hits() int64   { return m.hits.Load() }
func (m *MemoryCacheMiddleware) Misses() int64 { return m.misses.Load() }

func (m *MemoryCacheMiddleware) Process(ctx context.Context, req *conn.Request, next conn.QueryFunc) (int64, error) {
	ttl, ok := cacheTTL(ctx)
	if !ok {
		return next(ctx, req)
	}
	if ttl == UseDefault {
		ttl = m.DefaultTTL
	}
	return processCached(ctx, m, ttl, req, next)
}

func (m *MemoryCacheMiddleware) load(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	if ok && r.expired(time.Now()) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return r.rows, true
}

func (m *MemoryCacheMiddleware) store(_ context.Context, key string, rows []byte, ttl time.Duration) {
	r := cachedResult{rows: rows}
	if ttl > 0 {
		r.expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.MaxEntries > 0 && len(m.entries) >= m.MaxEntries {
		m.evictLocked()
	}
	m.entries[key] = r
}

// evictLocked drops the entry that expires first; entries without expiry go last.
func (m *MemoryCacheMiddleware) evictLocked() {
	var victim string
	var soonest time.Time
	found := false
	for k, r := range m.entries {
		if r.expires.IsZero() {
			if !found {
				victim, found = k, true
			}
			continue
		}
		if !found || soonest.IsZero() || r.expires.Before(soonest) {
			victim, soonest, found = k, r.expires, true
		}
	}
	if found {
		delete(m.entries, victim)
	}
}
