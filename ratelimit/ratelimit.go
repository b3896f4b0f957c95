// Package ratelimit implements per-key token-bucket admission control
// backed by an LRU+TTL store, so keys that stop making requests eventually
// fall out of memory instead of accumulating forever.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/streamforge/uploadengine/lru"
	"github.com/streamforge/uploadengine/uploaderr"
)

// KeyFunc extracts the rate-limit key from a request. The default prefers
// the first address in X-Forwarded-For, falling back to RemoteAddr.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc implements the spec's default key generator.
func DefaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	return r.RemoteAddr
}

// Config configures a Limiter.
type Config struct {
	MaxRequests     int
	Window          time.Duration
	KeyFunc         KeyFunc
	CacheSize       int
	CleanupInterval time.Duration
}

// Limiter is a token-bucket rate limiter keyed by an arbitrary string.
type Limiter struct {
	capacity float64
	rate     float64 // tokens per nanosecond
	keyFunc  KeyFunc

	cache *lru.Cache
	mu    sync.Mutex // guards bucket creation races for a not-yet-cached key
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// New builds a Limiter from cfg, filling in defaults for zero fields.
func New(cfg Config) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultKeyFunc
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}

	// A bucket that hasn't been touched in 10 windows is either idle or
	// abandoned; either way it's safe to let Sweep reclaim it. Since the
	// cache's insertedAt is updated on every Set, not just creation,
	// SetAt is used on refill to keep that clock current.
	idleTTL := cfg.Window * 10

	l := &Limiter{
		capacity: float64(cfg.MaxRequests),
		rate:     float64(cfg.MaxRequests) / float64(cfg.Window),
		keyFunc:  cfg.KeyFunc,
		cache:    lru.New(cfg.CacheSize, idleTTL),
	}

	if cfg.CleanupInterval > 0 {
		go l.cleanupLoop(cfg.CleanupInterval)
	}
	return l
}

// Allow admits or rejects a request for key, refilling the bucket since its
// last admission check before deciding.
func (l *Limiter) Allow(key string) error {
	b := l.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.tokens += float64(elapsed) * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	// Refresh the cache entry's clock so an actively-used bucket never
	// ages out from under a caller mid-stream; only truly idle keys are
	// left for Sweep to reclaim.
	l.cache.SetAt(key, b, now)

	if b.tokens >= 1 {
		b.tokens--
		return nil
	}

	remainingNeeded := 1 - b.tokens
	retryAfter := time.Duration(remainingNeeded / l.rate)
	return uploaderr.RateLimitExceeded(int(l.capacity), int(b.tokens), retryAfter)
}

// AllowRequest extracts the key via the configured KeyFunc and calls Allow.
func (l *Limiter) AllowRequest(r *http.Request) error {
	return l.Allow(l.keyFunc(r))
}

func (l *Limiter) bucketFor(key string) *bucket {
	if v, ok := l.cache.Get(key); ok {
		return v.(*bucket)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check under the lock: another goroutine may have created it
	// between the unlocked Get above and acquiring this lock.
	if v, ok := l.cache.Get(key); ok {
		return v.(*bucket)
	}

	b := &bucket{tokens: l.capacity, lastRefill: time.Now()}
	l.cache.Set(key, b)
	return b
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for range t.C {
		l.cache.Sweep(time.Now())
	}
}
