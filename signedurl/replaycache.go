package signedurl

import (
	"time"

	"github.com/puzpuzpuz/xsync/v2"
)

// ReplayCache records signatures that have already been validated, keyed by
// signature with the URL's own expiry as the value, so a given signed URL
// can never be honored twice inside its validity window. The map is shared
// across concurrent requests; lookups and inserts are lock-free.
type ReplayCache struct {
	entries *xsync.MapOf[string, int64]
	stop    chan struct{}
}

// NewReplayCache starts a cache whose sweep goroutine removes expired
// signatures every interval. The sweep runs off the request path and is
// stopped by Close, which callers should invoke during shutdown so the
// goroutine doesn't outlive the process.
func NewReplayCache(interval time.Duration) *ReplayCache {
	rc := &ReplayCache{
		entries: xsync.NewMapOf[int64](),
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go rc.sweepLoop(interval)
	}
	return rc
}

// Seen reports whether signature has already been recorded.
func (rc *ReplayCache) Seen(signature string) bool {
	_, ok := rc.entries.Load(signature)
	return ok
}

// Record stores signature with its expiry (epoch seconds) so a later
// Seen(signature) call reports true until the sweep removes it.
func (rc *ReplayCache) Record(signature string, expiresAt int64) {
	rc.entries.Store(signature, expiresAt)
}

// Close stops the background sweep goroutine. It is safe to call once.
func (rc *ReplayCache) Close() {
	close(rc.stop)
}

func (rc *ReplayCache) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rc.sweep(time.Now().Unix())
		case <-rc.stop:
			return
		}
	}
}

func (rc *ReplayCache) sweep(nowSec int64) {
	rc.entries.Range(func(signature string, expiresAt int64) bool {
		if expiresAt < nowSec {
			rc.entries.Delete(signature)
		}
		return true
	})
}
