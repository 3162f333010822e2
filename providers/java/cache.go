package java

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oxhq/psitree/tree"
)

// ParseCache memoizes converted trees by source content. Cached snapshots
// are immutable, so one entry can be handed to any number of callers.
type ParseCache struct {
	cache     sync.Map // content hash -> *cachedTree
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	maxAge    time.Duration
	now       func() time.Time
}

type cachedTree struct {
	snap      *tree.Snapshot
	timestamp time.Time
	hitCount  atomic.Int32
}

// DefaultMaxAge bounds how long a parsed tree stays cached
const DefaultMaxAge = 5 * time.Minute

// NewParseCache creates a cache whose entries expire after maxAge
func NewParseCache(maxAge time.Duration) *ParseCache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &ParseCache{maxAge: maxAge, now: time.Now}
}

// GetOrParse returns the cached tree for source or builds it with parse
func (c *ParseCache) GetOrParse(source []byte, parse func() (*tree.Snapshot, error)) (*tree.Snapshot, bool, error) {
	hash := c.hash(source)

	if cached, ok := c.cache.Load(hash); ok {
		entry := cached.(*cachedTree)
		if c.now().Sub(entry.timestamp) <= c.maxAge {
			c.hits.Add(1)
			entry.hitCount.Add(1)
			return entry.snap, true, nil
		}
		if c.cache.CompareAndDelete(hash, entry) {
			c.evictions.Add(1)
		}
	}

	c.misses.Add(1)
	snap, err := parse()
	if err != nil {
		return nil, false, err
	}
	entry := &cachedTree{snap: snap, timestamp: c.now()}
	if actual, loaded := c.cache.LoadOrStore(hash, entry); loaded {
		// another goroutine populated the entry first
		return actual.(*cachedTree).snap, false, nil
	}
	return snap, false, nil
}

// Prune drops expired entries and reports how many were dropped
func (c *ParseCache) Prune() int {
	now := c.now()
	dropped := 0
	c.cache.Range(func(key, value any) bool {
		if now.Sub(value.(*cachedTree).timestamp) > c.maxAge {
			if c.cache.CompareAndDelete(key, value) {
				c.evictions.Add(1)
				dropped++
			}
		}
		return true
	})
	return dropped
}

func (c *ParseCache) hash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Stats returns cache statistics
func (c *ParseCache) Stats() map[string]int64 {
	return map[string]int64{
		"hits":      c.hits.Load(),
		"misses":    c.misses.Load(),
		"evictions": c.evictions.Load(),
		"hit_rate":  c.hits.Load() * 100 / (c.hits.Load() + c.misses.Load() + 1),
	}
}
