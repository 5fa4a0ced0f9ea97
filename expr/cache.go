package expr

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache memoises Parse results keyed by the xxhash of the source text.
// Parse errors are cached too, since the same text always fails the same
// way. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64][]cacheEntry
	size    int
	limit   int
}

type cacheEntry struct {
	src  string
	expr *Expression
	err  error
}

// NewCache returns a cache holding at most limit sources. When full it is
// cleared wholesale. A non-positive limit means unbounded.
func NewCache(limit int) *Cache {
	return &Cache{entries: make(map[uint64][]cacheEntry), limit: limit}
}

// Parse returns the cached result for src, parsing it on first use.
func (c *Cache) Parse(src string) (*Expression, error) {
	key := xxhash.Sum64String(src)

	c.mu.Lock()
	for _, ent := range c.entries[key] {
		if ent.src == src {
			c.mu.Unlock()
			return ent.expr, ent.err
		}
	}
	c.mu.Unlock()

	e, err := Parse(src)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ent := range c.entries[key] {
		if ent.src == src {
			return ent.expr, ent.err
		}
	}
	if c.limit > 0 && c.size >= c.limit {
		c.entries = make(map[uint64][]cacheEntry)
		c.size = 0
	}
	c.entries[key] = append(c.entries[key], cacheEntry{src: src, expr: e, err: err})
	c.size++
	return e, err
}

// Len returns the number of cached sources.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
