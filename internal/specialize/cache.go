package specialize

import (
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// cacheKey is the memoization key: "(graph-hash, argument-type)".
type cacheKey struct {
	graph graph.Hash
	arg   types.Hash
}

// CacheEntry is the memoized value: "(typed-body, result-type,
// should-inline, used-fallback-form)".
type CacheEntry struct {
	Body             typed.Ref
	Result           *types.Type
	ShouldInline     bool
	UsedFallbackForm bool
}

// Cache memoizes specialization results. It is owned by one compile job
// and never shared across concurrent jobs, so it needs no locking.
type Cache struct {
	entries map[cacheKey]*CacheEntry
}

// NewCache creates an empty memoization cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*CacheEntry)}
}

func (c *Cache) key(g graph.Hash, argType *types.Type) cacheKey {
	return cacheKey{graph: g, arg: types.HashOf(argType)}
}

// Get looks up a memoized entry for (g, argType).
func (c *Cache) Get(g graph.Hash, argType *types.Type) (*CacheEntry, bool) {
	e, ok := c.entries[c.key(g, argType)]
	return e, ok
}

// Put memoizes e for (g, argType).
func (c *Cache) Put(g graph.Hash, argType *types.Type, e *CacheEntry) {
	c.entries[c.key(g, argType)] = e
}

// Snapshot is a point-in-time copy of the cache's contents, restored when
// the recursion solver's closed-form attempt or a candidate form fails and
// partial results must not leak into the next attempt.
type Snapshot map[cacheKey]*CacheEntry

// Snapshot captures the current cache contents.
func (c *Cache) Snapshot() Snapshot {
	snap := make(Snapshot, len(c.entries))
	for k, v := range c.entries {
		snap[k] = v
	}
	return snap
}

// Restore replaces the cache's contents with a previously captured
// snapshot. Takes its own defensive copy so the same snapshot may be
// restored more than once (the form-by-form loop restores the same
// pre-attempt snapshot after every failed candidate).
func (c *Cache) Restore(snap Snapshot) {
	restored := make(map[cacheKey]*CacheEntry, len(snap))
	for k, v := range snap {
		restored[k] = v
	}
	c.entries = restored
}
