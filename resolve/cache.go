package resolve

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

// Cache memoizes resolutions per anchor node version. Entries are never
// evicted implicitly; a tree edit that rebuilds the anchor produces a new
// node id and therefore a new key. Sweep drops entries whose anchors have
// left a snapshot.
type Cache struct {
	env           Env
	entries       sync.Map // cacheKey -> *cacheEntry
	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
	evictions     atomic.Int64
}

type cacheKey struct {
	anchor   tree.NodeID
	revision tree.Revision
	name     string
	kind     RefKind
}

type cacheEntry struct {
	result *Result
	levels []level
}

// NewCache returns an empty cache resolving through env
func NewCache(env Env) *Cache {
	return &Cache{env: env.withDefaults()}
}

// Resolve returns the resolution of ref in snap. A repeated request for the
// same anchor returns the same *Result as long as the anchor node and every
// scope the earlier resolution consulted are unchanged in snap.
func (c *Cache) Resolve(ctx context.Context, snap *tree.Snapshot, ref Reference) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !snap.Contains(ref.Anchor) {
		return nil, fmt.Errorf("%w: anchor %d is not in revision %d", tree.ErrUnknownNode, ref.Anchor, snap.Revision())
	}
	key := cacheKey{anchor: ref.Anchor, revision: snap.NodeRevision(ref.Anchor), name: ref.Name, kind: ref.Kind}

	cached, found := c.entries.Load(key)
	if found {
		entry := cached.(*cacheEntry)
		valid, err := c.valid(ctx, snap, ref, entry)
		if err != nil {
			return nil, err
		}
		if valid {
			c.hits.Add(1)
			return entry.result, nil
		}
		c.invalidations.Add(1)
	}
	c.misses.Add(1)

	entry, err := c.compute(ctx, snap, ref)
	if err != nil {
		return nil, err
	}
	if found {
		c.entries.Store(key, entry)
		return entry.result, nil
	}
	if actual, loaded := c.entries.LoadOrStore(key, entry); loaded {
		// a concurrent resolution of the same key won
		return actual.(*cacheEntry).result, nil
	}
	return entry.result, nil
}

// ResolveAt creates the reference held by node id and resolves it
func (c *Cache) ResolveAt(ctx context.Context, snap *tree.Snapshot, id tree.NodeID) (*Result, error) {
	ref, ok := ReferenceAt(snap, id)
	if !ok {
		return nil, fmt.Errorf("resolve: node %d (%s) holds no reference", id, snap.Kind(id))
	}
	return c.Resolve(ctx, snap, ref)
}

func (c *Cache) compute(ctx context.Context, snap *tree.Snapshot, ref Reference) (*cacheEntry, error) {
	w := newWalk(ctx, c.env, snap, ref)
	decls, err := w.run()
	if err != nil {
		return nil, err
	}
	result := newResult(ref, snap.Revision(), decls)
	c.env.Logger.Debug("resolved reference",
		zap.String("name", ref.Name),
		zap.Stringer("kind", ref.Kind),
		zap.Uint64("anchor", uint64(ref.Anchor)),
		zap.Uint64("revision", uint64(snap.Revision())),
		zap.Stringer("result", result.Kind),
		zap.Int("scopes", len(w.levels)),
	)
	return &cacheEntry{result: result, levels: onPath(snap, ref.Anchor, w.levels)}, nil
}

// onPath keeps the consulted scopes that enclose the anchor and numbers them
// by their distance from it. Scopes inside a qualifier are covered by the
// qualifier's own level.
func onPath(snap *tree.Snapshot, anchor tree.NodeID, levels []level) []level {
	depth := make(map[tree.NodeID]int)
	for i, a := range snap.Ancestors(anchor) {
		depth[a] = i + 1
	}
	seen := make(map[string]bool)
	out := make([]level, 0, len(levels))
	for _, l := range levels {
		d, ok := depth[l.node]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%s|%d", d, l.name, l.qualifier)
		if seen[key] {
			continue
		}
		seen[key] = true
		l.depth = d
		out = append(out, l)
	}
	return out
}

// valid reports whether a cached entry still describes ref in snap
func (c *Cache) valid(ctx context.Context, snap *tree.Snapshot, ref Reference, entry *cacheEntry) (bool, error) {
	for _, d := range entry.result.Declarations {
		if d.NodeID != 0 && !snap.Contains(tree.NodeID(d.NodeID)) {
			return false, nil
		}
	}
	ancestors := snap.Ancestors(ref.Anchor)
	var w *walk
	for _, l := range entry.levels {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if l.depth > len(ancestors) {
			return false, nil
		}
		node := ancestors[l.depth-1]
		if node == l.node {
			continue
		}
		child := ref.Anchor
		if l.depth > 1 {
			child = ancestors[l.depth-2]
		}
		if l.qualifier != 0 {
			q, ok := snap.Child(node, core.RoleQualifier)
			if !ok || q != l.qualifier {
				return false, nil
			}
			continue
		}
		if w == nil {
			w = newWalk(ctx, c.env, snap, ref)
		}
		if w.print(node, child, l.name, w.declared(node, child)) != l.print {
			return false, nil
		}
	}
	return true, nil
}

// Sweep drops the entries whose anchors are not part of snap and reports how
// many were dropped.
func (c *Cache) Sweep(snap *tree.Snapshot) int {
	dropped := 0
	c.entries.Range(func(key, _ any) bool {
		if !snap.Contains(key.(cacheKey).anchor) {
			c.entries.Delete(key)
			dropped++
		}
		return true
	})
	c.evictions.Add(int64(dropped))
	if dropped > 0 {
		c.env.Logger.Debug("swept resolve cache", zap.Int("dropped", dropped), zap.Uint64("revision", uint64(snap.Revision())))
	}
	return dropped
}

// Reset empties the cache, for instance after the symbol index changed
func (c *Cache) Reset() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]int64 {
	size := int64(0)
	c.entries.Range(func(_, _ any) bool {
		size++
		return true
	})
	return map[string]int64{
		"entries":       size,
		"hits":          c.hits.Load(),
		"misses":        c.misses.Load(),
		"invalidations": c.invalidations.Load(),
		"evictions":     c.evictions.Load(),
		"hit_rate":      c.hits.Load() * 100 / (c.hits.Load() + c.misses.Load() + 1),
	}
}
