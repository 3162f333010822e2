package resolve

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

// class A { int x; void m() { List l; x; } void n() { y; } }
func cacheFile() tree.Blueprint {
	return file("app", []string{"java.util.*"}, class("A", nil,
		field("int", "x"),
		method("m", nil, local("List", "l"), stmt(ident("x"))),
		method("n", nil, stmt(ident("y"))),
	))
}

func replaceWith(t *testing.T, s *tree.Store, target tree.NodeID, b tree.Blueprint) {
	t.Helper()
	repl, err := s.Build(0, b)
	require.NoError(t, err)
	_, err = s.Replace(target, repl)
	require.NoError(t, err)
}

func TestCache_HitAcrossUnrelatedEdit(t *testing.T) {
	s := newStore(t, cacheFile())
	c := NewCache(Env{Index: utilIndex()})
	ctx := context.Background()

	before := s.Snapshot()
	anchor := nth(t, before, core.KindTypeRef, "List", 0)
	ref, ok := ReferenceAt(before, anchor)
	require.True(t, ok)
	first, err := c.Resolve(ctx, before, ref)
	require.NoError(t, err)
	assert.Equal(t, "java.util.List", requireSingle(t, first).QualifiedName)

	replaceWith(t, s, nth(t, before, core.KindIdentifier, "y", 0), ident("z"))
	after := s.Snapshot()
	require.True(t, after.Contains(anchor))
	require.Greater(t, after.Revision(), before.Revision())

	second, err := c.Resolve(ctx, after, ref)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, before.Revision(), second.Revision)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestCache_MissAfterEditOnPath(t *testing.T) {
	s := newStore(t, cacheFile())
	c := NewCache(Env{Index: utilIndex()})
	ctx := context.Background()

	before := s.Snapshot()
	oldAnchor := nth(t, before, core.KindTypeRef, "List", 0)
	first, err := c.ResolveAt(ctx, before, oldAnchor)
	require.NoError(t, err)

	statement, ok := before.Parent(oldAnchor)
	require.True(t, ok)
	replaceWith(t, s, statement, local("List", "k"))
	after := s.Snapshot()
	assert.False(t, after.Contains(oldAnchor))

	newAnchor := nth(t, after, core.KindTypeRef, "List", 0)
	second, err := c.ResolveAt(ctx, after, newAnchor)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Declarations, second.Declarations)
	assert.Equal(t, after.Revision(), second.Revision)
	assert.Equal(t, int64(2), c.Stats()["misses"])

	_, err = c.ResolveAt(ctx, after, oldAnchor)
	assert.ErrorIs(t, err, tree.ErrUnknownNode)

	assert.Equal(t, 1, c.Sweep(after))
	assert.Equal(t, int64(1), c.Stats()["entries"])
	assert.Equal(t, int64(1), c.Stats()["evictions"])
}

func TestCache_NewDeclarationInvalidatesHit(t *testing.T) {
	s := newStore(t, cacheFile())
	c := NewCache(Env{Index: utilIndex()})
	ctx := context.Background()

	before := s.Snapshot()
	use := nth(t, before, core.KindIdentifier, "x", 0)
	first, err := c.ResolveAt(ctx, before, use)
	require.NoError(t, err)
	assert.Equal(t, core.DeclField, requireSingle(t, first).Kind)

	// int x; declared ahead of the use shadows the field
	stmt, _ := before.Parent(use)
	body, _ := before.Parent(stmt)
	shadow, err := s.Build(0, local("int", "x"))
	require.NoError(t, err)
	_, err = s.InsertChild(body, 0, shadow)
	require.NoError(t, err)

	after := s.Snapshot()
	require.True(t, after.Contains(use))
	second, err := c.ResolveAt(ctx, after, use)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, core.DeclLocalVariable, requireSingle(t, second).Kind)
	assert.Equal(t, int64(1), c.Stats()["invalidations"])

	// and the recomputed result is cached in turn
	third, err := c.ResolveAt(ctx, after, use)
	require.NoError(t, err)
	assert.Same(t, second, third)
}

func TestCache_RemovedTargetInvalidatesHit(t *testing.T) {
	s := newStore(t, cacheFile())
	c := NewCache(Env{Index: utilIndex()})
	ctx := context.Background()

	before := s.Snapshot()
	use := nth(t, before, core.KindIdentifier, "x", 0)
	first, err := c.ResolveAt(ctx, before, use)
	require.NoError(t, err)
	decl := requireSingle(t, first)

	fieldDecl, ok := before.Parent(tree.NodeID(decl.NodeID))
	require.True(t, ok)
	require.NoError(t, s.Remove(fieldDecl))

	second, err := c.ResolveAt(ctx, s.Snapshot(), use)
	require.NoError(t, err)
	assert.Equal(t, Unresolved, second.Kind)
}

func TestCache_ConcurrentResolveSharesResult(t *testing.T) {
	s := newStore(t, cacheFile())
	snap := s.Snapshot()
	c := NewCache(Env{Index: utilIndex()})
	anchor := nth(t, snap, core.KindTypeRef, "List", 0)

	const workers = 8
	results := make([]*Result, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.ResolveAt(context.Background(), snap, anchor)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Same(t, results[0], r)
	}
	c.Reset()
	assert.Zero(t, c.Stats()["entries"])
}
