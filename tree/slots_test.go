package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotMap(t *testing.T) {
	ed := slotMap{}.edit()
	for id := NodeID(1); id <= 100; id++ {
		ed.set(id, &slot{index: int(id)})
	}
	ed.set(NodeID(1<<40), &slot{index: -1})
	first := ed.done()
	assert.Equal(t, 101, first.len())

	s, ok := first.get(57)
	require.True(t, ok)
	assert.Equal(t, 57, s.index)
	s, ok = first.get(NodeID(1 << 40))
	require.True(t, ok)
	assert.Equal(t, -1, s.index)
	_, ok = first.get(101)
	assert.False(t, ok)
	_, ok = first.get(NodeID(1 << 62))
	assert.False(t, ok)

	ed.set(57, nil)
	ed.set(58, &slot{index: 580})
	ed.set(NodeID(1<<50), nil)
	second := ed.done()
	assert.Equal(t, 100, second.len())

	// the earlier version is untouched
	s, ok = first.get(57)
	require.True(t, ok)
	assert.Equal(t, 57, s.index)
	s, _ = first.get(58)
	assert.Equal(t, 58, s.index)

	_, ok = second.get(57)
	assert.False(t, ok)
	s, _ = second.get(58)
	assert.Equal(t, 580, s.index)
}

func TestSlotMap_EditsShareUntouchedBranches(t *testing.T) {
	ed := slotMap{}.edit()
	for id := NodeID(1); id <= 2048; id++ {
		ed.set(id, &slot{})
	}
	before := ed.done()
	ed.set(5, &slot{index: 1})
	after := ed.done()

	require.Equal(t, before.shift, after.shift)
	assert.NotSame(t, before.root, after.root)
	assert.NotSame(t, before.root.kids[0], after.root.kids[0])
	assert.Same(t, before.root.kids[1], after.root.kids[1])
	assert.Same(t, before.root.kids[0].kids[1], after.root.kids[0].kids[1])
}
