package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
)

// outer: for (;;) { switch (v) { case 1 -> { break; } } int r = switch (v) { default -> { yield 1; } }; continue outer; }
func loopBlueprint() Blueprint {
	breakStmt := Branch(core.KindBreak).As(core.RoleStatement)
	switchStmt := Branch(core.KindSwitchStatement,
		Leaf(core.KindIdentifier, "v").As(core.RoleSelector),
		Branch(core.KindSwitchBlock,
			Branch(core.KindSwitchRule,
				Branch(core.KindSwitchLabel, Leaf(core.KindLiteral, "1").As(core.RoleValue)).As(core.RoleLabel),
				Branch(core.KindBlock, breakStmt).As(core.RoleBody),
			),
		).As(core.RoleBody),
	).As(core.RoleStatement)
	switchExpr := Branch(core.KindSwitchExpression,
		Leaf(core.KindIdentifier, "v").As(core.RoleSelector),
		Branch(core.KindSwitchBlock,
			Branch(core.KindSwitchRule,
				Branch(core.KindSwitchLabel, Leaf(core.KindDefaultLabel, "default")).As(core.RoleLabel),
				Branch(core.KindBlock,
					Branch(core.KindYield, Leaf(core.KindLiteral, "1").As(core.RoleValue)).As(core.RoleStatement),
				).As(core.RoleBody),
			),
		).As(core.RoleBody),
	).As(core.RoleValue)
	local := Branch(core.KindLocalVariable,
		Leaf(core.KindTypeRef, "int").As(core.RoleType),
		Branch(core.KindVariableDeclarator, Leaf(core.KindName, "r").As(core.RoleName), switchExpr).As(core.RoleDeclarator),
	).As(core.RoleStatement)
	cont := Branch(core.KindContinue, Leaf(core.KindName, "outer").As(core.RoleLabel)).As(core.RoleStatement)
	loop := Branch(core.KindFor, Branch(core.KindBlock, switchStmt, local, cont).As(core.RoleBody)).As(core.RoleBody)
	labeled := Branch(core.KindLabeled, Leaf(core.KindName, "outer").As(core.RoleLabel), loop).As(core.RoleStatement)

	return Branch(core.KindFile,
		Branch(core.KindClass,
			Leaf(core.KindName, "C").As(core.RoleName),
			Branch(core.KindClassBody,
				Branch(core.KindMethod,
					Leaf(core.KindName, "run").As(core.RoleName),
					Branch(core.KindBlock, labeled).As(core.RoleBody),
				).As(core.RoleMember),
			).As(core.RoleBody),
		),
	)
}

func TestLookups(t *testing.T) {
	s := NewStore(nil)
	root, err := s.Build(10, loopBlueprint())
	require.NoError(t, err)
	_, err = s.SetRoot(root)
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NoError(t, snap.Check())
	assert.Equal(t, 10, snap.Span(snap.Root()).Start)

	only := func(k core.Kind) NodeID {
		ids := snap.FindKind(snap.Root(), k)
		require.Len(t, ids, 1, k.String())
		return ids[0]
	}
	class := only(core.KindClass)
	method := only(core.KindMethod)
	loop := only(core.KindFor)
	brk := only(core.KindBreak)
	cont := only(core.KindContinue)
	yield := only(core.KindYield)
	switchStmt := only(core.KindSwitchStatement)
	switchExpr := only(core.KindSwitchExpression)

	got, ok := snap.ContainingClass(brk)
	require.True(t, ok)
	assert.Equal(t, class, got)

	got, ok = snap.ContainingMethod(yield)
	require.True(t, ok)
	assert.Equal(t, method, got)

	_, ok = snap.ContainingMethod(method)
	assert.False(t, ok)

	got, ok = snap.EnclosingSwitch(brk)
	require.True(t, ok)
	assert.Equal(t, switchStmt, got)

	got, ok = snap.ExitedStatement(brk)
	require.True(t, ok)
	assert.Equal(t, switchStmt, got)

	got, ok = snap.ExitedStatement(cont)
	require.True(t, ok)
	assert.Equal(t, loop, got)

	got, ok = snap.ExitedStatement(yield)
	require.True(t, ok)
	assert.Equal(t, switchExpr, got)

	_, ok = snap.ExitedStatement(method)
	assert.False(t, ok)

	scope, ok := snap.EnclosingScope(brk)
	require.True(t, ok)
	assert.Equal(t, core.KindBlock, snap.Kind(scope))
}
