package pattern

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

func evalGuard(t *testing.T, expr tree.Blueprint, env Bindings) (bool, error) {
	t.Helper()
	snap := buildSnapshot(t, expr)
	return ExprGuard{Snap: snap, Expr: snap.Root(), Types: testTypes()}.Eval(env)
}

func bind(name string, v Value) Bindings {
	return Bindings{{Name: name, Value: v}}
}

func ident(name string) tree.Blueprint { return tree.Leaf(core.KindIdentifier, name) }

func lit(tok string) tree.Blueprint { return tree.Leaf(core.KindLiteral, tok) }

func instanceOfType(operand, typ string) tree.Blueprint {
	return tree.Branch(core.KindInstanceOf,
		ident(operand).As(core.RoleOperand),
		tree.Leaf(core.KindTypeRef, typ).As(core.RoleType),
	)
}

func instanceOfPattern(operand string, p tree.Blueprint) tree.Blueprint {
	return tree.Branch(core.KindInstanceOf,
		ident(operand).As(core.RoleOperand),
		p.As(core.RolePattern),
	)
}

func callNode(recv, name string) tree.Blueprint {
	return tree.Branch(core.KindMethodCall,
		ident(recv).As(core.RoleQualifier),
		tree.Leaf(core.KindName, name).As(core.RoleName),
		tree.Branch(core.KindArgumentList).As(core.RoleArguments),
	)
}

func TestExprGuard_InstanceOfType(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		v    Value
		want bool
	}{
		{"string is String", "String", Str("hi"), true},
		{"string is CharSequence", "CharSequence", Str("hi"), true},
		{"integer is not String", "String", Int(3), false},
		{"integer is Number", "Number", Int(3), true},
		{"record is not String", "String", point(1, 2), false},
		{"record is its record type", "Point", point(1, 2), true},
		{"record is Object", "Object", point(1, 2), true},
		{"circle is Shape", "geo.Shape", Rec("geo.Circle", Double(1)), true},
		{"generic type is erased", "Comparable<String>", Str("hi"), true},
		{"null is nothing", "Object", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := evalGuard(t, instanceOfType("o", tt.typ), bind("o", tt.v))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestExprGuard_InstanceOfPatternBindsForAnd(t *testing.T) {
	// o instanceof String s && s.length() > 1
	expr := binaryNode("&&",
		instanceOfPattern("o", typeTestNode("String", "s")),
		binaryNode(">", callNode("s", "length"), lit("1")),
	)
	for _, tt := range []struct {
		v    Value
		want bool
	}{
		{Str("hi"), true},
		{Str("h"), false},
		{Int(3), false},
		{nil, false},
	} {
		ok, err := evalGuard(t, expr, bind("o", tt.v))
		require.NoError(t, err, "%v", tt.v)
		assert.Equal(t, tt.want, ok, "%v", tt.v)
	}

	ok, err := evalGuard(t, instanceOfPattern("o", typeTestNode("String", "s")), bind("o", Str("")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExprGuard_InstanceOfRecordPattern(t *testing.T) {
	// o instanceof Point(int x, int y) && (x == y)
	rec := tree.Branch(core.KindRecordPattern,
		tree.Leaf(core.KindTypeRef, "Point").As(core.RoleType),
		typeTestNode("int", "x").As(core.RoleComponent),
		typeTestNode("int", "y").As(core.RoleComponent),
	)
	expr := binaryNode("&&",
		instanceOfPattern("o", rec),
		tree.Branch(core.KindParenthesized, binaryNode("==", ident("x"), ident("y")).As(core.RoleOperand)),
	)

	ok, err := evalGuard(t, expr, bind("o", point(2, 2)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evalGuard(t, expr, bind("o", point(1, 2)))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = evalGuard(t, expr, bind("o", Str("p")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExprGuard_InstanceOfInCaseGuard(t *testing.T) {
	// Object o when o instanceof String s && s.isEmpty()
	snap := buildSnapshot(t, tree.Branch(core.KindGuardedPattern,
		typeTestNode("Object", "o").As(core.RolePattern),
		binaryNode("&&",
			instanceOfPattern("o", typeTestNode("String", "s")),
			callNode("s", "isEmpty"),
		).As(core.RoleGuard),
	))
	p, err := FromTree(snap, snap.Root(), testTypes())
	require.NoError(t, err)
	m := NewMatcher(testTypes())

	b, ok := m.Matches(p, Str(""))
	require.True(t, ok)
	// guard variables stay inside the guard
	assert.Equal(t, []string{"o"}, b.Names())

	o := m.Evaluate(p, Str("x"))
	assert.False(t, o.Matched)
	assert.NoError(t, o.Err)
	o = m.Evaluate(p, Int(1))
	assert.False(t, o.Matched)
	assert.NoError(t, o.Err)
}

func TestExprGuard_IntArithmeticWraps(t *testing.T) {
	plusOneGreater := binaryNode(">", binaryNode("+", ident("i"), lit("1")), ident("i"))

	ok, err := evalGuard(t, plusOneGreater, bind("i", Int(math.MaxInt32)))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = evalGuard(t, plusOneGreater, bind("i", Prim("int", int64(math.MaxInt32))))
	require.NoError(t, err)
	assert.False(t, ok)

	// long arithmetic does not wrap at 32 bits
	ok, err = evalGuard(t, plusOneGreater, bind("i", Long(math.MaxInt32)))
	require.NoError(t, err)
	assert.True(t, ok)

	tests := []struct {
		name string
		expr tree.Blueprint
	}{
		{"literal overflow", binaryNode("<", binaryNode("+", lit("2147483647"), lit("1")), lit("0"))},
		{"long literal", binaryNode(">", binaryNode("+", lit("2147483647L"), lit("1")), lit("0"))},
		{"multiplication", binaryNode("==", binaryNode("*", lit("65536"), lit("65536")), lit("0"))},
		{"char arithmetic", binaryNode("==", binaryNode("+", lit("'a'"), lit("1")), lit("98"))},
		{"shift count masked", binaryNode("==", binaryNode("<<", lit("1"), lit("33")), lit("2"))},
		{"unsigned shift", binaryNode("==", binaryNode(">>>", lit("-1"), lit("28")), lit("15"))},
		{"string length", binaryNode("==", callNode("s", "length"), lit("3"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := evalGuard(t, tt.expr, bind("s", Str("abc")))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}
