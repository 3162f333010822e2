package pattern

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

// Guard is a boolean condition evaluated with the bindings of the pattern it
// guards. Guards are assumed to be referentially transparent with respect to
// those bindings; the matcher does not check it.
type Guard interface {
	Eval(env Bindings) (bool, error)
}

// GuardFunc adapts a function to a Guard
type GuardFunc func(env Bindings) (bool, error)

// Eval implements Guard
func (f GuardFunc) Eval(env Bindings) (bool, error) { return f(env) }

// constantGuard is implemented by guards whose value is known without a value
type constantGuard interface {
	Constant() (value, known bool)
}

// guardConstant reports the compile-time value of g, if any
func guardConstant(g Guard) (value, known bool) {
	if g == nil {
		return true, true
	}
	if c, ok := g.(constantGuard); ok {
		return c.Constant()
	}
	return false, false
}

var errUnsupported = errors.New("unsupported expression")

// ExprGuard evaluates a guard expression held in a syntax tree. It supports
// literals, pattern variables, record accessor calls, String length/isEmpty/
// equals, instanceof with a type or a pattern, unary and binary operators
// with short-circuit && and ||, parentheses and the conditional operator.
// Variables bound by an instanceof pattern are in scope right of its &&.
// Arithmetic on int, short, byte and char operands wraps at 32 bits.
type ExprGuard struct {
	Snap  *tree.Snapshot
	Expr  tree.NodeID
	Types typesys.System
}

// Eval implements Guard
func (g ExprGuard) Eval(env Bindings) (bool, error) {
	ok, _, err := g.cond(g.Expr, env)
	return ok, err
}

func (g ExprGuard) types() typesys.System {
	if g.Types == nil {
		return typesys.NewHierarchy()
	}
	return g.Types
}

// Constant reports a guard that is a boolean literal
func (g ExprGuard) Constant() (value, known bool) {
	id := g.Expr
	for g.Snap.Kind(id) == core.KindParenthesized {
		inner, ok := g.Snap.Child(id, core.RoleOperand)
		if !ok {
			return false, false
		}
		id = inner
	}
	if g.Snap.Kind(id) != core.KindLiteral {
		return false, false
	}
	switch g.Snap.Token(id) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func (g ExprGuard) String() string {
	if text, ok := g.Snap.Text(g.Expr); ok {
		return text
	}
	return g.Snap.Kind(g.Expr).String()
}

func (g ExprGuard) child(id tree.NodeID, role core.Role) (tree.NodeID, error) {
	c, ok := g.Snap.Child(id, role)
	if !ok {
		return 0, fmt.Errorf("%s without %s", g.Snap.Kind(id), role)
	}
	return c, nil
}

func (g ExprGuard) eval(id tree.NodeID, env Bindings) (any, error) {
	s := g.Snap
	switch s.Kind(id) {
	case core.KindLiteral:
		return guardLiteral(s.Token(id))

	case core.KindIdentifier:
		name := s.Token(id)
		v, ok := env.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", name)
		}
		return unwrapValue(v), nil

	case core.KindParenthesized:
		inner, err := g.child(id, core.RoleOperand)
		if err != nil {
			return nil, err
		}
		return g.eval(inner, env)

	case core.KindUnary:
		inner, err := g.child(id, core.RoleOperand)
		if err != nil {
			return nil, err
		}
		x, err := g.eval(inner, env)
		if err != nil {
			return nil, err
		}
		return unary(s.Token(id), x)

	case core.KindBinary:
		return g.binary(id, env)

	case core.KindConditional:
		cond, err := g.child(id, core.RoleCondition)
		if err != nil {
			return nil, err
		}
		c, err := g.eval(cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := c.(bool)
		if !ok {
			return nil, fmt.Errorf("condition is %T, not boolean", c)
		}
		branch := core.RoleElse
		if b {
			branch = core.RoleThen
		}
		next, err := g.child(id, branch)
		if err != nil {
			return nil, err
		}
		return g.eval(next, env)

	case core.KindInstanceOf:
		ok, _, err := g.instanceOf(id, env)
		if err != nil {
			return nil, err
		}
		return ok, nil

	case core.KindMethodCall:
		return g.call(id, env)
	}
	return nil, fmt.Errorf("%w: %s", errUnsupported, s.Kind(id))
}

// cond evaluates a boolean expression and returns the pattern variables it
// binds when true
func (g ExprGuard) cond(id tree.NodeID, env Bindings) (bool, Bindings, error) {
	s := g.Snap
	switch s.Kind(id) {
	case core.KindParenthesized:
		inner, err := g.child(id, core.RoleOperand)
		if err != nil {
			return false, nil, err
		}
		return g.cond(inner, env)
	case core.KindInstanceOf:
		return g.instanceOf(id, env)
	case core.KindBinary:
		if s.Token(id) == "&&" {
			return g.and(id, env)
		}
	}
	x, err := g.eval(id, env)
	if err != nil {
		return false, nil, err
	}
	b, ok := x.(bool)
	if !ok {
		return false, nil, fmt.Errorf("%s is %T, not boolean", s.Kind(id), x)
	}
	return b, nil, nil
}

func (g ExprGuard) and(id tree.NodeID, env Bindings) (bool, Bindings, error) {
	left, err := g.child(id, core.RoleLeft)
	if err != nil {
		return false, nil, err
	}
	right, err := g.child(id, core.RoleRight)
	if err != nil {
		return false, nil, err
	}
	ok, lb, err := g.cond(left, env)
	if err != nil || !ok {
		return false, nil, err
	}
	scope := append(append(Bindings(nil), env...), lb...)
	ok, rb, err := g.cond(right, scope)
	if err != nil || !ok {
		return false, nil, err
	}
	return true, append(lb, rb...), nil
}

// instanceOf tests `x instanceof T` and `x instanceof <pattern>`; null is an
// instance of nothing
func (g ExprGuard) instanceOf(id tree.NodeID, env Bindings) (bool, Bindings, error) {
	s := g.Snap
	operand, err := g.child(id, core.RoleOperand)
	if err != nil {
		return false, nil, err
	}
	v, err := g.value(operand, env)
	if err != nil || v == nil {
		return false, nil, err
	}
	if pat, ok := s.Child(id, core.RolePattern); ok {
		p, err := FromTree(s, pat, g.Types)
		if err != nil {
			return false, nil, err
		}
		o := NewMatcher(g.Types).evaluate(p, v, env)
		if o.Err != nil {
			return false, nil, o.Err
		}
		return o.Matched, o.Bindings, nil
	}
	typ, err := g.child(id, core.RoleType)
	if err != nil {
		return false, nil, err
	}
	return g.types().IsAssignable(v.RuntimeType(), typesys.Erase(s.Token(typ))), nil, nil
}

// value evaluates id to a runtime value. Variables and record components
// keep their class; computed scalars are boxed.
func (g ExprGuard) value(id tree.NodeID, env Bindings) (Value, error) {
	s := g.Snap
	switch s.Kind(id) {
	case core.KindIdentifier:
		v, ok := env.Lookup(s.Token(id))
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", s.Token(id))
		}
		return v, nil
	case core.KindParenthesized:
		inner, err := g.child(id, core.RoleOperand)
		if err != nil {
			return nil, err
		}
		return g.value(inner, env)
	case core.KindMethodCall:
		v, ok, err := g.accessor(id, env)
		if err != nil || ok {
			return v, err
		}
	}
	x, err := g.eval(id, env)
	if err != nil {
		return nil, err
	}
	return box(x), nil
}

func (g ExprGuard) binary(id tree.NodeID, env Bindings) (any, error) {
	op := g.Snap.Token(id)
	if op == "&&" {
		ok, _, err := g.and(id, env)
		if err != nil {
			return nil, err
		}
		return ok, nil
	}
	left, err := g.child(id, core.RoleLeft)
	if err != nil {
		return nil, err
	}
	right, err := g.child(id, core.RoleRight)
	if err != nil {
		return nil, err
	}
	l, err := g.eval(left, env)
	if err != nil {
		return nil, err
	}
	if op == "||" {
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of %s is %T", op, l)
		}
		if lb {
			return true, nil
		}
		r, err := g.eval(right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of %s is %T", op, r)
		}
		return rb, nil
	}
	r, err := g.eval(right, env)
	if err != nil {
		return nil, err
	}
	return binary(op, l, r)
}

// call evaluates record accessors `p.x()` and a few String methods
func (g ExprGuard) call(id tree.NodeID, env Bindings) (any, error) {
	if v, ok, err := g.accessor(id, env); err != nil || ok {
		return unwrapValue(v), err
	}
	s := g.Snap
	name, _ := s.NameOf(id)
	qual, err := g.child(id, core.RoleQualifier)
	if err != nil {
		return nil, err
	}
	recv, err := g.eval(qual, env)
	if err != nil {
		return nil, err
	}
	args := g.arguments(id)

	if str, ok := recv.(string); ok {
		switch {
		case name == "length" && len(args) == 0:
			return int32(len([]rune(str))), nil
		case name == "isEmpty" && len(args) == 0:
			return str == "", nil
		case name == "equals" && len(args) == 1:
			a, err := g.eval(args[0], env)
			if err != nil {
				return nil, err
			}
			return a == str, nil
		}
		return nil, fmt.Errorf("%w: String.%s", errUnsupported, name)
	}
	if v, ok := recv.(Value); ok {
		return nil, fmt.Errorf("%w: %s.%s()", errUnsupported, v.RuntimeType(), name)
	}
	return nil, fmt.Errorf("%w: call %s on %T", errUnsupported, name, recv)
}

func (g ExprGuard) arguments(id tree.NodeID) []tree.NodeID {
	if list, ok := g.Snap.Child(id, core.RoleArguments); ok {
		return g.Snap.ChildrenWithRole(list, core.RoleArgument)
	}
	return nil
}

// accessor evaluates a record accessor call to the raw component. It
// reports false when the receiver is not a record.
func (g ExprGuard) accessor(id tree.NodeID, env Bindings) (Value, bool, error) {
	name, ok := g.Snap.NameOf(id)
	if !ok {
		return nil, false, fmt.Errorf("method call without a name")
	}
	qual, err := g.child(id, core.RoleQualifier)
	if err != nil {
		return nil, false, err
	}
	if len(g.arguments(id)) > 0 {
		return nil, false, nil
	}
	recv, err := g.value(qual, env)
	if err != nil {
		return nil, false, err
	}
	if recv == nil {
		return nil, false, fmt.Errorf("%s() on null", name)
	}
	comps, ok := g.types().Components(recv.RuntimeType())
	if !ok {
		return nil, false, nil
	}
	for i, c := range comps {
		if c.Name != name {
			continue
		}
		cv, ok := recv.Component(i)
		if !ok {
			return nil, false, fmt.Errorf("%s has no component %d", recv.RuntimeType(), i)
		}
		return cv, true, nil
	}
	return nil, false, fmt.Errorf("%s has no accessor %s()", recv.RuntimeType(), name)
}

// intTypes carry 32-bit payloads in guard arithmetic
var intTypes = map[string]bool{
	"int": true, "short": true, "byte": true, "char": true,
	"Integer": true, "Short": true, "Byte": true, "Character": true,
	"java.lang.Integer": true, "java.lang.Short": true, "java.lang.Byte": true, "java.lang.Character": true,
}

// unwrapValue turns boxed and primitive values into their scalar payload
func unwrapValue(v Value) any {
	if v == nil {
		return nil
	}
	s := v.Scalar()
	if s == nil {
		return v
	}
	if n, ok := s.(int64); ok && intTypes[v.RuntimeType()] {
		return int32(n)
	}
	return s
}

// box wraps a computed scalar as a runtime value
func box(x any) Value {
	switch x := x.(type) {
	case Value:
		return x
	case int32:
		return Int(int64(x))
	case int64:
		return Long(x)
	case float64:
		return Double(x)
	case bool:
		return Bool(x)
	case string:
		return Str(x)
	case EnumConstant:
		return &Object{Type: "java.lang.Enum", Data: x}
	}
	return nil
}

// guardLiteral parses a literal as ParseLiteral does, typing int and char
// literals as int32
func guardLiteral(tok string) (any, error) {
	v, err := ParseLiteral(tok)
	if err != nil {
		return nil, err
	}
	if n, ok := v.(int64); ok {
		if last := tok[len(tok)-1]; last != 'l' && last != 'L' {
			return int32(n), nil
		}
	}
	return v, nil
}

// ParseLiteral parses a literal token into int64, float64, bool, string,
// rune-as-int64 or nil.
func ParseLiteral(tok string) (any, error) {
	switch tok {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if strings.HasPrefix(tok, `"`) {
		return strconv.Unquote(tok)
	}
	if len(tok) >= 3 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		r, _, _, err := strconv.UnquoteChar(tok[1:len(tok)-1], '\'')
		if err != nil {
			return nil, err
		}
		return int64(r), nil
	}
	clean := strings.ReplaceAll(tok, "_", "")
	trimmed := strings.TrimRight(clean, "lL")
	if i, err := strconv.ParseInt(trimmed, 0, 64); err == nil {
		return i, nil
	}
	if !strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") {
		clean = strings.TrimRight(clean, "fFdD")
	}
	if f, err := strconv.ParseFloat(clean, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("bad literal %q", tok)
}

func unary(op string, x any) (any, error) {
	switch op {
	case "!":
		if b, ok := x.(bool); ok {
			return !b, nil
		}
	case "-":
		switch n := x.(type) {
		case int32:
			return -n, nil
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
	case "+":
		switch x.(type) {
		case int32, int64, float64:
			return x, nil
		}
	case "~":
		switch n := x.(type) {
		case int32:
			return ^n, nil
		case int64:
			return ^n, nil
		}
	}
	return nil, fmt.Errorf("bad operand %T for unary %s", x, op)
}

func binary(op string, l, r any) (any, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "+":
		if ls, ok := l.(string); ok {
			return ls + fmt.Sprint(r), nil
		}
		if rs, ok := r.(string); ok {
			return fmt.Sprint(l) + rs, nil
		}
	case "&", "|", "^":
		if lb, ok := l.(bool); ok {
			if rb, ok := r.(bool); ok {
				switch op {
				case "&":
					return lb && rb, nil
				case "|":
					return lb || rb, nil
				}
				return lb != rb, nil
			}
		}
	}

	if op == ">>>" {
		return unsignedShift(l, r)
	}
	if li, ok := l.(int32); ok {
		if ri, ok := r.(int32); ok {
			return intOp(op, li, ri, 31)
		}
		if ri, ok := r.(int64); ok && (op == "<<" || op == ">>") {
			return intOp(op, li, int32(ri&31), 31)
		}
	}
	li, lInt := asLong(l)
	ri, rInt := asLong(r)
	if lInt && rInt {
		return intOp(op, li, ri, 63)
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("bad operands %T %s %T", l, op, r)
	}
	return floatOp(op, lf, rf)
}

// intOp applies op in the width of T; shift counts are masked with shiftMask
func intOp[T int32 | int64](op string, l, r, shiftMask T) (any, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return nil, errors.New("division by zero")
		}
		if op == "/" {
			return l / r, nil
		}
		return l % r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	case "&":
		return l & r, nil
	case "|":
		return l | r, nil
	case "^":
		return l ^ r, nil
	case "<<":
		return l << uint(r&shiftMask), nil
	case ">>":
		return l >> uint(r&shiftMask), nil
	}
	return nil, fmt.Errorf("%w: operator %s", errUnsupported, op)
}

func floatOp(op string, l, r float64) (any, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "%":
		return math.Mod(l, r), nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return nil, fmt.Errorf("%w: operator %s", errUnsupported, op)
}

func unsignedShift(l, r any) (any, error) {
	n, ok := asLong(r)
	if !ok {
		return nil, fmt.Errorf("bad operands %T >>> %T", l, r)
	}
	switch l := l.(type) {
	case int32:
		return int32(uint32(l) >> uint(n&31)), nil
	case int64:
		return int64(uint64(l) >> uint(n&63)), nil
	}
	return nil, fmt.Errorf("bad operands %T >>> %T", l, r)
}

// asLong widens int and long operands to int64
func asLong(x any) (int64, bool) {
	switch n := x.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(l, r any) bool {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
		return false
	}
	return l == r
}
