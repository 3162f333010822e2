package pattern

import (
	"fmt"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

// FromTree builds a pattern from a pattern node. Guards become ExprGuards
// over the same snapshot.
func FromTree(snap *tree.Snapshot, id tree.NodeID, types typesys.System) (Pattern, error) {
	l, err := LabelFromTree(snap, id, types)
	if err != nil {
		return nil, err
	}
	p, ok := l.(Pattern)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a pattern", ErrInvalidPattern, snap.Kind(id))
	}
	return p, nil
}

// LabelFromTree builds a case label element from a pattern, literal,
// enum constant, null or default node.
func LabelFromTree(snap *tree.Snapshot, id tree.NodeID, types typesys.System) (Label, error) {
	typeOf := func() (string, error) {
		t, ok := snap.Child(id, core.RoleType)
		if !ok {
			return "", fmt.Errorf("%w: %s without a type", ErrInvalidPattern, snap.Kind(id))
		}
		return snap.Token(t), nil
	}
	name := func() string {
		n, _ := snap.NameOf(id)
		return n
	}

	switch kind := snap.Kind(id); kind {
	case core.KindTypeTestPattern:
		typ, err := typeOf()
		if err != nil {
			return nil, err
		}
		return TypeTest{Type: typ, Name: name()}, nil

	case core.KindRecordPattern:
		typ, err := typeOf()
		if err != nil {
			return nil, err
		}
		rec := Record{Type: typ, Name: name()}
		for _, c := range snap.ChildrenWithRole(id, core.RoleComponent) {
			sub, err := FromTree(snap, c, types)
			if err != nil {
				return nil, err
			}
			rec.Components = append(rec.Components, sub)
		}
		return rec, nil

	case core.KindParenthesizedPattern:
		inner, ok := snap.Child(id, core.RolePattern)
		if !ok {
			return nil, fmt.Errorf("%w: empty parentheses", ErrInvalidPattern)
		}
		p, err := FromTree(snap, inner, types)
		if err != nil {
			return nil, err
		}
		return Parenthesized{Inner: p}, nil

	case core.KindGuardedPattern:
		inner, ok := snap.Child(id, core.RolePattern)
		if !ok {
			return nil, fmt.Errorf("%w: guard without a pattern", ErrInvalidPattern)
		}
		p, err := FromTree(snap, inner, types)
		if err != nil {
			return nil, err
		}
		g, ok := snap.Child(id, core.RoleGuard)
		if !ok {
			return nil, fmt.Errorf("%w: guarded pattern without a guard", ErrInvalidPattern)
		}
		return Guarded{Inner: p, Guard: ExprGuard{Snap: snap, Expr: g, Types: types}}, nil

	case core.KindUnnamedPattern:
		return Unnamed{}, nil
	case core.KindDefaultLabel:
		return Default{}, nil
	case core.KindNullLabel:
		return NullLabel{}, nil

	case core.KindLiteral:
		if snap.Token(id) == "null" {
			return NullLabel{}, nil
		}
		return literalConstant(snap.Token(id), false)

	case core.KindUnary:
		operand, ok := snap.Child(id, core.RoleOperand)
		if snap.Token(id) != "-" || !ok || snap.Kind(operand) != core.KindLiteral {
			return nil, fmt.Errorf("%w: unsupported constant expression", ErrInvalidPattern)
		}
		return literalConstant(snap.Token(operand), true)

	case core.KindIdentifier:
		return Constant{Value: EnumConstant(snap.Token(id))}, nil

	case core.KindFieldAccess:
		n, ok := snap.NameOf(id)
		if !ok {
			return nil, fmt.Errorf("%w: qualified constant without a name", ErrInvalidPattern)
		}
		c := Constant{Value: EnumConstant(n)}
		if q, ok := snap.Child(id, core.RoleQualifier); ok {
			c.Type = snap.Token(q)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: unexpected %s in case label", ErrInvalidPattern, kind)
	}
}

func literalConstant(tok string, negate bool) (Label, error) {
	v, err := ParseLiteral(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if negate {
		if v, err = unary("-", v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}
	c := Constant{Value: v}
	switch v.(type) {
	case int64:
		c.Type = "int"
		if len(tok) > 2 && tok[0] == '\'' {
			c.Type = "char"
		} else if last := tok[len(tok)-1]; last == 'l' || last == 'L' {
			c.Type = "long"
		}
	case float64:
		c.Type = "double"
	case bool:
		c.Type = "boolean"
	case string:
		c.Type = "java.lang.String"
	}
	return c, nil
}

// SwitchFromTree builds a Switch from a switch statement or expression. Case
// bodies are the ids of the rule body or of the case group.
func SwitchFromTree(snap *tree.Snapshot, id tree.NodeID, types typesys.System) (Switch, error) {
	var sw Switch
	if k := snap.Kind(id); k != core.KindSwitchStatement && k != core.KindSwitchExpression {
		return sw, fmt.Errorf("%s is not a switch", k)
	}
	block, ok := snap.Child(id, core.RoleBody)
	if !ok {
		return sw, nil
	}
	for _, entry := range snap.Children(block) {
		var body tree.NodeID
		switch snap.Kind(entry) {
		case core.KindSwitchRule:
			body, _ = snap.Child(entry, core.RoleBody)
		case core.KindCaseGroup:
			body = entry
		default:
			continue
		}
		for _, lbl := range snap.ChildrenWithRole(entry, core.RoleLabel) {
			c, err := caseFromLabel(snap, lbl, types)
			if err != nil {
				return sw, err
			}
			c.Body = body
			sw.Cases = append(sw.Cases, c)
		}
	}
	return sw, nil
}

func caseFromLabel(snap *tree.Snapshot, label tree.NodeID, types typesys.System) (Case, error) {
	var c Case
	for _, el := range snap.Children(label) {
		if snap.Kind(el) == core.KindPatternGuard {
			expr, ok := snap.Child(el, core.RoleValue)
			if !ok {
				return c, fmt.Errorf("%w: empty guard", ErrInvalidPattern)
			}
			c.Guard = ExprGuard{Snap: snap, Expr: expr, Types: types}
			continue
		}
		l, err := LabelFromTree(snap, el, types)
		if err != nil {
			return c, err
		}
		c.Labels = append(c.Labels, l)
	}
	return c, nil
}
