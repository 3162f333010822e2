package pattern

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/typesys"
)

// ErrNullSelector is returned by Select for a null selector when no case
// carries a null label.
var ErrNullSelector = errors.New("null selector and no case null")

// Case is one switch case: its labels, the optional `when` guard applying to
// its pattern labels, and an opaque body.
type Case struct {
	Labels []Label
	Guard  Guard
	Body   any
}

// Switch is an ordered list of cases
type Switch struct {
	Cases []Case
}

// Selection is the case chosen for a selector value
type Selection struct {
	Matched  bool
	Case     int
	Label    int
	Bindings Bindings
}

// Select returns the first case whose label matches v. Each label is tried in
// a fresh environment: bindings of a label that fails, or whose guard is
// false, are discarded before the next label is tried. The default label
// is chosen only when no other label matches.
func (m *Matcher) Select(ctx context.Context, sw Switch, v Value) (Selection, error) {
	defCase, defLabel := -1, -1
	for ci, c := range sw.Cases {
		if err := ctx.Err(); err != nil {
			return Selection{}, err
		}
		for li, l := range c.Labels {
			switch l := l.(type) {
			case NullLabel:
				if v == nil {
					return Selection{Matched: true, Case: ci, Label: li}, nil
				}
			case Default:
				if defCase < 0 {
					defCase, defLabel = ci, li
				}
			case Constant:
				if v != nil && equal(constantValue(l.Value), v.Scalar()) {
					return Selection{Matched: true, Case: ci, Label: li}, nil
				}
			case Pattern:
				if v == nil {
					continue
				}
				o := m.Evaluate(l, v)
				var gerr *GuardError
				if errors.As(o.Err, &gerr) {
					return Selection{}, gerr
				}
				if !o.Matched {
					continue
				}
				if c.Guard != nil {
					ok, err := c.Guard.Eval(o.Bindings)
					if err != nil {
						return Selection{}, &GuardError{Guard: fmt.Sprint(c.Guard), Err: err}
					}
					if !ok {
						continue
					}
				}
				return Selection{Matched: true, Case: ci, Label: li, Bindings: o.Bindings}, nil
			}
		}
	}
	if v == nil {
		return Selection{}, ErrNullSelector
	}
	if defCase >= 0 {
		return Selection{Matched: true, Case: defCase, Label: defLabel}, nil
	}
	return Selection{}, nil
}

func constantValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case rune:
		return int64(n)
	}
	return v
}

// Dominance reports a label that can never be selected because an earlier
// label matches everything it matches.
type Dominance struct {
	Case, Label     int
	ByCase, ByLabel int
}

func (d Dominance) String() string {
	return fmt.Sprintf("case %d label %d is dominated by case %d label %d", d.Case, d.Label, d.ByCase, d.ByLabel)
}

// Dominated lists every dominated label of sw in source order
func (m *Matcher) Dominated(sw Switch) []Dominance {
	var out []Dominance
	for ci, c := range sw.Cases {
		for li, l := range c.Labels {
			if bc, bl, ok := m.dominatedBy(sw, ci, l); ok {
				out = append(out, Dominance{Case: ci, Label: li, ByCase: bc, ByLabel: bl})
			}
		}
	}
	return out
}

func (m *Matcher) dominatedBy(sw Switch, upTo int, l Label) (int, int, bool) {
	for pi := 0; pi < upTo; pi++ {
		prev := sw.Cases[pi]
		for pl, p := range prev.Labels {
			if m.labelDominates(p, prev.Guard, l) {
				return pi, pl, true
			}
		}
	}
	return 0, 0, false
}

func (m *Matcher) labelDominates(p Label, guard Guard, l Label) bool {
	switch p := p.(type) {
	case NullLabel:
		_, ok := l.(NullLabel)
		return ok
	case Constant:
		c, ok := l.(Constant)
		return ok && equal(constantValue(p.Value), constantValue(c.Value))
	case Default:
		// patterns after default are unreachable; constants are not
		_, isDefault := l.(Default)
		_, isPattern := l.(Pattern)
		return isPattern && !isDefault
	case Pattern:
		if on, known := guardConstant(guard); !known || !on {
			return false
		}
		inner, ok := unguarded(p)
		if !ok {
			return false
		}
		switch l := l.(type) {
		case Constant:
			if l.Type == "" {
				return false
			}
			tt, ok := Unwrap(inner).(TypeTest)
			return ok && m.Types.IsAssignable(l.Type, tt.Type)
		case Default, NullLabel:
			return false
		case Pattern:
			if g, ok := Unwrap(l).(Guarded); ok {
				l = g.Inner
			}
			return m.dominates(inner, l)
		}
	}
	return false
}

// unguarded strips a guard that is constantly true and reports false for
// any other guarded pattern.
func unguarded(p Pattern) (Pattern, bool) {
	g, ok := Unwrap(p).(Guarded)
	if !ok {
		return p, true
	}
	if on, known := guardConstant(g.Guard); known && on {
		return unguarded(g.Inner)
	}
	return nil, false
}

// dominates reports whether every value matched by q is also matched by p
func (m *Matcher) dominates(p, q Pattern) bool {
	p, q = Unwrap(p), Unwrap(q)
	switch p := p.(type) {
	case Unnamed:
		return true
	case TypeTest:
		switch q := q.(type) {
		case TypeTest:
			return m.subsumes(q.Type, p.Type)
		case Record:
			return m.subsumes(q.Type, p.Type)
		}
	case Record:
		q, ok := q.(Record)
		if !ok || len(p.Components) != len(q.Components) {
			return false
		}
		if !m.Types.IsAssignable(q.Type, p.Type) || !m.Types.IsAssignable(p.Type, q.Type) {
			return false
		}
		comps, _ := m.Types.Components(p.Type)
		for i := range p.Components {
			if i < len(comps) && m.Unconditional(p.Components[i], comps[i].Type) {
				continue
			}
			if !m.dominates(p.Components[i], q.Components[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// subsumes reports whether type sub is covered by a type pattern for sup
// without boxing or unboxing.
func (m *Matcher) subsumes(sub, sup string) bool {
	if typesys.IsPrimitive(sub) != typesys.IsPrimitive(sup) {
		return false
	}
	return m.Types.IsAssignable(sub, sup)
}

// Unconditional reports whether p matches every non-null value of type typ
// without looking at the value.
func (m *Matcher) Unconditional(p Pattern, typ string) bool {
	switch p := Unwrap(p).(type) {
	case TypeTest:
		return p.Type == "var" || m.subsumes(typ, p.Type)
	case Unnamed, Default:
		return true
	case Guarded:
		if on, known := guardConstant(p.Guard); known && on {
			return m.Unconditional(p.Inner, typ)
		}
	}
	return false
}

// Exhaustive reports whether sw handles every value of the selector type.
// A default label, an unconditional pattern, record patterns that together
// cover every component combination, case constants naming every constant
// of an enum, or coverage of every permitted subtype of a sealed abstract
// type make a switch exhaustive. The uncovered types and enum constants are
// returned otherwise.
func (m *Matcher) Exhaustive(sw Switch, selector string) (bool, []string) {
	var (
		patterns  []Pattern
		constants []Constant
	)
	for _, c := range sw.Cases {
		on, known := guardConstant(c.Guard)
		if !known || !on {
			continue
		}
		for _, l := range c.Labels {
			switch l := l.(type) {
			case Default:
				return true, nil
			case Constant:
				if _, ok := l.Value.(EnumConstant); ok {
					constants = append(constants, l)
				}
			case Pattern:
				if p, ok := unguarded(l); ok {
					patterns = append(patterns, p)
				}
			}
		}
	}
	var missing []string
	ok := m.covered(selector, patterns, constants, map[string]bool{}, &missing)
	return ok, missing
}

func (m *Matcher) covered(typ string, patterns []Pattern, constants []Constant, seen map[string]bool, missing *[]string) bool {
	if m.coversType(typ, patterns) {
		return true
	}
	if ok, rest := m.enumCovered(typ, constants); ok {
		return true
	} else if len(rest) > 0 {
		*missing = append(*missing, rest...)
		return false
	}
	if seen[typ] {
		return false
	}
	seen[typ] = true

	permits, ok := m.Types.Permits(typ)
	if !ok || !m.Types.IsAbstract(typ) {
		*missing = append(*missing, typ)
		return false
	}
	all := true
	for _, sub := range permits {
		if !m.covered(sub, patterns, constants, seen, missing) {
			all = false
		}
	}
	return all
}

// enumCovered reports whether the case constants name every constant of the
// enum typ. When some but not all are named it returns the missing ones.
func (m *Matcher) enumCovered(typ string, constants []Constant) (bool, []string) {
	all, ok := m.Types.Constants(typ)
	if !ok || len(constants) == 0 {
		return false, nil
	}
	named := map[string]bool{}
	for _, c := range constants {
		if c.Type != "" && !m.Types.IsAssignable(c.Type, typ) {
			continue
		}
		named[string(c.Value.(EnumConstant))] = true
	}
	if len(named) == 0 {
		return false, nil
	}
	var rest []string
	for _, name := range all {
		if !named[name] {
			rest = append(rest, typ+"."+name)
		}
	}
	return len(rest) == 0, rest
}

// coversType reports whether patterns together match every non-null value
// of typ. Record patterns of a record type are checked one component at a
// time.
func (m *Matcher) coversType(typ string, patterns []Pattern) bool {
	for _, p := range patterns {
		if m.covers(p, typ) {
			return true
		}
	}
	comps, ok := m.Types.Components(typ)
	if !ok {
		return false
	}
	var rows [][]Pattern
	for _, p := range patterns {
		if r, ok := Unwrap(p).(Record); ok && len(r.Components) == len(comps) && m.Types.IsAssignable(typ, r.Type) {
			rows = append(rows, r.Components)
		}
	}
	return m.rowsCover(componentTypes(comps), rows, 0)
}

// maxCoverDepth bounds the component splitting of rowsCover
const maxCoverDepth = 32

// rowsCover reports whether the rows of component patterns together match
// every combination of values of types. The first column is settled by the
// rows total on its type, else by splitting a sealed abstract type into its
// permitted subtypes, else by deconstructing a record type into its own
// components.
func (m *Matcher) rowsCover(types []string, rows [][]Pattern, depth int) bool {
	if len(rows) == 0 || depth > maxCoverDepth {
		return false
	}
	if len(types) == 0 {
		return true
	}
	typ, rest := types[0], types[1:]

	var total [][]Pattern
	for _, r := range rows {
		if m.covers(r[0], typ) {
			total = append(total, r[1:])
		}
	}
	if m.rowsCover(rest, total, depth+1) {
		return true
	}

	if permits, ok := m.Types.Permits(typ); ok && m.Types.IsAbstract(typ) {
		all := true
		for _, sub := range permits {
			if !m.rowsCover(append([]string{sub}, rest...), rows, depth+1) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}

	comps, ok := m.Types.Components(typ)
	if !ok {
		return false
	}
	var flat [][]Pattern
	for _, r := range rows {
		var head []Pattern
		if rec, ok := Unwrap(r[0]).(Record); ok && len(rec.Components) == len(comps) && m.Types.IsAssignable(typ, rec.Type) {
			head = slices.Clone(rec.Components)
		} else if m.covers(r[0], typ) {
			head = make([]Pattern, len(comps))
			for i := range head {
				head[i] = Unnamed{}
			}
		} else {
			continue
		}
		flat = append(flat, append(head, r[1:]...))
	}
	return m.rowsCover(append(componentTypes(comps), rest...), flat, depth+1)
}

func componentTypes(comps []core.Component) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = c.Type
	}
	return out
}

// covers reports whether the single pattern p matches every value of typ
func (m *Matcher) covers(p Pattern, typ string) bool {
	switch p := Unwrap(p).(type) {
	case TypeTest, Unnamed:
		return m.Unconditional(p, typ)
	case Record:
		if !m.Types.IsAssignable(typ, p.Type) {
			return false
		}
		comps, ok := m.Types.Components(p.Type)
		if !ok || len(comps) != len(p.Components) {
			return false
		}
		for i, c := range p.Components {
			if !m.covers(c, comps[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}
