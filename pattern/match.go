package pattern

import (
	"fmt"

	"github.com/oxhq/psitree/typesys"
)

// TypeMismatchError reports a record pattern whose arity disagrees with the
// declared components of the matched type. It is fatal to the single match
// that produced it.
type TypeMismatchError struct {
	Type     string
	Declared int
	Pattern  int
}

func (e *TypeMismatchError) Error() string {
	if e.Declared < 0 {
		return fmt.Sprintf("%s is not a record type", e.Type)
	}
	return fmt.Sprintf("record pattern for %s has %d components, type declares %d",
		e.Type, e.Pattern, e.Declared)
}

// GuardError wraps a failure while evaluating a guard
type GuardError struct {
	Guard string
	Err   error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %s: %v", e.Guard, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

// Outcome is the full result of one match. Err explains a failed match that
// was not a plain mismatch; it never escapes the call that produced it.
type Outcome struct {
	Matched  bool
	Bindings Bindings
	Err      error
}

// Matcher evaluates patterns using a type system for assignability and
// record components.
type Matcher struct {
	Types typesys.System
}

// NewMatcher returns a matcher over types, defaulting to the built-in
// java.lang hierarchy.
func NewMatcher(types typesys.System) *Matcher {
	if types == nil {
		types = typesys.NewHierarchy()
	}
	return &Matcher{Types: types}
}

// Matches matches p against v and returns the bindings on success
func (m *Matcher) Matches(p Pattern, v Value) (Bindings, bool) {
	o := m.Evaluate(p, v)
	return o.Bindings, o.Matched
}

// Evaluate matches p against v. Bindings are only returned on success.
func (m *Matcher) Evaluate(p Pattern, v Value) Outcome {
	return m.evaluate(p, v, nil)
}

// evaluate matches p against v in the environment env; env bindings are
// visible to guards but are not part of the result.
func (m *Matcher) evaluate(p Pattern, v Value, env Bindings) Outcome {
	st := &matchState{m: m, env: append(Bindings(nil), env...)}
	ok := st.match(p, v, "", false)
	if !ok {
		return Outcome{Err: st.err}
	}
	return Outcome{Matched: true, Bindings: st.env[len(env):]}
}

type matchState struct {
	m   *Matcher
	env Bindings
	err error
}

// match dispatches on the pattern variant. declared is the static type of a
// record component when nested is true; it decides whether null matches.
func (st *matchState) match(p Pattern, v Value, declared string, nested bool) bool {
	mark := len(st.env)
	ok := st.dispatch(p, v, declared, nested)
	if !ok {
		st.env = st.env[:mark]
	}
	return ok
}

func (st *matchState) dispatch(p Pattern, v Value, declared string, nested bool) bool {
	types := st.m.Types
	switch p := p.(type) {
	case TypeTest:
		if p.Type == "var" && nested {
			// var takes the component's declared type
			st.bind(p.Name, v)
			return true
		}
		if v == nil {
			// null only matches a nested type test that is total on the
			// component's declared type
			if !nested || declared == "" || !types.IsAssignable(declared, p.Type) {
				return false
			}
		} else if !types.IsAssignable(v.RuntimeType(), p.Type) {
			return false
		}
		st.bind(p.Name, v)
		return true

	case Record:
		if v == nil || !types.IsAssignable(v.RuntimeType(), p.Type) {
			return false
		}
		comps, ok := types.Components(v.RuntimeType())
		if !ok {
			comps, ok = types.Components(p.Type)
		}
		if !ok {
			st.err = &TypeMismatchError{Type: p.Type, Declared: -1, Pattern: len(p.Components)}
			return false
		}
		if len(comps) != len(p.Components) {
			st.err = &TypeMismatchError{Type: v.RuntimeType(), Declared: len(comps), Pattern: len(p.Components)}
			return false
		}
		for i, sub := range p.Components {
			cv, ok := v.Component(i)
			if !ok {
				st.err = &TypeMismatchError{Type: v.RuntimeType(), Declared: len(comps), Pattern: len(p.Components)}
				return false
			}
			if !st.match(sub, cv, comps[i].Type, true) {
				return false
			}
		}
		st.bind(p.Name, v)
		return true

	case Parenthesized:
		return st.match(p.Inner, v, declared, nested)

	case Guarded:
		if !st.match(p.Inner, v, declared, nested) {
			return false
		}
		if p.Guard == nil {
			return true
		}
		ok, err := p.Guard.Eval(st.env)
		if err != nil {
			st.err = &GuardError{Guard: p.String(), Err: err}
			return false
		}
		return ok

	case Unnamed, Default:
		return true
	}
	return false
}

func (st *matchState) bind(name string, v Value) {
	if binds(name) {
		st.env = append(st.env, Binding{Name: name, Value: v})
	}
}
