// Package pattern evaluates instanceof and switch patterns against values:
// type tests, record deconstruction, guards and the remaining case label
// elements (constants, null, default).
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// Label is a case label element. Every Pattern is a Label; Constant and
// NullLabel are labels that are not patterns.
type Label interface {
	label()
	String() string
}

// Pattern is the closed set of pattern variants
type Pattern interface {
	Label
	pattern()
}

// TypeTest matches values whose runtime type is assignable to Type and binds
// Name. An empty or "_" name binds nothing.
type TypeTest struct {
	Type string
	Name string
}

// Record deconstructs a record value into its components, matching each
// against the corresponding nested pattern left to right.
type Record struct {
	Type       string
	Components []Pattern
	Name       string
}

// Parenthesized is transparent: it matches exactly what Inner matches
type Parenthesized struct {
	Inner Pattern
}

// Guarded matches when Inner matches and Guard holds with Inner's bindings
type Guarded struct {
	Inner Pattern
	Guard Guard
}

// Unnamed matches anything in a nested position and binds nothing
type Unnamed struct{}

// Default matches anything and binds nothing. In a switch it is chosen only
// when no other label matches.
type Default struct{}

// Constant is a case constant: a literal or an enum constant
type Constant struct {
	Value any
	Type  string
}

// NullLabel is the `case null` label
type NullLabel struct{}

func (TypeTest) label()      {}
func (Record) label()        {}
func (Parenthesized) label() {}
func (Guarded) label()       {}
func (Unnamed) label()       {}
func (Default) label()       {}
func (Constant) label()      {}
func (NullLabel) label()     {}

func (TypeTest) pattern()      {}
func (Record) pattern()        {}
func (Parenthesized) pattern() {}
func (Guarded) pattern()       {}
func (Unnamed) pattern()       {}
func (Default) pattern()       {}

func (p TypeTest) String() string {
	if p.Name == "" {
		return p.Type
	}
	return p.Type + " " + p.Name
}

func (p Record) String() string {
	parts := make([]string, len(p.Components))
	for i, c := range p.Components {
		parts[i] = c.String()
	}
	s := p.Type + "(" + strings.Join(parts, ", ") + ")"
	if p.Name != "" {
		s += " " + p.Name
	}
	return s
}

func (p Parenthesized) String() string { return "(" + p.Inner.String() + ")" }

func (p Guarded) String() string {
	g := "<guard>"
	if s, ok := p.Guard.(fmt.Stringer); ok {
		g = s.String()
	}
	return p.Inner.String() + " when " + g
}

func (Unnamed) String() string   { return "_" }
func (Default) String() string   { return "default" }
func (NullLabel) String() string { return "null" }

func (c Constant) String() string {
	switch v := c.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case nil:
		return "null"
	}
	return fmt.Sprint(c.Value)
}

// binds reports whether a pattern variable name introduces a binding
func binds(name string) bool {
	return name != "" && name != "_"
}

// IsPrimary reports whether p may appear as the inner pattern of a guard
func IsPrimary(p Pattern) bool {
	switch p := p.(type) {
	case TypeTest, Record:
		return true
	case Parenthesized:
		return p.Inner != nil && IsPrimary(p.Inner)
	}
	return false
}

// Unwrap strips parentheses around p
func Unwrap(p Pattern) Pattern {
	for {
		pp, ok := p.(Parenthesized)
		if !ok {
			return p
		}
		p = pp.Inner
	}
}

// ErrInvalidPattern is returned by Validate for structurally invalid patterns
var ErrInvalidPattern = errors.New("invalid pattern")

// Validate checks the structural rules of a top-level pattern: a guarded
// pattern wraps a primary pattern, unnamed patterns only appear nested,
// binding names are unique, and record and type patterns name a type.
// Record arity is checked at match time against the type system.
func Validate(p Pattern) error {
	if _, ok := Unwrap(p).(Unnamed); ok {
		return fmt.Errorf("%w: unnamed pattern at top level", ErrInvalidPattern)
	}
	seen := map[string]bool{}
	return validate(p, seen, true)
}

func validate(p Pattern, seen map[string]bool, top bool) error {
	bind := func(name string) error {
		if !binds(name) {
			return nil
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate binding %q", ErrInvalidPattern, name)
		}
		seen[name] = true
		return nil
	}

	switch p := p.(type) {
	case nil:
		return fmt.Errorf("%w: missing pattern", ErrInvalidPattern)
	case TypeTest:
		if p.Type == "" {
			return fmt.Errorf("%w: type pattern without a type", ErrInvalidPattern)
		}
		return bind(p.Name)
	case Record:
		if p.Type == "" {
			return fmt.Errorf("%w: record pattern without a type", ErrInvalidPattern)
		}
		for _, c := range p.Components {
			if err := validate(c, seen, false); err != nil {
				return err
			}
		}
		return bind(p.Name)
	case Parenthesized:
		return validate(p.Inner, seen, top)
	case Guarded:
		if !top {
			return fmt.Errorf("%w: guarded pattern %s in nested position", ErrInvalidPattern, p)
		}
		if p.Inner == nil || !IsPrimary(p.Inner) {
			return fmt.Errorf("%w: guard must wrap a type or record pattern", ErrInvalidPattern)
		}
		if p.Guard == nil {
			return fmt.Errorf("%w: guarded pattern without a guard", ErrInvalidPattern)
		}
		return validate(p.Inner, seen, false)
	case Default:
		if !top {
			return fmt.Errorf("%w: default in nested position", ErrInvalidPattern)
		}
	case Unnamed:
	}
	return nil
}
