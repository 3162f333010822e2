package pattern

import "fmt"

// Value is a runtime value seen by the matcher. A nil Value is null.
type Value interface {
	// RuntimeType returns the qualified or simple name of the value's class
	RuntimeType() string
	// Component returns the i-th record component; a nil Value with true is
	// a null component.
	Component(i int) (Value, bool)
	// Scalar returns the primitive payload (int64, float64, bool, string,
	// EnumConstant) or nil for objects without one.
	Scalar() any
}

// EnumConstant is the payload of an enum value and of enum case constants
type EnumConstant string

// Object is the concrete Value used by the CLI and tests
type Object struct {
	Type       string
	Components []Value
	Data       any
}

// RuntimeType implements Value
func (o *Object) RuntimeType() string { return o.Type }

// Component implements Value
func (o *Object) Component(i int) (Value, bool) {
	if i < 0 || i >= len(o.Components) {
		return nil, false
	}
	return o.Components[i], true
}

// Scalar implements Value
func (o *Object) Scalar() any { return o.Data }

func (o *Object) String() string {
	if o.Data != nil {
		return fmt.Sprint(o.Data)
	}
	return o.Type + fmt.Sprint(o.Components)
}

// Int returns a boxed java.lang.Integer
func Int(v int64) *Object { return &Object{Type: "java.lang.Integer", Data: v} }

// Long returns a boxed java.lang.Long
func Long(v int64) *Object { return &Object{Type: "java.lang.Long", Data: v} }

// Double returns a boxed java.lang.Double
func Double(v float64) *Object { return &Object{Type: "java.lang.Double", Data: v} }

// Bool returns a boxed java.lang.Boolean
func Bool(v bool) *Object { return &Object{Type: "java.lang.Boolean", Data: v} }

// Str returns a java.lang.String
func Str(v string) *Object { return &Object{Type: "java.lang.String", Data: v} }

// Prim returns a primitive value of the given primitive type
func Prim(typ string, v any) *Object { return &Object{Type: typ, Data: v} }

// Rec returns a record value with the given components
func Rec(typ string, components ...Value) *Object {
	return &Object{Type: typ, Components: components}
}

// Enum returns an enum constant of type typ
func Enum(typ, name string) *Object { return &Object{Type: typ, Data: EnumConstant(name)} }

// Binding is one pattern variable bound to a value
type Binding struct {
	Name  string
	Value Value
}

// Bindings are pattern variables in binding order
type Bindings []Binding

// Lookup returns the value bound to name, the innermost binding winning
func (b Bindings) Lookup(name string) (Value, bool) {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i].Name == name {
			return b[i].Value, true
		}
	}
	return nil, false
}

// Names returns the bound names in binding order
func (b Bindings) Names() []string {
	names := make([]string, len(b))
	for i, x := range b {
		names[i] = x.Name
	}
	return names
}
