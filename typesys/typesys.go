// Package typesys answers the type questions pattern matching and resolution
// ask: assignability, record components and sealed hierarchies.
package typesys

import (
	"slices"
	"strings"
	"sync"

	"github.com/oxhq/psitree/core"
)

// Object is the top of the reference type hierarchy
const Object = "java.lang.Object"

// Null is the type of the null literal
const Null = "null"

// System is the type system consulted by the pattern engine and resolver
type System interface {
	// IsAssignable reports whether a value of type from may be assigned to a
	// variable of type to.
	IsAssignable(from, to string) bool
	// Components returns the record components of a record type in
	// declaration order.
	Components(record string) ([]core.Component, bool)
	// Permits returns the permitted direct subtypes of a sealed type
	Permits(sealed string) ([]string, bool)
	// Constants returns the constants of an enum type in declaration order
	Constants(enum string) ([]string, bool)
	IsFinal(name string) bool
	IsAbstract(name string) bool
}

// TypeInfo is what the hierarchy knows about one class-like type
type TypeInfo struct {
	Name       string
	Kind       core.DeclKind
	Superclass string
	Interfaces []string
	Components []core.Component
	Permits    []string
	Final      bool
	Abstract   bool
}

// Hierarchy is an in-memory System built from declarations
type Hierarchy struct {
	mu        sync.RWMutex
	types     map[string]*TypeInfo
	simple    map[string][]string
	constants map[string][]string
}

// NewHierarchy returns a hierarchy preloaded with the java.lang types the
// language itself depends on.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		types:     make(map[string]*TypeInfo),
		simple:    make(map[string][]string),
		constants: make(map[string][]string),
	}
	for _, t := range builtins() {
		h.add(t)
	}
	return h
}

func builtins() []*TypeInfo {
	cls := func(name, super string, final bool, ifaces ...string) *TypeInfo {
		return &TypeInfo{Name: name, Kind: core.DeclClass, Superclass: super, Interfaces: ifaces, Final: final}
	}
	iface := func(name string, supers ...string) *TypeInfo {
		return &TypeInfo{Name: name, Kind: core.DeclInterface, Interfaces: supers, Abstract: true}
	}
	number := cls("java.lang.Number", Object, false, "java.io.Serializable")
	number.Abstract = true
	record := cls("java.lang.Record", Object, false)
	record.Abstract = true
	enum := cls("java.lang.Enum", Object, false, "java.lang.Comparable", "java.io.Serializable")
	enum.Abstract = true

	out := []*TypeInfo{
		{Name: Object, Kind: core.DeclClass},
		iface("java.io.Serializable"),
		iface("java.lang.Cloneable"),
		iface("java.lang.Comparable"),
		iface("java.lang.CharSequence"),
		iface("java.lang.Runnable"),
		iface("java.lang.Iterable"),
		iface("java.lang.AutoCloseable"),
		cls("java.lang.String", Object, true, "java.io.Serializable", "java.lang.Comparable", "java.lang.CharSequence"),
		number, record, enum,
		cls("java.lang.Throwable", Object, false, "java.io.Serializable"),
		cls("java.lang.Exception", "java.lang.Throwable", false),
		cls("java.lang.RuntimeException", "java.lang.Exception", false),
		cls("java.lang.Error", "java.lang.Throwable", false),
		cls("java.lang.Boolean", Object, true, "java.io.Serializable", "java.lang.Comparable"),
		cls("java.lang.Character", Object, true, "java.io.Serializable", "java.lang.Comparable"),
	}
	for _, p := range []string{"byte", "short", "int", "long", "float", "double"} {
		out = append(out, cls(boxes[p], "java.lang.Number", true, "java.lang.Comparable"))
	}
	return out
}

// Add registers a class-like declaration or an enum constant. Other
// declarations are ignored.
func (h *Hierarchy) Add(d core.Declaration) {
	if d.Kind == core.DeclEnumConstant {
		h.addConstant(d)
		return
	}
	if !d.Kind.IsType() || d.Kind == core.DeclTypeParameter {
		return
	}
	name := d.QualifiedName
	if name == "" {
		name = d.Name
	}
	t := &TypeInfo{
		Name:       name,
		Kind:       d.Kind,
		Superclass: d.Superclass,
		Interfaces: d.Interfaces,
		Components: d.Components,
		Permits:    d.Permits,
		Final:      d.HasModifier("final"),
		Abstract:   d.HasModifier("abstract"),
	}
	switch d.Kind {
	case core.DeclRecord:
		t.Superclass = "java.lang.Record"
		t.Final = true
	case core.DeclEnum:
		t.Superclass = "java.lang.Enum"
		t.Final = !d.HasModifier("sealed")
	case core.DeclInterface, core.DeclAnnotation:
		t.Abstract = true
	}
	if t.Superclass == "" && d.Kind == core.DeclClass {
		t.Superclass = Object
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.add(t)
}

func (h *Hierarchy) add(t *TypeInfo) {
	h.types[t.Name] = t
	simple := simpleName(t.Name)
	if !slices.Contains(h.simple[simple], t.Name) {
		h.simple[simple] = append(h.simple[simple], t.Name)
	}
}

// addConstant records an enum constant under its owner. The owner may be
// added before or after its constants.
func (h *Hierarchy) addConstant(d core.Declaration) {
	owner := d.Owner
	if owner == "" {
		owner = d.TypeName
	}
	if owner == "" || d.Name == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !slices.Contains(h.constants[owner], d.Name) {
		h.constants[owner] = append(h.constants[owner], d.Name)
	}
}

// Lookup returns the type registered under a qualified or unambiguous
// simple name.
func (h *Hierarchy) Lookup(name string) (*TypeInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lookup(Erase(name))
}

func (h *Hierarchy) lookup(name string) (*TypeInfo, bool) {
	if t, ok := h.types[name]; ok {
		return t, true
	}
	if strings.Contains(name, ".") {
		// Outer.Inner written through its simple outer name
		if q := h.simple[name[:strings.IndexByte(name, '.')]]; len(q) == 1 {
			t, ok := h.types[q[0]+name[strings.IndexByte(name, '.'):]]
			return t, ok
		}
		return nil, false
	}
	if q := h.simple[name]; len(q) == 1 {
		return h.types[q[0]], true
	}
	if t, ok := h.types["java.lang."+name]; ok {
		return t, true
	}
	return nil, false
}

// Qualify returns the qualified name of a type, or name itself when unknown
func (h *Hierarchy) Qualify(name string) string {
	name = Erase(name)
	if IsPrimitive(name) || IsArray(name) || name == Null {
		return name
	}
	if t, ok := h.Lookup(name); ok {
		return t.Name
	}
	return name
}

// IsAssignable implements System
func (h *Hierarchy) IsAssignable(from, to string) bool {
	from, to = h.Qualify(from), h.Qualify(to)
	if from == to {
		return true
	}

	if from == Null {
		return !IsPrimitive(to)
	}

	fromPrim, toPrim := IsPrimitive(from), IsPrimitive(to)
	switch {
	case fromPrim && toPrim:
		return widens(from, to)
	case fromPrim:
		boxed, _ := Box(from)
		return h.IsAssignable(boxed, to)
	case toPrim:
		prim, ok := Unbox(from)
		return ok && widens(prim, to)
	}

	if to == Object {
		return true
	}
	if IsArray(from) {
		if !IsArray(to) {
			return to == "java.lang.Cloneable" || to == "java.io.Serializable"
		}
		fe, te := ElementType(from), ElementType(to)
		if IsPrimitive(fe) || IsPrimitive(te) {
			return fe == te
		}
		return h.IsAssignable(fe, te)
	}
	if IsArray(to) {
		return false
	}
	return h.isSubtype(from, to)
}

func (h *Hierarchy) isSubtype(from, to string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		t, ok := h.lookup(name)
		if !ok {
			continue
		}
		if t.Name == to {
			return true
		}
		if t.Superclass != "" {
			queue = append(queue, Erase(t.Superclass))
		}
		for _, i := range t.Interfaces {
			queue = append(queue, Erase(i))
		}
	}
	return false
}

// Components implements System
func (h *Hierarchy) Components(record string) ([]core.Component, bool) {
	t, ok := h.Lookup(record)
	if !ok || t.Kind != core.DeclRecord {
		return nil, false
	}
	return t.Components, true
}

// Permits implements System
func (h *Hierarchy) Permits(sealed string) ([]string, bool) {
	t, ok := h.Lookup(sealed)
	if !ok || len(t.Permits) == 0 {
		return nil, false
	}
	out := make([]string, len(t.Permits))
	for i, p := range t.Permits {
		out[i] = h.Qualify(p)
	}
	return out, true
}

// Constants implements System
func (h *Hierarchy) Constants(enum string) ([]string, bool) {
	t, ok := h.Lookup(enum)
	if !ok || t.Kind != core.DeclEnum {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.constants[t.Name]), true
}

// IsFinal implements System. Primitives and arrays have no subtypes.
func (h *Hierarchy) IsFinal(name string) bool {
	if IsPrimitive(name) || IsArray(name) {
		return true
	}
	t, ok := h.Lookup(name)
	return ok && t.Final
}

// IsAbstract implements System
func (h *Hierarchy) IsAbstract(name string) bool {
	t, ok := h.Lookup(name)
	return ok && t.Abstract
}

// Erase strips type arguments: "java.util.List<String>" becomes "java.util.List"
func Erase(name string) string {
	name = strings.TrimSpace(name)
	for {
		open := strings.IndexByte(name, '<')
		if open < 0 {
			return name
		}
		depth, end := 0, -1
		for i := open; i < len(name); i++ {
			switch name[i] {
			case '<':
				depth++
			case '>':
				depth--
			}
			if depth == 0 {
				end = i
				break
			}
		}
		if end < 0 {
			return name[:open]
		}
		name = name[:open] + name[end+1:]
	}
}

// IsArray reports whether name denotes an array type
func IsArray(name string) bool {
	return strings.HasSuffix(name, "[]")
}

// ElementType returns the component type of an array type
func ElementType(name string) string {
	return strings.TrimSuffix(name, "[]")
}

func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
