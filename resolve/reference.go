package resolve

import (
	"fmt"
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

// RefKind says what sort of name a reference expects
type RefKind uint8

const (
	RefExpression RefKind = iota
	RefType
	RefMethod
	RefPackage
	RefModule
)

func (k RefKind) String() string {
	switch k {
	case RefExpression:
		return "expression"
	case RefType:
		return "type"
	case RefMethod:
		return "method"
	case RefPackage:
		return "package"
	case RefModule:
		return "module"
	}
	return fmt.Sprintf("refkind(%d)", uint8(k))
}

// accepts reports whether a declaration of kind d can satisfy the reference
func (k RefKind) accepts(d core.DeclKind) bool {
	switch k {
	case RefExpression:
		return d.IsVariable()
	case RefType:
		return d.IsType()
	case RefMethod:
		return d == core.DeclMethod
	case RefPackage:
		return d == core.DeclPackage
	case RefModule:
		return d == core.DeclModule
	}
	return false
}

// Reference is a use of a name at an anchor node
type Reference struct {
	Anchor tree.NodeID
	Name   string
	Kind   RefKind
}

func (r Reference) String() string {
	return fmt.Sprintf("%s %q@%d", r.Kind, r.Name, r.Anchor)
}

// ReferenceAt creates the reference held by node id, if it holds one.
// Identifiers are expression names, type nodes are type names, and the name
// of a method call is a method name. Names under imports, package clauses
// and module directives refer to types, packages or modules.
func ReferenceAt(snap *tree.Snapshot, id tree.NodeID) (Reference, bool) {
	if !snap.Contains(id) {
		return Reference{}, false
	}
	tok := snap.Token(id)
	ref := Reference{Anchor: id, Name: tok}

	switch snap.Kind(id) {
	case core.KindIdentifier:
		ref.Kind = RefExpression
		return ref, tok != ""
	case core.KindTypeRef:
		name := typesys.Erase(tok)
		for strings.HasSuffix(name, "[]") {
			name = strings.TrimSuffix(name, "[]")
		}
		if name == "" || name == "var" || typesys.IsPrimitive(name) {
			return Reference{}, false
		}
		ref.Name, ref.Kind = name, RefType
		return ref, true
	case core.KindName:
	default:
		return Reference{}, false
	}

	parent, ok := snap.Parent(id)
	if !ok {
		return Reference{}, false
	}
	switch snap.Kind(parent) {
	case core.KindMethodCall:
		ref.Kind = RefMethod
	case core.KindFieldAccess:
		ref.Kind = RefExpression
	case core.KindImport:
		if strings.HasSuffix(tok, ".*") {
			ref.Name, ref.Kind = strings.TrimSuffix(tok, ".*"), RefPackage
			if hasModifier(snap, parent, "static") {
				ref.Kind = RefType
			}
		} else if hasModifier(snap, parent, "module") {
			ref.Kind = RefModule
		} else {
			ref.Kind = RefType
		}
	case core.KindPackage, core.KindExportsDirective, core.KindOpensDirective:
		ref.Kind = RefPackage
	case core.KindRequiresDirective:
		ref.Kind = RefModule
	default:
		return Reference{}, false
	}
	return ref, tok != ""
}

// qualifier returns the qualifying expression of a member name, such as the
// receiver of a method call.
func qualifier(snap *tree.Snapshot, id tree.NodeID) (tree.NodeID, bool) {
	if snap.Kind(id) != core.KindName {
		return 0, false
	}
	parent, ok := snap.Parent(id)
	if !ok {
		return 0, false
	}
	if k := snap.Kind(parent); k != core.KindMethodCall && k != core.KindFieldAccess {
		return 0, false
	}
	return snap.Child(parent, core.RoleQualifier)
}

func hasModifier(snap *tree.Snapshot, id tree.NodeID, mod string) bool {
	mods, ok := snap.Child(id, core.RoleModifiers)
	if !ok {
		return false
	}
	for _, m := range snap.Children(mods) {
		if snap.Token(m) == mod {
			return true
		}
	}
	return false
}
