// Package symbols turns declaration nodes of a syntax tree into
// core.Declarations, for the resolver and for the symbol index.
package symbols

import (
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

// FileSymbols is everything a file contributes to the symbol index
type FileSymbols struct {
	File         string
	Package      string
	Module       string
	Exports      []string
	Declarations []core.Declaration
}

// PackageOf returns the package declared by the file containing the tree
func PackageOf(snap *tree.Snapshot) string {
	pkg, ok := snap.Child(snap.Root(), core.RolePackage)
	if !ok {
		return ""
	}
	name, _ := snap.NameOf(pkg)
	return name
}

// Modifiers returns the modifier keywords of a declaration
func Modifiers(snap *tree.Snapshot, id tree.NodeID) []string {
	mods, ok := snap.Child(id, core.RoleModifiers)
	if !ok {
		return nil
	}
	var out []string
	for _, m := range snap.Children(mods) {
		if snap.Kind(m) == core.KindKeyword {
			out = append(out, snap.Token(m))
		}
	}
	return out
}

// TypeOf returns the declared type text of a declaration
func TypeOf(snap *tree.Snapshot, id tree.NodeID) string {
	t, ok := snap.Child(id, core.RoleType)
	if !ok {
		return ""
	}
	return snap.Token(t)
}

// QualifiedTypeName returns package.Outer.Inner for a type declaration
func QualifiedTypeName(snap *tree.Snapshot, id tree.NodeID, pkg string) string {
	name, _ := snap.NameOf(id)
	parts := []string{name}
	for cur := id; ; {
		outer, ok := snap.ContainingClass(cur)
		if !ok {
			break
		}
		n, _ := snap.NameOf(outer)
		parts = append(parts, n)
		cur = outer
	}
	if pkg != "" {
		parts = append(parts, pkg)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

func declKind(k core.Kind) (core.DeclKind, bool) {
	switch k {
	case core.KindClass, core.KindLocalClass:
		return core.DeclClass, true
	case core.KindInterface:
		return core.DeclInterface, true
	case core.KindEnum:
		return core.DeclEnum, true
	case core.KindRecord:
		return core.DeclRecord, true
	case core.KindAnnotationType:
		return core.DeclAnnotation, true
	case core.KindMethod:
		return core.DeclMethod, true
	case core.KindConstructor:
		return core.DeclConstructor, true
	case core.KindEnumConstant:
		return core.DeclEnumConstant, true
	case core.KindRecordComponent:
		return core.DeclRecordComponent, true
	case core.KindParameter:
		return core.DeclParameter, true
	case core.KindTypeParameter:
		return core.DeclTypeParameter, true
	case core.KindTypeTestPattern, core.KindRecordPattern:
		return core.DeclPatternVariable, true
	case core.KindModule:
		return core.DeclModule, true
	}
	return "", false
}

// Of builds the declaration for a declaring node. Variables are declared by
// their VariableDeclarator; fields and locals are told apart by the
// declarator's parent. pkg is the package of the file.
func Of(snap *tree.Snapshot, id tree.NodeID, pkg string) (core.Declaration, bool) {
	name, ok := snap.NameOf(id)
	if !ok || name == "" || name == "_" {
		return core.Declaration{}, false
	}
	d := core.Declaration{
		Name:    name,
		Package: pkg,
		Span:    snap.Span(id),
		NodeID:  uint64(id),
	}

	kind := snap.Kind(id)
	if kind == core.KindVariableDeclarator {
		parent, _ := snap.Parent(id)
		d.TypeName = TypeOf(snap, parent)
		d.Modifiers = Modifiers(snap, parent)
		if snap.Kind(parent) == core.KindField {
			d.Kind = core.DeclField
		} else {
			d.Kind = core.DeclLocalVariable
		}
	} else {
		dk, ok := declKind(kind)
		if !ok {
			return core.Declaration{}, false
		}
		d.Kind = dk
		d.Modifiers = Modifiers(snap, id)
		d.TypeName = TypeOf(snap, id)
	}

	switch d.Kind {
	case core.DeclClass, core.DeclInterface, core.DeclEnum, core.DeclRecord, core.DeclAnnotation:
		d.QualifiedName = QualifiedTypeName(snap, id, pkg)
		if outer, ok := snap.ContainingClass(id); ok {
			d.Owner = QualifiedTypeName(snap, outer, pkg)
		}
		fillType(snap, id, &d)
	case core.DeclField, core.DeclMethod, core.DeclConstructor, core.DeclEnumConstant, core.DeclRecordComponent:
		if owner, ok := snap.ContainingClass(id); ok {
			d.Owner = QualifiedTypeName(snap, owner, pkg)
			d.QualifiedName = d.Owner + "." + name
			if snap.Kind(owner) == core.KindInterface && d.Kind == core.DeclField {
				d.Static = true
			}
		}
		if d.Kind == core.DeclEnumConstant {
			d.Static = true
			d.TypeName = d.Owner
		}
	case core.DeclModule:
		d.QualifiedName = name
		d.Package = ""
	default:
		d.QualifiedName = name
	}
	if d.HasModifier("static") {
		d.Static = true
	}
	return d, true
}

func fillType(snap *tree.Snapshot, id tree.NodeID, d *core.Declaration) {
	typeRefs := func(role core.Role) []string {
		var out []string
		for _, holder := range snap.ChildrenWithRole(id, role) {
			for _, t := range snap.Children(holder) {
				if snap.Kind(t) == core.KindTypeRef {
					out = append(out, typesys.Erase(snap.Token(t)))
				}
			}
		}
		return out
	}
	if supers := typeRefs(core.RoleSuperclass); len(supers) > 0 {
		d.Superclass = supers[0]
	}
	d.Interfaces = typeRefs(core.RoleInterfaces)
	d.Permits = typeRefs(core.RolePermits)
	for _, c := range snap.ChildrenWithRole(id, core.RoleComponent) {
		name, _ := snap.NameOf(c)
		d.Components = append(d.Components, core.Component{Name: name, Type: TypeOf(snap, c)})
	}
	if d.Kind == core.DeclInterface || d.Kind == core.DeclAnnotation {
		// interfaces list their supertypes under extends
		d.Interfaces = append(d.Interfaces, typeRefs(core.RoleSuperclass)...)
		d.Superclass = ""
	}
}

// Declarators returns the variable declarators of a field or local variable
func Declarators(snap *tree.Snapshot, id tree.NodeID) []tree.NodeID {
	return snap.ChildrenWithRole(id, core.RoleDeclarator)
}

// Members returns the declarations of a type's body and record header in
// source order: record components, fields, methods, constructors, enum
// constants and nested types.
func Members(snap *tree.Snapshot, typeDecl tree.NodeID, pkg string) []core.Declaration {
	var out []core.Declaration
	add := func(id tree.NodeID) {
		if d, ok := Of(snap, id, pkg); ok {
			out = append(out, d)
		}
	}
	for _, c := range snap.ChildrenWithRole(typeDecl, core.RoleComponent) {
		add(c)
	}
	body, ok := snap.Child(typeDecl, core.RoleBody)
	if !ok {
		return out
	}
	for _, m := range snap.Children(body) {
		switch k := snap.Kind(m); {
		case k == core.KindField:
			for _, d := range Declarators(snap, m) {
				add(d)
			}
		case k == core.KindMethod, k == core.KindConstructor, k == core.KindEnumConstant, k.IsTypeDeclaration():
			add(m)
		}
	}
	return out
}

// TopLevelTypes returns the type declarations directly under the file
func TopLevelTypes(snap *tree.Snapshot) []tree.NodeID {
	var out []tree.NodeID
	for _, c := range snap.Children(snap.Root()) {
		if snap.Kind(c).IsTypeDeclaration() {
			out = append(out, c)
		}
	}
	return out
}

// Extract collects the package, module and every type and member declaration
// of a file. Local declarations inside bodies are left out.
func Extract(snap *tree.Snapshot, file string) FileSymbols {
	fs := FileSymbols{File: file, Package: PackageOf(snap)}
	if snap.Root() == 0 {
		return fs
	}

	var visitType func(id tree.NodeID)
	visitType = func(id tree.NodeID) {
		d, ok := Of(snap, id, fs.Package)
		if !ok {
			return
		}
		d.File = file
		fs.Declarations = append(fs.Declarations, d)
		for _, m := range Members(snap, id, fs.Package) {
			m.File = file
			if m.Kind.IsType() {
				visitType(tree.NodeID(m.NodeID))
				continue
			}
			fs.Declarations = append(fs.Declarations, m)
		}
	}
	for _, t := range TopLevelTypes(snap) {
		visitType(t)
	}

	if mod, ok := snap.ChildOfKind(snap.Root(), core.KindModule); ok {
		if d, ok := Of(snap, mod, ""); ok {
			d.File = file
			fs.Module = d.Name
			fs.Declarations = append(fs.Declarations, d)
		}
		if body, ok := snap.Child(mod, core.RoleBody); ok {
			for _, dir := range snap.Children(body) {
				if snap.Kind(dir) != core.KindExportsDirective {
					continue
				}
				if name, ok := snap.NameOf(dir); ok {
					fs.Exports = append(fs.Exports, name)
				}
			}
		}
	}
	return fs
}
