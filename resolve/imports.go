package resolve

import (
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

// ImportBinding is one entry of a file's import table. Bindings are built
// only through the constructors below and never change afterwards.
type ImportBinding struct {
	qualified string
	member    string
	static    bool
	module    bool
	implicit  bool
	node      tree.NodeID
}

// SingleType binds the simple name of a qualified type: import a.b.C;
func SingleType(qualified string) ImportBinding {
	return ImportBinding{qualified: qualified, member: lastSegment(qualified)}
}

// OnDemand imports every type of a package or every member type of a type:
// import a.b.*;
func OnDemand(container string) ImportBinding {
	return ImportBinding{qualified: container, member: "*"}
}

// SingleStatic binds a static member of a type: import static a.b.C.m;
func SingleStatic(typeName, member string) ImportBinding {
	return ImportBinding{qualified: typeName, member: member, static: true}
}

// StaticOnDemand imports every static member of a type: import static a.b.C.*;
func StaticOnDemand(typeName string) ImportBinding {
	return ImportBinding{qualified: typeName, member: "*", static: true}
}

// ModuleImport imports every type of every package a module exports:
// import module m;
func ModuleImport(module string) ImportBinding {
	return ImportBinding{qualified: module, member: "*", module: true}
}

// ImplicitJavaLang is the on-demand import every file carries
func ImplicitJavaLang() ImportBinding {
	b := OnDemand("java.lang")
	b.implicit = true
	return b
}

// ImplicitStatic is a static member imported without an import declaration
func ImplicitStatic(typeName, member string) ImportBinding {
	b := SingleStatic(typeName, member)
	b.implicit = true
	return b
}

// QualifiedName is the imported type, package or module
func (b ImportBinding) QualifiedName() string { return b.qualified }

// MemberName is the imported simple name, or "*" for on-demand imports
func (b ImportBinding) MemberName() string { return b.member }

func (b ImportBinding) IsStatic() bool   { return b.static }
func (b ImportBinding) IsModule() bool   { return b.module }
func (b ImportBinding) IsImplicit() bool { return b.implicit }
func (b ImportBinding) IsOnDemand() bool { return b.member == "*" }

// Node is the import declaration node, zero for implicit imports
func (b ImportBinding) Node() tree.NodeID { return b.node }

func (b ImportBinding) String() string {
	var sb strings.Builder
	sb.WriteString("import ")
	switch {
	case b.module:
		sb.WriteString("module ")
	case b.static:
		sb.WriteString("static ")
	}
	sb.WriteString(b.qualified)
	if !b.module && (b.member == "*" || b.static) {
		sb.WriteString("." + b.member)
	}
	sb.WriteString(";")
	return sb.String()
}

// ImportsOf builds the import table of the file in snap: its import
// declarations in source order followed by the implicit java.lang import.
func ImportsOf(snap *tree.Snapshot) []ImportBinding {
	var out []ImportBinding
	root := snap.Root()
	if root == 0 {
		return []ImportBinding{ImplicitJavaLang()}
	}
	var decls []tree.NodeID
	for _, c := range snap.Children(root) {
		switch snap.Kind(c) {
		case core.KindImport:
			decls = append(decls, c)
		case core.KindImportList:
			decls = append(decls, snap.ChildrenWithRole(c, core.RoleImport)...)
		}
	}
	for _, id := range decls {
		if b, ok := importOf(snap, id); ok {
			out = append(out, b)
		}
	}
	return append(out, ImplicitJavaLang())
}

func importOf(snap *tree.Snapshot, id tree.NodeID) (ImportBinding, bool) {
	name, ok := snap.NameOf(id)
	if !ok || name == "" {
		return ImportBinding{}, false
	}
	var b ImportBinding
	onDemand := strings.HasSuffix(name, ".*")
	name = strings.TrimSuffix(name, ".*")
	switch {
	case hasModifier(snap, id, "module"):
		b = ModuleImport(name)
	case hasModifier(snap, id, "static") && onDemand:
		b = StaticOnDemand(name)
	case hasModifier(snap, id, "static"):
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return ImportBinding{}, false
		}
		b = SingleStatic(name[:i], name[i+1:])
	case onDemand:
		b = OnDemand(name)
	default:
		b = SingleType(name)
	}
	b.node = id
	return b, true
}

func lastSegment(name string) string {
	return name[strings.LastIndexByte(name, '.')+1:]
}
