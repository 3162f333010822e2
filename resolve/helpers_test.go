package resolve

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

func name(n string) tree.Blueprint    { return tree.Leaf(core.KindName, n).As(core.RoleName) }
func typeRef(t string) tree.Blueprint { return tree.Leaf(core.KindTypeRef, t).As(core.RoleType) }
func ident(n string) tree.Blueprint   { return tree.Leaf(core.KindIdentifier, n) }

func stmt(e tree.Blueprint) tree.Blueprint {
	return tree.Branch(core.KindExpressionStatement, e.As(core.RoleValue)).As(core.RoleStatement)
}

func block(stmts ...tree.Blueprint) tree.Blueprint {
	return tree.Branch(core.KindBlock, stmts...)
}

func local(typ, n string, value ...tree.Blueprint) tree.Blueprint {
	decl := []tree.Blueprint{name(n)}
	for _, v := range value {
		decl = append(decl, v.As(core.RoleValue))
	}
	return tree.Branch(core.KindLocalVariable,
		typeRef(typ),
		tree.Branch(core.KindVariableDeclarator, decl...).As(core.RoleDeclarator),
	).As(core.RoleStatement)
}

func field(typ, n string, mods ...string) tree.Blueprint {
	children := []tree.Blueprint{}
	if len(mods) > 0 {
		children = append(children, modifiers(mods...))
	}
	children = append(children,
		typeRef(typ),
		tree.Branch(core.KindVariableDeclarator, name(n)).As(core.RoleDeclarator),
	)
	return tree.Branch(core.KindField, children...).As(core.RoleMember)
}

func modifiers(mods ...string) tree.Blueprint {
	kws := make([]tree.Blueprint, len(mods))
	for i, m := range mods {
		kws[i] = tree.Leaf(core.KindKeyword, m)
	}
	return tree.Branch(core.KindModifiers, kws...).As(core.RoleModifiers)
}

func param(typ, n string) tree.Blueprint {
	return tree.Branch(core.KindParameter, typeRef(typ), name(n)).As(core.RoleParameter)
}

func method(n string, params []tree.Blueprint, body ...tree.Blueprint) tree.Blueprint {
	return tree.Branch(core.KindMethod,
		typeRef("void"),
		name(n),
		tree.Branch(core.KindParameterList, params...).As(core.RoleParameters),
		block(body...).As(core.RoleBody),
	).As(core.RoleMember)
}

func class(n string, header []tree.Blueprint, members ...tree.Blueprint) tree.Blueprint {
	children := append([]tree.Blueprint{name(n)}, header...)
	children = append(children, tree.Branch(core.KindClassBody, members...).As(core.RoleBody))
	return tree.Branch(core.KindClass, children...)
}

func extends(t string) tree.Blueprint {
	return tree.Branch(core.KindSuperclass, tree.Leaf(core.KindTypeRef, t)).As(core.RoleSuperclass)
}

func file(pkg string, imports []string, types ...tree.Blueprint) tree.Blueprint {
	var children []tree.Blueprint
	if pkg != "" {
		children = append(children, tree.Branch(core.KindPackage, name(pkg)).As(core.RolePackage))
	}
	for _, imp := range imports {
		children = append(children, importDecl(imp))
	}
	return tree.Branch(core.KindFile, append(children, types...)...)
}

// importDecl accepts "a.b.C", "static a.b.C.m" and "module m"
func importDecl(text string) tree.Blueprint {
	var children []tree.Blueprint
	if mod, rest, ok := strings.Cut(text, " "); ok {
		children = append(children, modifiers(mod))
		text = rest
	}
	children = append(children, name(text))
	return tree.Branch(core.KindImport, children...).As(core.RoleImport)
}

func call(qual tree.Blueprint, n string, args ...tree.Blueprint) tree.Blueprint {
	var children []tree.Blueprint
	if qual.Kind != core.KindInvalid {
		children = append(children, qual.As(core.RoleQualifier))
	}
	for i := range args {
		args[i] = args[i].As(core.RoleArgument)
	}
	children = append(children, name(n), tree.Branch(core.KindArgumentList, args...).As(core.RoleArguments))
	return tree.Branch(core.KindMethodCall, children...)
}

func instanceOf(operand string, typ, binding string) tree.Blueprint {
	return tree.Branch(core.KindInstanceOf,
		ident(operand).As(core.RoleOperand),
		tree.Branch(core.KindTypeTestPattern, typeRef(typ), name(binding)).As(core.RolePattern),
	)
}

func newStore(t *testing.T, b tree.Blueprint) *tree.Store {
	t.Helper()
	s := tree.NewStore(nil)
	root, err := s.Build(0, b)
	require.NoError(t, err)
	_, err = s.SetRoot(root)
	require.NoError(t, err)
	return s
}

// nth returns the n-th node, in document order, of the given kind and token
func nth(t *testing.T, snap *tree.Snapshot, kind core.Kind, token string, n int) tree.NodeID {
	t.Helper()
	ids := snap.Find(snap.Root(), func(id tree.NodeID) bool {
		return snap.Kind(id) == kind && snap.Token(id) == token
	})
	require.Greater(t, len(ids), n, "expected at least %d %s %q", n+1, kind, token)
	return ids[n]
}

type fakeIndex struct {
	types   map[string]core.Declaration
	members map[string][]core.Declaration
	modules map[string][]string
	calls   atomic.Int64
}

func newFakeIndex(types ...core.Declaration) *fakeIndex {
	idx := &fakeIndex{
		types:   make(map[string]core.Declaration),
		members: make(map[string][]core.Declaration),
		modules: make(map[string][]string),
	}
	for _, d := range types {
		idx.types[d.QualifiedName] = d
	}
	return idx
}

func indexedType(qualified string, kind core.DeclKind) core.Declaration {
	i := strings.LastIndexByte(qualified, '.')
	return core.Declaration{Name: qualified[i+1:], QualifiedName: qualified, Kind: kind, Package: qualified[:max(i, 0)]}
}

func (f *fakeIndex) member(owner string, d core.Declaration) {
	d.Owner = owner
	d.QualifiedName = owner + "." + d.Name
	f.members[owner] = append(f.members[owner], d)
}

func (f *fakeIndex) LookupType(_ context.Context, qn string) (core.Declaration, bool, error) {
	f.calls.Add(1)
	d, ok := f.types[qn]
	return d, ok, nil
}

func (f *fakeIndex) PackageTypes(_ context.Context, pkg string) ([]core.Declaration, error) {
	f.calls.Add(1)
	var out []core.Declaration
	for _, d := range f.types {
		if d.Package == pkg {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeIndex) HasPackage(_ context.Context, pkg string) (bool, error) {
	f.calls.Add(1)
	for _, d := range f.types {
		if d.Package == pkg || strings.HasPrefix(d.Package, pkg+".") {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIndex) Members(_ context.Context, owner string) ([]core.Declaration, error) {
	f.calls.Add(1)
	return f.members[owner], nil
}

func (f *fakeIndex) LookupModule(_ context.Context, name string) (core.Declaration, bool, error) {
	f.calls.Add(1)
	if _, ok := f.modules[name]; !ok {
		return core.Declaration{}, false, nil
	}
	return core.Declaration{Name: name, QualifiedName: name, Kind: core.DeclModule}, true, nil
}

func (f *fakeIndex) ModuleExports(_ context.Context, module string) ([]string, error) {
	f.calls.Add(1)
	return f.modules[module], nil
}
