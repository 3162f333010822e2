package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

// level is one scope consulted by a walk. A cached result stays valid while
// every consulted scope either is the same node or still declares the same
// things under the looked-up name.
type level struct {
	node      tree.NodeID
	child     tree.NodeID
	name      string
	qualifier tree.NodeID // set for the member access holding a qualifier
	print     string
	depth     int // distance from the anchor, filled in when the walk ends
}

type walk struct {
	ctx     context.Context
	env     Env
	snap    *tree.Snapshot
	ref     Reference
	pkg     string
	imports []ImportBinding
	levels  []level
}

func newWalk(ctx context.Context, env Env, snap *tree.Snapshot, ref Reference) *walk {
	return &walk{
		ctx:     ctx,
		env:     env,
		snap:    snap,
		ref:     ref,
		pkg:     symbols.PackageOf(snap),
		imports: ImportsOf(snap),
	}
}

// sub starts a nested walk for another reference in the same file. Its
// consulted scopes are folded into w.
func (w *walk) sub(ref Reference) *walk {
	return &walk{ctx: w.ctx, env: w.env, snap: w.snap, ref: ref, pkg: w.pkg, imports: w.imports}
}

func (w *walk) run() ([]core.Declaration, error) {
	ref := w.ref
	switch ref.Kind {
	case RefModule:
		return w.module(ref.Name)
	case RefPackage:
		return w.pkgNamed(ref.Name)
	}
	if q, ok := qualifier(w.snap, ref.Anchor); ok {
		return w.member(q)
	}
	if parent, ok := w.snap.Parent(ref.Anchor); ok && w.snap.Kind(parent) == core.KindImport {
		return w.qualifiedType(ref.Name)
	}
	if ref.Kind == RefType && strings.Contains(ref.Name, ".") {
		return w.qualifiedType(ref.Name)
	}

	found, err := w.scopes(ref.Anchor, ref.Name, ref.Kind)
	if err != nil || len(found) > 0 || ref.Kind != RefExpression {
		return found, err
	}
	// an expression name no variable declares may name a type, then a package
	found, err = w.scopes(ref.Anchor, ref.Name, RefType)
	if err != nil || len(found) > 0 {
		return found, err
	}
	return w.pkgNamed(ref.Name)
}

// scopes walks outward from start. The first scope declaring name wins.
func (w *walk) scopes(start tree.NodeID, name string, kind RefKind) ([]core.Declaration, error) {
	s := w.snap
	child := start
	for {
		p, ok := s.Parent(child)
		if !ok {
			break
		}
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		if s.Kind(p) == core.KindFile {
			w.note(p, child, name, nil)
			return w.fileScope(name, kind)
		}

		local := w.declared(p, child)
		w.note(p, child, name, local)
		if found := pick(local, name, kind); len(found) > 0 {
			return found, nil
		}
		if s.Kind(p).IsTypeDeclaration() && s.Role(child) == core.RoleBody {
			if d, ok := symbols.Of(s, p, w.pkg); ok {
				found, err := w.inherited(d, name, kind)
				if err != nil || len(found) > 0 {
					return found, err
				}
			}
		}
		child = p
	}
	// a fragment without a file node still sees the implicit imports
	return w.fileScope(name, kind)
}

// note records a consulted scope with the fingerprint of what it declares
// under name.
func (w *walk) note(p, child tree.NodeID, name string, local []core.Declaration) {
	w.levels = append(w.levels, level{node: p, child: child, name: name, print: w.print(p, child, name, local)})
}

func (w *walk) print(p, child tree.NodeID, name string, local []core.Declaration) string {
	s := w.snap
	var sb strings.Builder
	sb.WriteString(s.Kind(p).String())
	if s.Kind(p) == core.KindFile {
		sb.WriteString("|" + w.pkg)
		for _, b := range w.imports {
			sb.WriteString("|" + b.String())
		}
		for _, t := range symbols.TopLevelTypes(s) {
			if n, _ := s.NameOf(t); n == name {
				fmt.Fprintf(&sb, "|%d", t)
			}
		}
		return sb.String()
	}
	for _, d := range local {
		if d.Name == name {
			fmt.Fprintf(&sb, "|%s:%d", d.Kind, d.NodeID)
		}
	}
	if s.Kind(p).IsTypeDeclaration() && s.Role(child) == core.RoleBody {
		if d, ok := symbols.Of(s, p, w.pkg); ok {
			fmt.Fprintf(&sb, "|%s|%s", d.Superclass, strings.Join(d.Interfaces, ","))
		}
	}
	return sb.String()
}

func pick(decls []core.Declaration, name string, kind RefKind) []core.Declaration {
	var out, accessors []core.Declaration
	for _, d := range decls {
		if d.Name != name {
			continue
		}
		switch {
		case kind.accepts(d.Kind):
			out = append(out, d)
		case kind == RefMethod && d.Kind == core.DeclRecordComponent:
			accessors = append(accessors, d)
		}
	}
	if len(out) == 0 {
		return accessors
	}
	return out
}

// inherited searches the supertypes of d breadth first. The nearest
// supertype level holding a match wins.
func (w *walk) inherited(d core.Declaration, name string, kind RefKind) ([]core.Declaration, error) {
	seen := map[string]bool{d.QualifiedName: true}
	frontier := []core.Declaration{d}
	for len(frontier) > 0 {
		var next, found []core.Declaration
		for _, t := range frontier {
			supers, err := w.supertypes(t)
			if err != nil {
				return nil, err
			}
			for _, sup := range supers {
				if seen[sup.QualifiedName] {
					continue
				}
				seen[sup.QualifiedName] = true
				members, err := w.membersOf(sup)
				if err != nil {
					return nil, err
				}
				found = append(found, pick(visible(members), name, kind)...)
				next = append(next, sup)
			}
		}
		if len(found) > 0 {
			return found, nil
		}
		frontier = next
	}
	return nil, nil
}

func visible(members []core.Declaration) []core.Declaration {
	out := members[:0:0]
	for _, m := range members {
		if !m.HasModifier("private") && m.Kind != core.DeclConstructor {
			out = append(out, m)
		}
	}
	return out
}

// supertypes resolves the direct supertypes of t. Names written in the tree
// resolve from the declaration's position; names from the index resolve
// against the declaring package and java.lang.
func (w *walk) supertypes(t core.Declaration) ([]core.Declaration, error) {
	names := t.Interfaces
	if t.Superclass != "" {
		names = append([]string{t.Superclass}, names...)
	}
	var out []core.Declaration
	for _, n := range names {
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		n = typesys.Erase(n)
		var (
			found []core.Declaration
			err   error
		)
		if id := tree.NodeID(t.NodeID); id != 0 && w.snap.Contains(id) && !strings.Contains(n, ".") {
			found, err = w.scopes(id, n, RefType)
		} else {
			found, err = w.indexedType(n, t.Package)
		}
		if err != nil {
			return nil, err
		}
		if len(found) == 1 && found[0].Kind != core.DeclTypeParameter {
			out = append(out, found[0])
		}
	}
	return out, nil
}

func (w *walk) indexedType(name, pkg string) ([]core.Declaration, error) {
	candidates := []string{name}
	if !strings.Contains(name, ".") {
		candidates = []string{qualify(pkg, name), "java.lang." + name}
	}
	for _, c := range candidates {
		d, ok, err := w.lookupType(c)
		if err != nil || ok {
			return one(d, ok, err)
		}
	}
	return nil, nil
}

// membersOf lists the members of a type, from the tree when the type is
// declared in this file and from the index otherwise.
func (w *walk) membersOf(t core.Declaration) ([]core.Declaration, error) {
	if id := tree.NodeID(t.NodeID); id != 0 && w.snap.Contains(id) {
		return symbols.Members(w.snap, id, w.pkg), nil
	}
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	return w.env.Index.Members(w.ctx, t.QualifiedName)
}

// fileScope resolves name against the compilation unit: its own types,
// imports, the package, on-demand imports and finally module imports.
func (w *walk) fileScope(name string, kind RefKind) ([]core.Declaration, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	switch kind {
	case RefType:
		return w.fileTypes(name)
	case RefExpression, RefMethod:
		return w.staticImports(name, kind)
	}
	return nil, nil
}

func (w *walk) fileTypes(name string) ([]core.Declaration, error) {
	s := w.snap
	var found []core.Declaration
	for _, t := range symbols.TopLevelTypes(s) {
		if d, ok := symbols.Of(s, t, w.pkg); ok && d.Name == name {
			found = append(found, d)
		}
	}

	imported := false
	for _, b := range w.imports {
		if b.IsOnDemand() || b.IsModule() || b.MemberName() != name {
			continue
		}
		imported = true
		qualified := b.QualifiedName()
		if b.IsStatic() {
			qualified += "." + name
		}
		d, ok, err := w.lookupType(qualified)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, d)
		}
	}
	if len(found) > 0 || imported {
		return found, nil
	}

	if d, ok, err := w.lookupType(qualify(w.pkg, name)); err != nil || ok {
		return one(d, ok, err)
	}

	for _, b := range w.imports {
		if !b.IsOnDemand() || b.IsModule() {
			continue
		}
		d, ok, err := w.lookupType(b.QualifiedName() + "." + name)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, d)
		}
	}
	if len(found) > 0 {
		return found, nil
	}

	for _, b := range w.imports {
		if !b.IsModule() {
			continue
		}
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		exports, err := w.env.Index.ModuleExports(w.ctx, b.QualifiedName())
		if err != nil {
			return nil, err
		}
		for _, pkg := range exports {
			d, ok, err := w.lookupType(pkg + "." + name)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, d)
			}
		}
	}
	return found, nil
}

// staticImports resolves a variable or method name through single-static
// imports, then static on-demand imports.
func (w *walk) staticImports(name string, kind RefKind) ([]core.Declaration, error) {
	for _, onDemand := range []bool{false, true} {
		var found []core.Declaration
		for _, b := range w.imports {
			if !b.IsStatic() || b.IsOnDemand() != onDemand || (!onDemand && b.MemberName() != name) {
				continue
			}
			owner, ok, err := w.lookupType(b.QualifiedName())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			members, err := w.membersOf(owner)
			if err != nil {
				return nil, err
			}
			for _, m := range pick(visible(members), name, kind) {
				if m.Static {
					found = append(found, m)
				}
			}
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// lookupType finds a type by qualified name, preferring types declared in
// this file.
func (w *walk) lookupType(qualified string) (core.Declaration, bool, error) {
	if err := w.ctx.Err(); err != nil {
		return core.Declaration{}, false, err
	}
	s := w.snap
	if root := s.Root(); root != 0 && strings.HasPrefix(qualified, qualify(w.pkg, "")) {
		for _, id := range s.Find(root, func(id tree.NodeID) bool { return s.Kind(id).IsTypeDeclaration() }) {
			if _, local := s.ContainingMethod(id); local {
				continue
			}
			if symbols.QualifiedTypeName(s, id, w.pkg) == qualified {
				d, ok := symbols.Of(s, id, w.pkg)
				return d, ok, nil
			}
		}
	}
	return w.env.lookupType(w.ctx, qualified)
}

// qualifiedType resolves a dotted type name: as written, then through its
// first segment in scope, then by the longest package prefix.
func (w *walk) qualifiedType(name string) ([]core.Declaration, error) {
	if d, ok, err := w.lookupType(name); err != nil || ok {
		return one(d, ok, err)
	}
	segs := strings.Split(name, ".")
	if len(segs) < 2 {
		return w.scopes(w.ref.Anchor, name, RefType)
	}

	first, err := w.scopes(w.ref.Anchor, segs[0], RefType)
	if err != nil {
		return nil, err
	}
	if len(first) == 1 {
		return w.memberTypes(first[0], segs[1:])
	}

	for i := len(segs) - 2; i >= 1; i-- {
		d, ok, err := w.lookupType(strings.Join(segs[:i+1], "."))
		if err != nil {
			return nil, err
		}
		if ok {
			return w.memberTypes(d, segs[i+1:])
		}
	}
	return nil, nil
}

func (w *walk) memberTypes(t core.Declaration, path []string) ([]core.Declaration, error) {
	for _, seg := range path {
		members, err := w.membersOf(t)
		if err != nil {
			return nil, err
		}
		found := pick(members, seg, RefType)
		if len(found) == 0 {
			found, err = w.inherited(t, seg, RefType)
			if err != nil {
				return nil, err
			}
		}
		if len(found) != 1 {
			return found, nil
		}
		t = found[0]
	}
	return []core.Declaration{t}, nil
}

// member resolves a name accessed through a qualifier: a field, method or
// member type of the qualifier's type, or a type of a qualifying package.
func (w *walk) member(q tree.NodeID) ([]core.Declaration, error) {
	parent, _ := w.snap.Parent(w.ref.Anchor)
	w.levels = append(w.levels, level{node: parent, qualifier: q, print: fmt.Sprint(q)})

	owner, ok, err := w.qualifierType(q)
	if err != nil || !ok {
		return nil, err
	}
	name, kind := w.ref.Name, w.ref.Kind
	if owner.Kind == core.DeclPackage {
		if kind == RefMethod {
			return nil, nil
		}
		if d, ok, err := w.lookupType(owner.QualifiedName + "." + name); err != nil || ok {
			return one(d, ok, err)
		}
		return w.pkgNamed(owner.QualifiedName + "." + name)
	}

	members, err := w.membersOf(owner)
	if err != nil {
		return nil, err
	}
	found := pick(members, name, kind)
	if len(found) == 0 && kind == RefExpression {
		found = pick(members, name, RefType)
	}
	if len(found) > 0 {
		return found, nil
	}
	found, err = w.inherited(owner, name, kind)
	if err != nil || len(found) > 0 || kind != RefExpression {
		return found, err
	}
	return w.inherited(owner, name, RefType)
}

// qualifierType returns the type or package whose members a qualifier
// exposes.
func (w *walk) qualifierType(q tree.NodeID) (core.Declaration, bool, error) {
	s := w.snap
	switch s.Kind(q) {
	case core.KindThis, core.KindSuper:
		cls, ok := s.ContainingClass(q)
		if !ok {
			return core.Declaration{}, false, nil
		}
		d, ok := symbols.Of(s, cls, w.pkg)
		if !ok || s.Kind(q) == core.KindThis {
			return d, ok, nil
		}
		supers, err := w.supertypes(core.Declaration{
			QualifiedName: d.QualifiedName, Package: d.Package, NodeID: d.NodeID, Superclass: d.Superclass,
		})
		if err != nil || len(supers) == 0 {
			return core.Declaration{}, false, err
		}
		return supers[0], true, nil

	case core.KindTypeRef:
		return w.single(w.typeNamed(s.Token(q)))

	case core.KindNew:
		if t, ok := s.Child(q, core.RoleType); ok {
			return w.single(w.typeNamed(s.Token(t)))
		}
		return core.Declaration{}, false, nil

	case core.KindLiteral:
		if strings.HasPrefix(s.Token(q), `"`) {
			return w.lookupType("java.lang.String")
		}
		return core.Declaration{}, false, nil

	case core.KindParenthesized:
		if op, ok := s.Child(q, core.RoleOperand); ok {
			return w.qualifierType(op)
		}
		return core.Declaration{}, false, nil
	}

	ref, ok := w.qualifierRef(q)
	if !ok {
		return core.Declaration{}, false, nil
	}
	inner := w.sub(ref)
	found, err := inner.run()
	w.levels = append(w.levels, inner.levels...)
	if err != nil || len(found) != 1 {
		return core.Declaration{}, false, err
	}
	d := found[0]
	switch {
	case d.Kind.IsType(), d.Kind == core.DeclPackage:
		return d, true, nil
	case d.Kind == core.DeclEnumConstant:
		return w.lookupType(d.Owner)
	case d.TypeName != "":
		if d.NodeID == 0 && !strings.Contains(d.TypeName, ".") {
			return w.single(w.indexedType(typesys.Erase(d.TypeName), d.Package))
		}
		return w.single(w.typeNamed(d.TypeName))
	}
	return core.Declaration{}, false, nil
}

func (w *walk) qualifierRef(q tree.NodeID) (Reference, bool) {
	s := w.snap
	switch s.Kind(q) {
	case core.KindIdentifier:
		return Reference{Anchor: q, Name: s.Token(q), Kind: RefExpression}, true
	case core.KindFieldAccess, core.KindMethodCall:
		name, ok := s.Child(q, core.RoleName)
		if !ok {
			return Reference{}, false
		}
		return ReferenceAt(s, name)
	}
	return Reference{}, false
}

// typeNamed resolves a type name written at the anchor
func (w *walk) typeNamed(name string) ([]core.Declaration, error) {
	name = typesys.Erase(name)
	if name == "" || typesys.IsPrimitive(name) || typesys.IsArray(name) {
		return nil, nil
	}
	if strings.Contains(name, ".") {
		return w.qualifiedType(name)
	}
	return w.scopes(w.ref.Anchor, name, RefType)
}

func (w *walk) single(found []core.Declaration, err error) (core.Declaration, bool, error) {
	if err != nil || len(found) != 1 {
		return core.Declaration{}, false, err
	}
	return found[0], true, nil
}

func (w *walk) pkgNamed(name string) ([]core.Declaration, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	if name != "" && name == w.pkg {
		return []core.Declaration{packageDecl(name)}, nil
	}
	ok, err := w.env.Index.HasPackage(w.ctx, name)
	return one(packageDecl(name), ok, err)
}

func (w *walk) module(name string) ([]core.Declaration, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	s := w.snap
	if mod, ok := s.ChildOfKind(s.Root(), core.KindModule); ok {
		if d, ok := symbols.Of(s, mod, ""); ok && d.Name == name {
			return []core.Declaration{d}, nil
		}
	}
	return one(w.env.Index.LookupModule(w.ctx, name))
}

func packageDecl(name string) core.Declaration {
	return core.Declaration{Name: lastSegment(name), QualifiedName: name, Kind: core.DeclPackage, Package: name}
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func one(d core.Declaration, ok bool, err error) ([]core.Declaration, error) {
	if err != nil || !ok {
		return nil, err
	}
	return []core.Declaration{d}, nil
}
