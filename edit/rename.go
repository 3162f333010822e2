// Package edit turns resolved references into source edits and writes the
// rewritten files atomically.
package edit

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/resolve"
	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

var (
	ErrOverlap      = errors.New("overlapping edits")
	ErrNotRenamable = errors.New("not renamable")
)

// Edit replaces the text of Span with Text
type Edit struct {
	Span core.Span
	Text string
}

// Apply returns src with edits applied. Edits may come in any order but must
// not overlap.
func Apply(src string, edits []Edit) (string, error) {
	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, func(a, b Edit) int { return cmp.Compare(a.Span.Start, b.Span.Start) })

	var sb strings.Builder
	pos := 0
	for _, e := range sorted {
		if e.Span.Start < pos {
			return "", fmt.Errorf("%w at %s", ErrOverlap, e.Span)
		}
		if e.Span.Start > e.Span.End || e.Span.End > len(src) {
			return "", fmt.Errorf("edit %s outside source of %d bytes", e.Span, len(src))
		}
		sb.WriteString(src[pos:e.Span.Start])
		sb.WriteString(e.Text)
		pos = e.Span.End
	}
	sb.WriteString(src[pos:])
	return sb.String(), nil
}

// Rename is the set of edits renaming one declaration within a file
type Rename struct {
	Target core.Declaration
	Edits  []Edit
}

// Apply rewrites src with the rename's edits
func (r *Rename) Apply(src string) (string, error) {
	return Apply(src, r.Edits)
}

// PlanRename renames the declaration at, or referenced by, node at. Every
// reference in snap resolving to that declaration is renamed, together with
// the declaration's own name and, for classes, its constructors.
func PlanRename(ctx context.Context, resolver *resolve.Cache, snap *tree.Snapshot, at tree.NodeID, newName string) (*Rename, error) {
	if !IsIdentifier(newName) {
		return nil, fmt.Errorf("%w: %q is not a Java identifier", ErrNotRenamable, newName)
	}
	target, err := declarationAt(ctx, resolver, snap, at)
	if err != nil {
		return nil, err
	}

	plan := &Rename{Target: target}
	seen := map[core.Span]bool{}
	add := func(span core.Span) {
		if !seen[span] {
			seen[span] = true
			plan.Edits = append(plan.Edits, Edit{Span: span, Text: newName})
		}
	}

	decl := tree.NodeID(target.NodeID)
	if name, ok := snap.Child(decl, core.RoleName); ok {
		add(snap.Span(name))
	}
	if target.Kind.IsType() {
		if body, ok := snap.Child(decl, core.RoleBody); ok {
			for _, m := range snap.Children(body) {
				if snap.Kind(m) != core.KindConstructor {
					continue
				}
				if name, ok := snap.Child(m, core.RoleName); ok && snap.Token(name) == target.Name {
					add(snap.Span(name))
				}
			}
		}
	}

	candidates := snap.Find(snap.Root(), func(id tree.NodeID) bool {
		ref, ok := resolve.ReferenceAt(snap, id)
		return ok && lastSegment(ref.Name) == target.Name
	})
	for _, id := range candidates {
		r, err := resolver.ResolveAt(ctx, snap, id)
		if err != nil {
			return nil, err
		}
		d, ok := r.Declaration()
		if !ok || d.NodeID != target.NodeID {
			continue
		}
		if span, ok := nameSpan(snap, id, target.Name); ok {
			add(span)
		}
	}

	slices.SortFunc(plan.Edits, func(a, b Edit) int { return cmp.Compare(a.Span.Start, b.Span.Start) })
	return plan, nil
}

// declarationAt finds the declaration named by at: either the declaring
// node's own name or a reference resolving to a declaration of this tree
func declarationAt(ctx context.Context, resolver *resolve.Cache, snap *tree.Snapshot, at tree.NodeID) (core.Declaration, error) {
	if snap.Kind(at) == core.KindName && snap.Role(at) == core.RoleName {
		if parent, ok := snap.Parent(at); ok {
			if d, ok := symbols.Of(snap, parent, symbols.PackageOf(snap)); ok {
				return d, nil
			}
		}
	}
	r, err := resolver.ResolveAt(ctx, snap, at)
	if err != nil {
		return core.Declaration{}, fmt.Errorf("%w: %v", ErrNotRenamable, err)
	}
	d, ok := r.Declaration()
	if !ok {
		return core.Declaration{}, fmt.Errorf("%w: %s", ErrNotRenamable, r)
	}
	if d.NodeID == 0 || !snap.Contains(tree.NodeID(d.NodeID)) {
		return core.Declaration{}, fmt.Errorf("%w: %s is declared in another file", ErrNotRenamable, d)
	}
	return d, nil
}

// nameSpan locates name inside a reference node. Type references may carry
// qualifiers and type arguments; the name is the last segment of the erased
// type.
func nameSpan(snap *tree.Snapshot, id tree.NodeID, name string) (core.Span, bool) {
	span := snap.Span(id)
	if snap.Kind(id) != core.KindTypeRef {
		return span, snap.Token(id) == name
	}
	text, ok := snap.Text(id)
	if !ok {
		text = snap.Token(id)
	}
	erased := typesys.Erase(text)
	if i := strings.IndexByte(erased, '['); i >= 0 {
		erased = erased[:i]
	}
	erased = strings.TrimRight(erased, " \t\r\n")
	if !strings.HasSuffix(erased, name) || !strings.HasPrefix(text, erased) {
		return core.Span{}, false
	}
	end := span.Start + len(erased)
	return core.Span{Start: end - len(name), End: end}, true
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

var reserved = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true, "case": true,
	"catch": true, "char": true, "class": true, "const": true, "continue": true, "default": true,
	"do": true, "double": true, "else": true, "enum": true, "extends": true, "final": true,
	"finally": true, "float": true, "for": true, "goto": true, "if": true, "implements": true,
	"import": true, "instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true, "return": true,
	"short": true, "static": true, "strictfp": true, "super": true, "switch": true, "synchronized": true,
	"this": true, "throw": true, "throws": true, "transient": true, "try": true, "void": true,
	"volatile": true, "while": true, "true": true, "false": true, "null": true, "_": true,
}

// IsIdentifier reports whether s can name a Java declaration
func IsIdentifier(s string) bool {
	if s == "" || reserved[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
