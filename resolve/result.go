package resolve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

// ResultKind classifies a resolution
type ResultKind uint8

const (
	Unresolved ResultKind = iota
	Single
	Ambiguous
)

func (k ResultKind) String() string {
	switch k {
	case Unresolved:
		return "unresolved"
	case Single:
		return "single"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("result(%d)", uint8(k))
}

// Result is the outcome of resolving a reference. Revision is the snapshot
// revision the result was computed against. Results are shared between cache
// hits and must not be modified.
type Result struct {
	Kind         ResultKind
	Reference    Reference
	Declarations []core.Declaration
	Revision     tree.Revision
}

// Declaration returns the target of a single resolution
func (r *Result) Declaration() (core.Declaration, bool) {
	if r == nil || r.Kind != Single {
		return core.Declaration{}, false
	}
	return r.Declarations[0], true
}

func (r *Result) String() string {
	switch r.Kind {
	case Single:
		return "single(" + r.Declarations[0].String() + ")"
	case Ambiguous:
		names := make([]string, len(r.Declarations))
		for i, d := range r.Declarations {
			names[i] = d.String()
		}
		return "ambiguous(" + strings.Join(names, ", ") + ")"
	}
	return "unresolved"
}

func newResult(ref Reference, rev tree.Revision, decls []core.Declaration) *Result {
	decls = dedupe(decls)
	r := &Result{Reference: ref, Revision: rev, Declarations: decls}
	switch len(decls) {
	case 0:
		r.Kind = Unresolved
	case 1:
		r.Kind = Single
	default:
		r.Kind = Ambiguous
		slices.SortStableFunc(r.Declarations, func(a, b core.Declaration) int {
			return strings.Compare(a.QualifiedName, b.QualifiedName)
		})
	}
	return r
}

// dedupe drops repeated declarations, such as a type reached through two
// on-demand imports of the same package.
func dedupe(decls []core.Declaration) []core.Declaration {
	if len(decls) < 2 {
		return decls
	}
	seen := make(map[string]bool, len(decls))
	out := decls[:0:0]
	for _, d := range decls {
		key := fmt.Sprintf("%s|%s|%d|%d", d.Kind, d.QualifiedName, d.NodeID, d.Span.Start)
		if d.NodeID == 0 {
			key = fmt.Sprintf("%s|%s|%s|%d", d.Kind, d.QualifiedName, d.File, d.Span.Start)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
