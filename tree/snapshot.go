package tree

import (
	"fmt"
	"strings"

	"github.com/oxhq/psitree/core"
)

// Snapshot is an immutable view of one revision. Parent links live in a
// persistent slot map shared with neighbouring revisions, never in the nodes;
// absolute spans are summed from the offsets along the path to the root.
type Snapshot struct {
	root     *Node
	revision Revision
	base     int
	source   core.SourceProvider
	slots    slotMap
}

func newSnapshot(root *Node, rev Revision, base int, source core.SourceProvider, slots slotMap) *Snapshot {
	return &Snapshot{root: root, revision: rev, base: base, source: source, slots: slots}
}

func (s *Snapshot) entry(id NodeID) (*slot, bool) {
	return s.slots.get(id)
}

// start returns the absolute start of the node in e
func (s *Snapshot) start(e *slot) int {
	start := s.base
	for e.parent != 0 {
		p, ok := s.slots.get(e.parent)
		if !ok {
			break
		}
		start += p.node.offsets[e.index]
		e = p
	}
	return start
}

// walkSpans visits the subtree at id in pre-order with absolute starts.
// Returning false from fn skips the children of the visited node.
func (s *Snapshot) walkSpans(id NodeID, fn func(n *Node, start, depth int) bool) {
	e, ok := s.entry(id)
	if !ok {
		return
	}
	var walk func(n *Node, start, depth int)
	walk = func(n *Node, start, depth int) {
		if !fn(n, start, depth) {
			return
		}
		for i, c := range n.children {
			walk(c, start+n.offsets[i], depth+1)
		}
	}
	walk(e.node, s.start(e), 0)
}

// Revision returns the revision this snapshot represents
func (s *Snapshot) Revision() Revision { return s.revision }

// Root returns the root id, or 0 for an empty tree
func (s *Snapshot) Root() NodeID {
	if s.root == nil {
		return 0
	}
	return s.root.id
}

// Size returns the number of nodes in the revision
func (s *Snapshot) Size() int {
	return s.slots.len()
}

// Contains reports whether id is part of this revision
func (s *Snapshot) Contains(id NodeID) bool {
	_, ok := s.entry(id)
	return ok
}

// Node returns the node with the given id
func (s *Snapshot) Node(id NodeID) (*Node, bool) {
	e, ok := s.entry(id)
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Kind returns the kind of id, or KindInvalid when absent
func (s *Snapshot) Kind(id NodeID) core.Kind {
	if e, ok := s.entry(id); ok {
		return e.node.kind
	}
	return core.KindInvalid
}

// Role returns the role of id inside its parent
func (s *Snapshot) Role(id NodeID) core.Role {
	if e, ok := s.entry(id); ok {
		return e.node.role
	}
	return core.RoleNone
}

// Token returns the lexeme carried by id
func (s *Snapshot) Token(id NodeID) string {
	if e, ok := s.entry(id); ok {
		return e.node.token
	}
	return ""
}

// Span returns the absolute source span of id
func (s *Snapshot) Span(id NodeID) core.Span {
	if e, ok := s.entry(id); ok {
		start := s.start(e)
		return core.Span{Start: start, End: start + e.node.width}
	}
	return core.Span{}
}

// NodeRevision returns the revision stamp of the node version id
func (s *Snapshot) NodeRevision(id NodeID) Revision {
	if e, ok := s.entry(id); ok {
		return e.node.revision
	}
	return 0
}

// Children returns the ordered children of id
func (s *Snapshot) Children(id NodeID) []NodeID {
	e, ok := s.entry(id)
	if !ok {
		return nil
	}
	ids := make([]NodeID, len(e.node.children))
	for i, c := range e.node.children {
		ids[i] = c.id
	}
	return ids
}

// Parent returns the parent of id; the root has none
func (s *Snapshot) Parent(id NodeID) (NodeID, bool) {
	e, ok := s.entry(id)
	if !ok || e.parent == 0 {
		return 0, false
	}
	return e.parent, true
}

// Ancestors returns the ancestors of id, nearest first
func (s *Snapshot) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p, ok := s.Parent(id); ok; p, ok = s.Parent(p) {
		out = append(out, p)
	}
	return out
}

// NextSibling returns the right sibling of id
func (s *Snapshot) NextSibling(id NodeID) (NodeID, bool) {
	e, ok := s.entry(id)
	if !ok || e.parent == 0 {
		return 0, false
	}
	pe, ok := s.entry(e.parent)
	if !ok {
		return 0, false
	}
	p := pe.node
	if e.index+1 >= len(p.children) {
		return 0, false
	}
	return p.children[e.index+1].id, true
}

// PrevSibling returns the left sibling of id
func (s *Snapshot) PrevSibling(id NodeID) (NodeID, bool) {
	e, ok := s.entry(id)
	if !ok || e.parent == 0 || e.index == 0 {
		return 0, false
	}
	pe, ok := s.entry(e.parent)
	if !ok {
		return 0, false
	}
	return pe.node.children[e.index-1].id, true
}

// IndexInParent returns the position of id among its siblings
func (s *Snapshot) IndexInParent(id NodeID) int {
	if e, ok := s.entry(id); ok {
		return e.index
	}
	return -1
}

// Child returns the first child of id occupying role. Absence is the normal
// outcome for incomplete source and is not an error.
func (s *Snapshot) Child(id NodeID, role core.Role) (NodeID, bool) {
	e, ok := s.entry(id)
	if !ok {
		return 0, false
	}
	for _, c := range e.node.children {
		if c.role == role {
			return c.id, true
		}
	}
	return 0, false
}

// ChildrenWithRole returns every child of id occupying role
func (s *Snapshot) ChildrenWithRole(id NodeID, role core.Role) []NodeID {
	e, ok := s.entry(id)
	if !ok {
		return nil
	}
	var out []NodeID
	for _, c := range e.node.children {
		if c.role == role {
			out = append(out, c.id)
		}
	}
	return out
}

// ChildOfKind returns the first child of id with one of the given kinds
func (s *Snapshot) ChildOfKind(id NodeID, kinds ...core.Kind) (NodeID, bool) {
	e, ok := s.entry(id)
	if !ok {
		return 0, false
	}
	for _, c := range e.node.children {
		for _, k := range kinds {
			if c.kind == k {
				return c.id, true
			}
		}
	}
	return 0, false
}

// IsAncestor reports whether anc is a proper ancestor of id
func (s *Snapshot) IsAncestor(anc, id NodeID) bool {
	for p, ok := s.Parent(id); ok; p, ok = s.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// Walk visits the subtree at id in pre-order. Returning false from fn skips
// the children of the visited node.
func (s *Snapshot) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	e, ok := s.entry(id)
	if !ok {
		return
	}
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if !fn(n.id, depth) {
			return
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(e.node, 0)
}

// Find returns every node under id (inclusive) satisfying pred, in pre-order
func (s *Snapshot) Find(id NodeID, pred func(id NodeID) bool) []NodeID {
	var out []NodeID
	s.Walk(id, func(n NodeID, _ int) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindKind returns every node under id with one of the given kinds
func (s *Snapshot) FindKind(id NodeID, kinds ...core.Kind) []NodeID {
	return s.Find(id, func(n NodeID) bool {
		k := s.Kind(n)
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	})
}

// NodeAt returns the deepest node whose span contains offset
func (s *Snapshot) NodeAt(offset int) (NodeID, bool) {
	if s.root == nil {
		return 0, false
	}
	cur, start := s.root, s.base
	if !(core.Span{Start: start, End: start + cur.width}).ContainsOffset(offset) {
		return 0, false
	}
	for {
		var next *Node
		for i, c := range cur.children {
			cs := start + cur.offsets[i]
			if (core.Span{Start: cs, End: cs + c.width}).ContainsOffset(offset) {
				next, start = c, cs
				break
			}
		}
		if next == nil {
			return cur.id, true
		}
		cur = next
	}
}

// Text returns the source text covered by id through the source provider
func (s *Snapshot) Text(id NodeID) (string, bool) {
	if s.source == nil {
		return "", false
	}
	e, ok := s.entry(id)
	if !ok {
		return "", false
	}
	start := s.start(e)
	return s.source.Text(core.Span{Start: start, End: start + e.node.width})
}

// Check verifies the tree invariants: every child's parent is the node that
// lists it, children lie inside their parent's span and appear in source
// order without overlap.
func (s *Snapshot) Check() error {
	if s.root == nil {
		return nil
	}
	var firstErr error
	s.walkSpans(s.Root(), func(n *Node, start, _ int) bool {
		if firstErr != nil {
			return false
		}
		span := core.Span{Start: start, End: start + n.width}
		prevEnd := span.Start
		for i, c := range n.children {
			if e, ok := s.entry(c.id); !ok || e.parent != n.id || e.index != i {
				var p NodeID
				if ok {
					p = e.parent
				}
				firstErr = fmt.Errorf("%w: node %d lists child %d whose parent is %d", ErrMalformed, n.id, c.id, p)
				return false
			}
			cs := core.Span{Start: start + n.offsets[i], End: start + n.offsets[i] + c.width}
			if !span.Contains(cs) {
				firstErr = fmt.Errorf("%w: child %d %s escapes parent %d %s", ErrMalformed, c.id, cs, n.id, span)
				return false
			}
			if cs.Start < prevEnd {
				firstErr = fmt.Errorf("%w: child %d %s overlaps its left sibling", ErrMalformed, c.id, cs)
				return false
			}
			prevEnd = cs.End
		}
		return true
	})
	return firstErr
}

// Dump renders the subtree at id as an indented outline, one node per line
func (s *Snapshot) Dump(id NodeID) string {
	var sb strings.Builder
	s.walkSpans(id, func(n *Node, start, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.kind.String())
		if n.role != core.RoleNone {
			fmt.Fprintf(&sb, " <%s>", n.role)
		}
		if n.token != "" {
			fmt.Fprintf(&sb, " %q", n.token)
		}
		fmt.Fprintf(&sb, " %s\n", core.Span{Start: start, End: start + n.width})
		return true
	})
	return sb.String()
}

// Equal reports whether two subtrees are structurally equal: same kinds,
// roles, tokens, widths and child layout. Ids and revision stamps are ignored.
func Equal(a *Snapshot, aID NodeID, b *Snapshot, bID NodeID) bool {
	an, ok := a.Node(aID)
	if !ok {
		return false
	}
	bn, ok := b.Node(bID)
	if !ok {
		return false
	}
	return equalNodes(an, bn)
}

func equalNodes(a, b *Node) bool {
	if a == b {
		return true
	}
	if a.kind != b.kind || a.role != b.role || a.token != b.token ||
		a.width != b.width || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if a.offsets[i] != b.offsets[i] || !equalNodes(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
