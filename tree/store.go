package tree

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oxhq/psitree/core"
)

// NodeSpec describes a node to create. Span is absolute in the coordinates of
// the text being built; children passed to CreateNode must lie inside it.
type NodeSpec struct {
	Kind  core.Kind
	Role  core.Role
	Span  core.Span
	Token string
}

type detachedNode struct {
	node  *Node
	start int
}

// DefaultHistory is the number of revisions for which a store remembers
// retired node ids. Older ids are reported as unknown instead of stale.
const DefaultHistory = 256

type retirement struct {
	rev Revision
	ids []NodeID
}

// Store owns one syntax tree. Writes are serialized by a mutex; readers take
// an immutable Snapshot and never block on writers.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[Snapshot]
	revision Revision
	base     int
	source   core.SourceProvider
	detached map[NodeID]*detachedNode
	live     *slotEditor

	history    int
	retired    map[NodeID]Revision
	retiredLog []retirement
	pending    []NodeID
}

// NewStore creates an empty store reading text from source (may be nil)
func NewStore(source core.SourceProvider) *Store {
	s := &Store{
		source:   source,
		detached: make(map[NodeID]*detachedNode),
		live:     slotMap{}.edit(),
		history:  DefaultHistory,
		retired:  make(map[NodeID]Revision),
	}
	s.current.Store(newSnapshot(nil, 0, 0, source, slotMap{}))
	return s
}

// SetHistory bounds how many revisions of retired ids the store keeps for
// stale-node errors. Values below one are raised to one.
func (s *Store) SetHistory(revisions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = max(revisions, 1)
	s.trimRetired()
}

// NewStoreFrom creates a store whose first revision adopts the tree of snap.
// The nodes are shared, not copied.
func NewStoreFrom(snap *Snapshot) *Store {
	s := NewStore(snap.source)
	if snap.root == nil {
		return s
	}
	s.revision = 1
	s.base = snap.base
	s.live = snap.slots.edit()
	s.current.Store(newSnapshot(snap.root, s.revision, s.base, s.source, s.live.done()))
	return s
}

// Snapshot returns the current revision of the tree
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Revision returns the current revision
func (s *Store) Revision() Revision {
	return s.current.Load().revision
}

// SetSource swaps the source provider used by subsequent snapshots and
// republishes the current revision with it.
func (s *Store) SetSource(source core.SourceProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	cur := s.current.Load()
	s.current.Store(newSnapshot(cur.root, cur.revision, cur.base, source, cur.slots))
}

// CreateNode creates a detached node owning the given detached children.
// Children must lie inside spec.Span, in source order, without overlap.
func (s *Store) CreateNode(spec NodeSpec, children ...NodeID) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.Span.Start > spec.Span.End {
		return 0, fmt.Errorf("%w: inverted span %s", ErrMalformed, spec.Span)
	}

	kids := make([]*detachedNode, len(children))
	prevEnd := spec.Span.Start
	for i, id := range children {
		d, ok := s.detached[id]
		if !ok {
			return 0, s.notDetached(id)
		}
		if slices.Contains(children[:i], id) {
			return 0, fmt.Errorf("%w: child %d passed twice", ErrMalformed, id)
		}
		span := core.Span{Start: d.start, End: d.start + d.node.width}
		if !spec.Span.Contains(span) {
			return 0, fmt.Errorf("%w: child %s outside parent %s", ErrMalformed, span, spec.Span)
		}
		if span.Start < prevEnd {
			return 0, fmt.Errorf("%w: child %s overlaps or precedes its left sibling", ErrMalformed, span)
		}
		prevEnd = span.End
		kids[i] = d
	}

	n := &Node{
		id:       nextID(),
		kind:     spec.Kind,
		role:     spec.Role,
		token:    spec.Token,
		width:    spec.Span.Len(),
		revision: s.revision + 1,
	}
	if len(kids) > 0 {
		n.children = make([]*Node, len(kids))
		n.offsets = make([]int, len(kids))
		for i, d := range kids {
			n.children[i] = d.node
			n.offsets[i] = d.start - spec.Span.Start
			delete(s.detached, d.node.id)
		}
	}
	s.detached[n.id] = &detachedNode{node: n, start: spec.Span.Start}
	return n.id, nil
}

// SetRoot installs a detached node as the root of the tree, retiring any
// previous tree, and returns the new revision.
func (s *Store) SetRoot(id NodeID) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.detached[id]
	if !ok {
		return 0, s.notDetached(id)
	}
	delete(s.detached, id)

	rev := s.revision + 1
	if old := s.current.Load().root; old != nil {
		var retireAll func(n *Node)
		retireAll = func(n *Node) {
			s.retire(n.id, rev)
			for _, c := range n.children {
				retireAll(c)
			}
		}
		retireAll(old)
	}
	s.live = slotMap{}.edit()

	stamp(d.node, rev)
	s.index(d.node, 0, 0)
	s.base = d.start
	s.publish(d.node, rev)
	return rev, nil
}

// Replace swaps the live node target for the detached subtree replacement.
// The path from target to the root is copied with the new revision stamp;
// every other subtree is shared with the previous revision. It returns the id
// of the replacement now in place.
func (s *Store) Replace(target, replacement NodeID) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.liveNode(target)
	if err != nil {
		return 0, err
	}
	d, ok := s.detached[replacement]
	if !ok {
		return 0, s.notDetached(replacement)
	}
	delete(s.detached, replacement)

	rev := s.revision + 1
	old := entry.node
	parentID := entry.parent
	repl := d.node
	repl.role = old.role

	s.retireSubtree(old, rev)
	stamp(repl, rev)
	s.index(repl, parentID, entry.index)

	root := s.swapUp(old, repl, parentID, repl.width-old.width, rev)
	s.publish(root, rev)
	return repl.id, nil
}

// InsertChild inserts a detached subtree as the index-th child of parent. The
// new child starts where its left sibling ends.
func (s *Store) InsertChild(parent NodeID, index int, child NodeID) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.liveNode(parent)
	if err != nil {
		return 0, err
	}
	p := entry.node
	if index < 0 || index > len(p.children) {
		return 0, fmt.Errorf("%w: child index %d out of range [0,%d]", ErrMalformed, index, len(p.children))
	}
	d, ok := s.detached[child]
	if !ok {
		return 0, s.notDetached(child)
	}
	delete(s.detached, child)

	rev := s.revision + 1
	n := d.node
	offset := 0
	if index > 0 {
		offset = p.offsets[index-1] + p.children[index-1].width
	}
	children := slices.Insert(slices.Clone(p.children), index, n)
	offsets := slices.Insert(slices.Clone(p.offsets), index, offset)
	for j := index + 1; j < len(offsets); j++ {
		offsets[j] += n.width
	}

	stamp(n, rev)
	s.index(n, parent, index)
	updated := s.derive(p, children, offsets, p.width+n.width, rev)
	root := s.swapUp(p, updated, entry.parent, n.width, rev)
	s.publish(root, rev)
	return n.id, nil
}

// Remove deletes a live non-root node together with the text it covers.
func (s *Store) Remove(target NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.liveNode(target)
	if err != nil {
		return err
	}
	if entry.parent == 0 {
		return fmt.Errorf("%w: cannot remove the root", ErrMalformed)
	}

	rev := s.revision + 1
	old := entry.node
	pe, _ := s.live.get(entry.parent)
	p := pe.node
	i := entry.index
	children := slices.Delete(slices.Clone(p.children), i, i+1)
	offsets := slices.Delete(slices.Clone(p.offsets), i, i+1)
	for j := i; j < len(offsets); j++ {
		offsets[j] -= old.width
	}

	s.retireSubtree(old, rev)
	updated := s.derive(p, children, offsets, p.width-old.width, rev)
	root := s.swapUp(p, updated, pe.parent, -old.width, rev)
	s.publish(root, rev)
	return nil
}

// CopySubtree deep-copies the subtree at id in snap into a detached subtree
// with fresh ids, positioned at the same absolute span.
func (s *Store) CopySubtree(snap *Snapshot, id NodeID) (NodeID, error) {
	e, ok := snap.slots.get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d not in revision %d", ErrUnknownNode, id, snap.revision)
	}
	start := snap.start(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := deepCopy(e.node, s.revision+1)
	s.detached[n.id] = &detachedNode{node: n, start: start}
	return n.id, nil
}

// Build creates a detached subtree from a blueprint, laying spans out
// automatically from base.
func (s *Store) Build(base int, b Blueprint) (NodeID, error) {
	n := b.layout(s.Revision() + 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached[n.id] = &detachedNode{node: n, start: base}
	return n.id, nil
}

// Discard drops a detached subtree that will not be attached
func (s *Store) Discard(id NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.detached, id)
}

// IsLive reports whether id belongs to the current revision
func (s *Store) IsLive(id NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live.get(id)
	return ok
}

func (s *Store) liveNode(id NodeID) (*slot, error) {
	if s.current.Load().root == nil {
		return nil, ErrNoRoot
	}
	if e, ok := s.live.get(id); ok {
		return e, nil
	}
	if rev, ok := s.retired[id]; ok {
		return nil, &StaleNodeError{ID: id, Superseded: rev, Current: s.revision}
	}
	if _, ok := s.detached[id]; ok {
		return nil, fmt.Errorf("%w: %d is detached", ErrUnknownNode, id)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
}

func (s *Store) notDetached(id NodeID) error {
	if _, ok := s.live.get(id); ok {
		return fmt.Errorf("%w: %d", ErrAttached, id)
	}
	if rev, ok := s.retired[id]; ok {
		return &StaleNodeError{ID: id, Superseded: rev, Current: s.revision}
	}
	return fmt.Errorf("%w: %d", ErrUnknownNode, id)
}

// swapUp replaces old by updated inside old's parent and repeats up to the
// root, returning the new root. Each copied ancestor grows by delta and
// shifts the offsets of the siblings right of the edit.
func (s *Store) swapUp(old, updated *Node, parentID NodeID, delta int, rev Revision) *Node {
	for parentID != 0 {
		pe, _ := s.live.get(parentID)
		parent := pe.node
		i := parent.indexOf(old)
		children := slices.Clone(parent.children)
		offsets := slices.Clone(parent.offsets)
		children[i] = updated
		for j := i + 1; j < len(offsets); j++ {
			offsets[j] += delta
		}
		next := s.derive(parent, children, offsets, parent.width+delta, rev)
		old, updated, parentID = parent, next, pe.parent
	}
	return updated
}

// derive creates the next version of a live node and moves its slot. The
// children are re-slotted under the new id; their siblings' indexes may have
// shifted.
func (s *Store) derive(old *Node, children []*Node, offsets []int, width int, rev Revision) *Node {
	n := &Node{
		id:       nextID(),
		kind:     old.kind,
		role:     old.role,
		token:    old.token,
		width:    width,
		revision: rev,
		children: children,
		offsets:  offsets,
	}
	prev, _ := s.live.get(old.id)
	s.live.set(old.id, nil)
	s.retire(old.id, rev)
	s.live.set(n.id, &slot{node: n, parent: prev.parent, index: prev.index})
	for i, c := range children {
		s.live.set(c.id, &slot{node: c, parent: n.id, index: i})
	}
	return n
}

func (s *Store) index(n *Node, parent NodeID, index int) {
	s.live.set(n.id, &slot{node: n, parent: parent, index: index})
	for i, c := range n.children {
		s.index(c, n.id, i)
	}
}

func (s *Store) retireSubtree(n *Node, rev Revision) {
	s.live.set(n.id, nil)
	s.retire(n.id, rev)
	for _, c := range n.children {
		s.retireSubtree(c, rev)
	}
}

func (s *Store) retire(id NodeID, rev Revision) {
	s.retired[id] = rev
	s.pending = append(s.pending, id)
}

func (s *Store) publish(root *Node, rev Revision) {
	s.revision = rev
	if len(s.pending) > 0 {
		s.retiredLog = append(s.retiredLog, retirement{rev: rev, ids: s.pending})
		s.pending = nil
		s.trimRetired()
	}
	s.current.Store(newSnapshot(root, rev, s.base, s.source, s.live.done()))
}

// trimRetired forgets the ids retired more than history revisions ago
func (s *Store) trimRetired() {
	for len(s.retiredLog) > 0 && s.revision-s.retiredLog[0].rev >= Revision(s.history) {
		old := s.retiredLog[0]
		for _, id := range old.ids {
			if s.retired[id] == old.rev {
				delete(s.retired, id)
			}
		}
		s.retiredLog[0] = retirement{}
		s.retiredLog = s.retiredLog[1:]
	}
}

// stamp sets the revision of a detached subtree before it is published
func stamp(n *Node, rev Revision) {
	n.revision = rev
	for _, c := range n.children {
		stamp(c, rev)
	}
}

func deepCopy(n *Node, rev Revision) *Node {
	c := &Node{
		id:       nextID(),
		kind:     n.kind,
		role:     n.role,
		token:    n.token,
		width:    n.width,
		revision: rev,
		offsets:  slices.Clone(n.offsets),
	}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = deepCopy(child, rev)
		}
	}
	return c
}
