package tree

const (
	trieBits  = 5
	trieWidth = 1 << trieBits
	trieMask  = trieWidth - 1
)

// slot is where a node sits in one revision
type slot struct {
	node   *Node
	parent NodeID
	index  int
}

type editToken struct{ _ byte }

type trieNode struct {
	owner *editToken
	kids  [trieWidth]*trieNode
	slots [trieWidth]*slot
}

// slotMap is a persistent map from NodeID to slot: a 32-way trie over the id
// bits whose height grows with the largest key. Revisions share every trie
// node an edit did not touch.
type slotMap struct {
	root  *trieNode
	shift uint
	count int
}

func (m slotMap) get(id NodeID) (*slot, bool) {
	key := uint64(id)
	if m.root == nil || key>>(m.shift+trieBits) != 0 {
		return nil, false
	}
	n := m.root
	for shift := m.shift; shift > 0; shift -= trieBits {
		n = n.kids[(key>>shift)&trieMask]
		if n == nil {
			return nil, false
		}
	}
	s := n.slots[key&trieMask]
	return s, s != nil
}

func (m slotMap) len() int { return m.count }

// slotEditor applies a batch of updates to a slotMap. Trie nodes copied
// during the batch are owned by it and updated in place; everything else is
// copied on first write.
type slotEditor struct {
	m     slotMap
	owner *editToken
}

func (m slotMap) edit() *slotEditor {
	return &slotEditor{m: m, owner: new(editToken)}
}

func (e *slotEditor) get(id NodeID) (*slot, bool) { return e.m.get(id) }

func (e *slotEditor) own(n *trieNode) *trieNode {
	if n == nil {
		return &trieNode{owner: e.owner}
	}
	if n.owner == e.owner {
		return n
	}
	c := *n
	c.owner = e.owner
	return &c
}

// set stores s under id; a nil s deletes the entry
func (e *slotEditor) set(id NodeID, s *slot) {
	key := uint64(id)
	if s == nil && (e.m.root == nil || key>>(e.m.shift+trieBits) != 0) {
		return
	}
	if e.m.root == nil {
		e.m.shift = 0
		e.m.root = &trieNode{owner: e.owner}
	}
	for key>>(e.m.shift+trieBits) != 0 {
		root := &trieNode{owner: e.owner}
		root.kids[0] = e.m.root
		e.m.root = root
		e.m.shift += trieBits
	}

	e.m.root = e.own(e.m.root)
	n := e.m.root
	for shift := e.m.shift; shift > 0; shift -= trieBits {
		i := (key >> shift) & trieMask
		if n.kids[i] == nil && s == nil {
			return
		}
		n.kids[i] = e.own(n.kids[i])
		n = n.kids[i]
	}
	i := key & trieMask
	switch {
	case n.slots[i] == nil && s != nil:
		e.m.count++
	case n.slots[i] != nil && s == nil:
		e.m.count--
	}
	n.slots[i] = s
}

// done returns the edited map. Later writes through e copy again, so the
// returned map is never mutated.
func (e *slotEditor) done() slotMap {
	e.owner = new(editToken)
	return e.m
}
