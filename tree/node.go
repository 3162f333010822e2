// Package tree is the syntax tree store: stable node identities, structural
// navigation, and copy-on-write replacement with structural sharing.
//
// Nodes are immutable and position independent. A node records its width and
// the offset of every child relative to its own start, so an unchanged
// subtree can be shared by several revisions even when an edit before it
// shifts the text. Absolute spans are computed by a Snapshot.
package tree

import (
	"sync/atomic"

	"github.com/oxhq/psitree/core"
)

// NodeID identifies one version of a node. Ids are unique across every store
// in the process, so subtrees can be shared between stores.
type NodeID uint64

// Revision is a monotonically increasing tree-version stamp
type Revision uint64

var lastID atomic.Uint64

func nextID() NodeID {
	return NodeID(lastID.Add(1))
}

// Node is an immutable syntax tree node
type Node struct {
	id       NodeID
	kind     core.Kind
	role     core.Role
	token    string
	width    int
	revision Revision
	children []*Node
	offsets  []int
}

// ID returns the node identity
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node kind
func (n *Node) Kind() core.Kind { return n.kind }

// Role returns the slot the node occupies in its parent
func (n *Node) Role() core.Role { return n.role }

// Token returns the lexeme carried by the node (identifier, literal, operator)
func (n *Node) Token() string { return n.token }

// Width returns the number of source bytes covered by the node
func (n *Node) Width() int { return n.width }

// Revision returns the revision at which this node version was created
func (n *Node) Revision() Revision { return n.revision }

// NumChildren returns the number of children
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th child
func (n *Node) Child(i int) *Node { return n.children[i] }

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}
