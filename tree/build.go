package tree

import "github.com/oxhq/psitree/core"

// Blueprint describes a subtree to lay out without source text. Leaves are as
// wide as their token (at least one byte); a branch opens one byte before its
// first child, separates children by one byte and closes one byte after the
// last. Tests and synthesized edits use it to build well-formed trees.
type Blueprint struct {
	Kind     core.Kind
	Role     core.Role
	Token    string
	Children []Blueprint
}

// Leaf returns a blueprint for a childless node
func Leaf(kind core.Kind, token string) Blueprint {
	return Blueprint{Kind: kind, Token: token}
}

// Branch returns a blueprint for a node with children
func Branch(kind core.Kind, children ...Blueprint) Blueprint {
	return Blueprint{Kind: kind, Children: children}
}

// As returns a copy of b occupying role in its parent
func (b Blueprint) As(role core.Role) Blueprint {
	b.Role = role
	return b
}

// WithToken returns a copy of b carrying token
func (b Blueprint) WithToken(token string) Blueprint {
	b.Token = token
	return b
}

func (b Blueprint) layout(rev Revision) *Node {
	n := &Node{
		id:       nextID(),
		kind:     b.Kind,
		role:     b.Role,
		token:    b.Token,
		revision: rev,
	}
	if len(b.Children) == 0 {
		n.width = max(len(b.Token), 1)
		return n
	}
	n.children = make([]*Node, len(b.Children))
	n.offsets = make([]int, len(b.Children))
	pos := 1
	for i, cb := range b.Children {
		c := cb.layout(rev)
		n.children[i] = c
		n.offsets[i] = pos
		pos += c.width + 1
	}
	n.width = pos
	return n
}
