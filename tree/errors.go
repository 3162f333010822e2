package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is returned for ids this store never owned
	ErrUnknownNode = errors.New("tree: unknown node")
	// ErrAttached is returned when a detached node was expected
	ErrAttached = errors.New("tree: node is already attached")
	// ErrMalformed is returned when a subtree violates span or ordering invariants
	ErrMalformed = errors.New("tree: malformed subtree")
	// ErrNoRoot is returned by edits on a store without a root
	ErrNoRoot = errors.New("tree: store has no root")
)

// StaleNodeError reports an operation on a node id from a superseded revision.
// Callers recover by re-fetching the node from the current snapshot.
type StaleNodeError struct {
	ID         NodeID
	Superseded Revision
	Current    Revision
}

func (e *StaleNodeError) Error() string {
	return fmt.Sprintf("tree: node %d is stale (superseded at revision %d, current revision %d)",
		e.ID, e.Superseded, e.Current)
}

// IsStale reports whether err is or wraps a StaleNodeError
func IsStale(err error) bool {
	var stale *StaleNodeError
	return errors.As(err, &stale)
}
