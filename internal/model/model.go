package model

import "errors"

var (
	// ErrNotFound is returned when a referenced node or element id is absent.
	ErrNotFound = errors.New("not found")
	// ErrIntegrityViolation is returned when a mutation would leave an
	// element pointing at a missing node.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrNoPriorEffect is returned when undo is called on an operation that
	// never changed anything.
	ErrNoPriorEffect = errors.New("no prior effect")
	// ErrDuplicate is returned when inserting an entity whose id is taken.
	ErrDuplicate = errors.New("duplicate id")
)

// Node is a point entity with an integer display name and world coordinates.
type Node struct {
	ID   string  `json:"id"`
	Name int     `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Element is a linear entity connecting two distinct nodes. The node ids
// resolve through the owning Graph, so an element always sees the node's
// current position.
type Element struct {
	ID    string `json:"id"`
	NodeA string `json:"nodeA"`
	NodeB string `json:"nodeB"`
}

// References reports whether the element is attached to nodeID.
func (e *Element) References(nodeID string) bool {
	return e.NodeA == nodeID || e.NodeB == nodeID
}
