// Package history implements reversible edits of a model.Graph: the four
// operation types, transactions grouping them, and the bounded undo/redo
// manager.
//
// Operations remember the exact entity instance they created or removed, so
// a do/undo/do cycle re-inserts the same *model.Node or *model.Element and
// later operations holding that id stay valid across redo.
//
// Nothing here is safe for concurrent use. The editor core is driven from a
// single goroutine; hosts with several goroutines serialize access.
package history

import (
	"fmt"

	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/typeid"
)

// Operation is an atomic, reversible mutation of a graph.
type Operation interface {
	ID() string
	Do(g *model.Graph) error
	Undo(g *model.Graph) error
	fmt.Stringer
}

// AddNodeOp creates a node. The node id is allocated up front so other
// operations in the same transaction can refer to it.
type AddNodeOp struct {
	id     string
	nodeID string
	x, y   float64
	name   *int

	created *model.Node
}

// AddNode returns an operation creating a node at (x, y) named
// 1 + the largest existing name at the time it first runs.
func AddNode(x, y float64) *AddNodeOp {
	return &AddNodeOp{id: typeid.NewOpID(), nodeID: typeid.NewNodeID(), x: x, y: y}
}

// AddNamedNode returns an operation creating a node with an explicit name.
func AddNamedNode(x, y float64, name int) *AddNodeOp {
	op := AddNode(x, y)
	op.name = &name
	return op
}

func (op *AddNodeOp) ID() string { return op.id }

// NodeID is the id the created node has (or will have).
func (op *AddNodeOp) NodeID() string { return op.nodeID }

// Node returns the created instance, nil before the first successful Do.
func (op *AddNodeOp) Node() *model.Node { return op.created }

func (op *AddNodeOp) Do(g *model.Graph) error {
	if op.created != nil {
		if err := g.InsertNode(op.created); err != nil {
			return fmt.Errorf("add node: %w", err)
		}
		return nil
	}

	name := g.NextNodeName()
	if op.name != nil {
		name = *op.name
	}
	n := &model.Node{ID: op.nodeID, Name: name, X: op.x, Y: op.y}
	if err := g.InsertNode(n); err != nil {
		return fmt.Errorf("add node: %w", err)
	}
	op.created = n
	return nil
}

// Undo removes the node together with any element still attached to it.
func (op *AddNodeOp) Undo(g *model.Graph) error {
	if op.created == nil {
		return fmt.Errorf("undo add node %s: %w", op.nodeID, model.ErrNoPriorEffect)
	}
	for _, e := range g.ReferencingElements(op.nodeID) {
		if _, err := g.DeleteElement(e.ID); err != nil {
			return fmt.Errorf("undo add node: %w", err)
		}
	}
	if _, err := g.DeleteNode(op.nodeID); err != nil {
		return fmt.Errorf("undo add node: %w", err)
	}
	return nil
}

func (op *AddNodeOp) String() string {
	return fmt.Sprintf("add node %s at (%g, %g)", op.nodeID, op.x, op.y)
}

// AddElementOp connects two existing nodes.
type AddElementOp struct {
	id           string
	elementID    string
	nodeA, nodeB string

	created *model.Element
}

// AddElement returns an operation connecting nodeA and nodeB. Both nodes
// are looked up in the graph state current at Do time.
func AddElement(nodeA, nodeB string) *AddElementOp {
	return &AddElementOp{id: typeid.NewOpID(), elementID: typeid.NewElementID(), nodeA: nodeA, nodeB: nodeB}
}

func (op *AddElementOp) ID() string { return op.id }

// ElementID is the id the created element has (or will have).
func (op *AddElementOp) ElementID() string { return op.elementID }

// Element returns the created instance, nil before the first successful Do.
func (op *AddElementOp) Element() *model.Element { return op.created }

func (op *AddElementOp) Do(g *model.Graph) error {
	if op.created != nil {
		if err := g.InsertElement(op.created); err != nil {
			return fmt.Errorf("add element: %w", err)
		}
		return nil
	}

	for _, nodeID := range []string{op.nodeA, op.nodeB} {
		if !g.HasNode(nodeID) {
			return fmt.Errorf("add element: node %s: %w", nodeID, model.ErrNotFound)
		}
	}

	e := &model.Element{ID: op.elementID, NodeA: op.nodeA, NodeB: op.nodeB}
	if err := g.InsertElement(e); err != nil {
		return fmt.Errorf("add element: %w", err)
	}
	op.created = e
	return nil
}

func (op *AddElementOp) Undo(g *model.Graph) error {
	if op.created == nil {
		return fmt.Errorf("undo add element %s: %w", op.elementID, model.ErrNoPriorEffect)
	}
	if _, err := g.DeleteElement(op.elementID); err != nil {
		return fmt.Errorf("undo add element: %w", err)
	}
	return nil
}

func (op *AddElementOp) String() string {
	return fmt.Sprintf("add element %s (%s-%s)", op.elementID, op.nodeA, op.nodeB)
}

// RemoveNodeOp deletes an unconnected node.
type RemoveNodeOp struct {
	id     string
	nodeID string

	removed *model.Node
}

func RemoveNode(nodeID string) *RemoveNodeOp {
	return &RemoveNodeOp{id: typeid.NewOpID(), nodeID: nodeID}
}

func (op *RemoveNodeOp) ID() string { return op.id }

// Do fails with model.ErrNotFound for an unknown id and with
// model.ErrIntegrityViolation while an element references the node.
func (op *RemoveNodeOp) Do(g *model.Graph) error {
	n, err := g.DeleteNode(op.nodeID)
	if err != nil {
		op.removed = nil
		return fmt.Errorf("remove node: %w", err)
	}
	op.removed = n
	return nil
}

func (op *RemoveNodeOp) Undo(g *model.Graph) error {
	if op.removed == nil {
		return fmt.Errorf("undo remove node %s: %w", op.nodeID, model.ErrNoPriorEffect)
	}
	if g.HasNode(op.removed.ID) {
		return nil
	}
	if err := g.InsertNode(op.removed); err != nil {
		return fmt.Errorf("undo remove node: %w", err)
	}
	return nil
}

func (op *RemoveNodeOp) String() string {
	return fmt.Sprintf("remove node %s", op.nodeID)
}

// RemoveElementOp deletes an element.
type RemoveElementOp struct {
	id        string
	elementID string

	removed *model.Element
}

func RemoveElement(elementID string) *RemoveElementOp {
	return &RemoveElementOp{id: typeid.NewOpID(), elementID: elementID}
}

func (op *RemoveElementOp) ID() string { return op.id }

func (op *RemoveElementOp) Do(g *model.Graph) error {
	e, err := g.DeleteElement(op.elementID)
	if err != nil {
		op.removed = nil
		return fmt.Errorf("remove element: %w", err)
	}
	op.removed = e
	return nil
}

func (op *RemoveElementOp) Undo(g *model.Graph) error {
	if op.removed == nil {
		return fmt.Errorf("undo remove element %s: %w", op.elementID, model.ErrNoPriorEffect)
	}
	if g.HasElement(op.removed.ID) {
		return nil
	}
	if err := g.InsertElement(op.removed); err != nil {
		return fmt.Errorf("undo remove element: %w", err)
	}
	return nil
}

func (op *RemoveElementOp) String() string {
	return fmt.Sprintf("remove element %s", op.elementID)
}
