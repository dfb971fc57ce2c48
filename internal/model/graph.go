// Package model owns the node/element store of a diagram. A Graph is an arena
// keyed by stable ids; the operations in package history are the only code
// that mutates it during an edit session.
package model

import (
	"fmt"
	"slices"

	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/notify"
)

// Graph stores nodes and elements in insertion order. It is not safe for
// concurrent use.
type Graph struct {
	nodes    map[string]*Node
	elements map[string]*Element

	nodeOrder    []string
	elementOrder []string

	version uint64
	changes notify.Feed[Snapshot]
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		elements: make(map[string]*Element),
	}
}

// Node returns the stored node instance for id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Element returns the stored element instance for id.
func (g *Graph) Element(id string) (*Element, bool) {
	e, ok := g.elements[id]
	return e, ok
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) HasElement(id string) bool {
	_, ok := g.elements[id]
	return ok
}

func (g *Graph) NodeCount() int    { return len(g.nodes) }
func (g *Graph) ElementCount() int { return len(g.elements) }

// Nodes returns the stored node instances in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Elements returns the stored element instances in insertion order.
func (g *Graph) Elements() []*Element {
	out := make([]*Element, 0, len(g.elementOrder))
	for _, id := range g.elementOrder {
		out = append(out, g.elements[id])
	}
	return out
}

// InsertNode adds n to the arena. The pointer itself is stored, so a later
// re-insert of the same pointer restores the same instance.
func (g *Graph) InsertNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("insert node %s: %w", n.ID, ErrDuplicate)
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return nil
}

// DeleteNode removes a node. It refuses while any element references it.
func (g *Graph) DeleteNode(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if refs := g.ReferencingElements(id); len(refs) > 0 {
		return nil, fmt.Errorf("node %d (%s) has %d connected elements: %w", n.Name, id, len(refs), ErrIntegrityViolation)
	}

	delete(g.nodes, id)
	g.nodeOrder = removeID(g.nodeOrder, id)
	return n, nil
}

// InsertElement adds e after checking both endpoints exist and differ.
func (g *Graph) InsertElement(e *Element) error {
	if _, ok := g.elements[e.ID]; ok {
		return fmt.Errorf("insert element %s: %w", e.ID, ErrDuplicate)
	}
	if e.NodeA == e.NodeB {
		return fmt.Errorf("element %s connects node %s to itself: %w", e.ID, e.NodeA, ErrIntegrityViolation)
	}
	for _, nodeID := range []string{e.NodeA, e.NodeB} {
		if _, ok := g.nodes[nodeID]; !ok {
			return fmt.Errorf("element %s endpoint %s: %w", e.ID, nodeID, ErrNotFound)
		}
	}

	g.elements[e.ID] = e
	g.elementOrder = append(g.elementOrder, e.ID)
	return nil
}

// DeleteElement removes an element and returns the removed instance.
func (g *Graph) DeleteElement(id string) (*Element, error) {
	e, ok := g.elements[id]
	if !ok {
		return nil, fmt.Errorf("element %s: %w", id, ErrNotFound)
	}
	delete(g.elements, id)
	g.elementOrder = removeID(g.elementOrder, id)
	return e, nil
}

// ReferencingElements returns the elements attached to nodeID.
func (g *Graph) ReferencingElements(nodeID string) []*Element {
	var refs []*Element
	for _, id := range g.elementOrder {
		if e := g.elements[id]; e.References(nodeID) {
			refs = append(refs, e)
		}
	}
	return refs
}

// NextNodeName returns 1 + the largest node name, or 1 for an empty graph.
func (g *Graph) NextNodeName() int {
	if len(g.nodes) == 0 {
		return 1
	}
	maxName := 0
	first := true
	for _, n := range g.nodes {
		if first || n.Name > maxName {
			maxName = n.Name
			first = false
		}
	}
	return maxName + 1
}

// Endpoints resolves an element's nodes through the arena.
func (g *Graph) Endpoints(e *Element) (a, b *Node, ok bool) {
	a, okA := g.nodes[e.NodeA]
	b, okB := g.nodes[e.NodeB]
	return a, b, okA && okB
}

// Segment returns the element as a geometry segment keyed by the element id.
func (g *Graph) Segment(e *Element) (geom.Segment, bool) {
	a, b, ok := g.Endpoints(e)
	if !ok {
		return geom.Segment{}, false
	}
	return geom.NewSegment(e.ID, geom.Pt(a.X, a.Y), geom.Pt(b.X, b.Y)), true
}

// Segments returns every element as a segment, in insertion order.
func (g *Graph) Segments() []geom.Segment {
	out := make([]geom.Segment, 0, len(g.elementOrder))
	for _, e := range g.Elements() {
		if s, ok := g.Segment(e); ok {
			out = append(out, s)
		}
	}
	return out
}

// NodeAt returns the first node positioned exactly at p.
func (g *Graph) NodeAt(p geom.Point) (*Node, bool) {
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.X == p.X && n.Y == p.Y {
			return n, true
		}
	}
	return nil, false
}

// Bounds returns the world-space bounding rect of all nodes.
func (g *Graph) Bounds() (geom.Rect, bool) {
	if len(g.nodes) == 0 {
		return geom.Rect{}, false
	}
	pts := make([]geom.Point, 0, len(g.nodes))
	for _, n := range g.nodes {
		pts = append(pts, geom.Pt(n.X, n.Y))
	}
	return geom.BoundsOf(pts...), true
}

// Subscribe registers fn to receive a full snapshot on every Publish.
func (g *Graph) Subscribe(fn func(Snapshot)) (cancel func()) {
	return g.changes.Subscribe(fn)
}

// Publish bumps the version and emits a snapshot to subscribers.
func (g *Graph) Publish() {
	g.version++
	g.changes.Send(g.Snapshot())
}

// Version counts publishes since creation.
func (g *Graph) Version() uint64 {
	return g.version
}

func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
