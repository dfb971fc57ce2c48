package model

import (
	"fmt"
)

// Snapshot is a value copy of the graph, safe to hand to renderers,
// serialize or compare.
type Snapshot struct {
	Version  uint64    `json:"version"`
	Nodes    []Node    `json:"nodes"`
	Elements []Element `json:"elements"`
}

// Snapshot copies the current state in insertion order.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{
		Version:  g.version,
		Nodes:    make([]Node, 0, len(g.nodeOrder)),
		Elements: make([]Element, 0, len(g.elementOrder)),
	}
	for _, id := range g.nodeOrder {
		snap.Nodes = append(snap.Nodes, *g.nodes[id])
	}
	for _, id := range g.elementOrder {
		snap.Elements = append(snap.Elements, *g.elements[id])
	}
	return snap
}

// Replace swaps the whole graph state for snap. The snapshot is validated
// first; on error the graph is left untouched. Subscribers are not notified;
// callers Publish when ready.
func (g *Graph) Replace(snap Snapshot) error {
	next := NewGraph()
	for i := range snap.Nodes {
		n := snap.Nodes[i]
		if err := next.InsertNode(&n); err != nil {
			return fmt.Errorf("replace: %w", err)
		}
	}
	for i := range snap.Elements {
		e := snap.Elements[i]
		if err := next.InsertElement(&e); err != nil {
			return fmt.Errorf("replace: %w", err)
		}
	}

	g.nodes = next.nodes
	g.elements = next.elements
	g.nodeOrder = next.nodeOrder
	g.elementOrder = next.elementOrder
	return nil
}

// Equal compares node and element sets by id and field values, ignoring
// version and order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Nodes) != len(o.Nodes) || len(s.Elements) != len(o.Elements) {
		return false
	}
	nodes := make(map[string]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.ID] = n
	}
	for _, n := range o.Nodes {
		if nodes[n.ID] != n {
			return false
		}
	}
	elements := make(map[string]Element, len(s.Elements))
	for _, e := range s.Elements {
		elements[e.ID] = e
	}
	for _, e := range o.Elements {
		if elements[e.ID] != e {
			return false
		}
	}
	return true
}
