package model

import (
	"github.com/eukleia/eukleia/internal/typeid"
)

// SampleSnapshot returns the built-in truss used for demos and debugging:
// four bottom chord nodes, three top nodes and eleven members.
func SampleSnapshot() Snapshot {
	coords := []struct {
		name int
		x, y float64
	}{
		{1, -6000, 0},
		{2, -2000, 0},
		{3, 2000, 0},
		{4, 6000, 0},
		{5, 4000, -3000},
		{6, 0, -3000},
		{7, -4000, -3000},
	}

	nodes := make([]Node, len(coords))
	for i, c := range coords {
		nodes[i] = Node{ID: typeid.NewNodeID(), Name: c.name, X: c.x, Y: c.y}
	}

	pairs := [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6},
		{6, 0}, {1, 6}, {1, 5}, {2, 5}, {2, 4},
	}
	elements := make([]Element, len(pairs))
	for i, p := range pairs {
		elements[i] = Element{
			ID:    typeid.NewElementID(),
			NodeA: nodes[p[0]].ID,
			NodeB: nodes[p[1]].ID,
		}
	}

	return Snapshot{Nodes: nodes, Elements: elements}
}
