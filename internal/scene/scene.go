// Package scene turns model snapshots into render-ready draw commands and
// answers hit and selection queries against them.
package scene

import (
	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/model"
)

// PathCommand is a single path segment.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["A", cx, cy, r, start, end].
type PathCommand []any

// Drawable is anything the scene can place and hit test.
type Drawable interface {
	ID() string
	Kind() string
	Bounds() geom.Rect
	// Dist is the world distance from p to the outline.
	Dist(p geom.Point) float64
	// Path returns the outline at the given scale, so glyph sizes can stay
	// constant in screen pixels.
	Path(scale float64) []PathCommand
}

// Stylable is the optional capability of choosing a style, for example to
// highlight a selection.
type Stylable interface {
	Style(selected bool) Style
}

// Style is expressed in screen pixels.
type Style struct {
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Dash        []float64 `json:"dash,omitempty"`
}

// DefaultStyle is used for items without the Stylable capability.
var DefaultStyle = Style{Stroke: "#ffffff", StrokeWidth: 1}

// Item pairs a Drawable with its style capability. The capability is
// decided when the item is built, never looked up while compiling.
type Item struct {
	Drawable
	style Stylable
}

func NewItem(d Drawable, s Stylable) Item {
	return Item{Drawable: d, style: s}
}

// StyleFor resolves the item's style.
func (it Item) StyleFor(selected bool) Style {
	if it.style == nil {
		return DefaultStyle
	}
	return it.style.Style(selected)
}

// Scene is the retained, render-ready state of one model snapshot.
// Items are in painter's order: elements first, nodes on top.
type Scene struct {
	Version uint64
	Items   []Item
	byID    map[string]int
}

// Build creates a scene from a snapshot. Elements whose nodes are missing
// are skipped.
func Build(snap model.Snapshot) *Scene {
	s := &Scene{
		Version: snap.Version,
		Items:   make([]Item, 0, len(snap.Nodes)+len(snap.Elements)),
		byID:    make(map[string]int, len(snap.Nodes)+len(snap.Elements)),
	}

	nodes := make(map[string]model.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes[n.ID] = n
	}

	for _, e := range snap.Elements {
		a, okA := nodes[e.NodeA]
		b, okB := nodes[e.NodeB]
		if !okA || !okB {
			continue
		}
		line := &LineShape{id: e.ID, Start: geom.Pt(a.X, a.Y), End: geom.Pt(b.X, b.Y)}
		s.add(NewItem(line, line))
	}
	for _, n := range snap.Nodes {
		point := &PointShape{id: n.ID, Name: n.Name, At: geom.Pt(n.X, n.Y)}
		s.add(NewItem(point, point))
	}
	return s
}

// Add appends an item on top of the scene, e.g. a drawing preview.
func (s *Scene) Add(it Item) {
	s.add(it)
}

// Item looks up an item by id.
func (s *Scene) Item(id string) (Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Item{}, false
	}
	return s.Items[i], true
}

func (s *Scene) Len() int {
	return len(s.Items)
}

func (s *Scene) add(it Item) {
	s.byID[it.ID()] = len(s.Items)
	s.Items = append(s.Items, it)
}
