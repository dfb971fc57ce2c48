package scene

import (
	"math"

	"github.com/eukleia/eukleia/internal/geom"
)

// NodeRadius is the on-screen radius of a node glyph in pixels.
const NodeRadius = 4.0

// PointShape draws a model node.
type PointShape struct {
	id   string
	Name int
	At   geom.Point
}

func (p *PointShape) ID() string        { return p.id }
func (p *PointShape) Kind() string      { return "node" }
func (p *PointShape) Bounds() geom.Rect { return geom.Rect{X: p.At.X, Y: p.At.Y} }

func (p *PointShape) Dist(q geom.Point) float64 { return p.At.Dist(q) }

func (p *PointShape) Path(scale float64) []PathCommand {
	return []PathCommand{{"A", p.At.X, p.At.Y, NodeRadius / scale, 0.0, 2 * math.Pi}}
}

func (p *PointShape) Style(selected bool) Style {
	if selected {
		return Style{Fill: "#4fc1ff", Stroke: "#4fc1ff", StrokeWidth: 1}
	}
	return Style{Fill: "#ffffff", Stroke: "#ffffff", StrokeWidth: 1}
}

// LineShape draws a model element or any other straight line.
type LineShape struct {
	id         string
	Start, End geom.Point
}

func (l *LineShape) ID() string        { return l.id }
func (l *LineShape) Kind() string      { return "element" }
func (l *LineShape) Bounds() geom.Rect { return geom.BoundsOf(l.Start, l.End) }

func (l *LineShape) Dist(p geom.Point) float64 { return distToSegment(p, l.Start, l.End) }

func (l *LineShape) Path(float64) []PathCommand {
	return []PathCommand{{"M", l.Start.X, l.Start.Y}, {"L", l.End.X, l.End.Y}}
}

func (l *LineShape) Style(selected bool) Style {
	if selected {
		return Style{Stroke: "#4fc1ff", StrokeWidth: 3}
	}
	return Style{Stroke: "#f14c4c", StrokeWidth: 2}
}

// PreviewLine is the line shown while drawing.
type PreviewLine struct {
	Start, End geom.Point
}

func (p *PreviewLine) ID() string        { return "preview" }
func (p *PreviewLine) Kind() string      { return "preview" }
func (p *PreviewLine) Bounds() geom.Rect { return geom.BoundsOf(p.Start, p.End) }

func (p *PreviewLine) Dist(q geom.Point) float64 { return distToSegment(q, p.Start, p.End) }

func (p *PreviewLine) Path(float64) []PathCommand {
	return []PathCommand{{"M", p.Start.X, p.Start.Y}, {"L", p.End.X, p.End.Y}}
}

// PreviewItem wraps a preview line with the dashed style.
func PreviewItem(start, end geom.Point) Item {
	return NewItem(&PreviewLine{Start: start, End: end}, previewStyle{})
}

type previewStyle struct{}

func (previewStyle) Style(bool) Style {
	return Style{Stroke: "#ffffff", StrokeWidth: 2, Dash: []float64{5, 5}}
}
