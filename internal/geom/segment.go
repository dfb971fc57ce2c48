package geom

import "math"

// Segment is a finished line with its derived fields precomputed, the shape
// the snap engine scans.
type Segment struct {
	ID     string  `json:"id"`
	Start  Point   `json:"start"`
	End    Point   `json:"end"`
	Center Point   `json:"center"`
	Length float64 `json:"length"`
	Angle  float64 `json:"angle"` // radians, atan2(dy, dx)
}

// NewSegment builds a segment and derives center, length and angle.
func NewSegment(id string, start, end Point) Segment {
	d := end.Sub(start)
	return Segment{
		ID:     id,
		Start:  start,
		End:    end,
		Center: Point{X: (start.X + end.X) / 2, Y: (start.Y + end.Y) / 2},
		Length: math.Hypot(d.X, d.Y),
		Angle:  math.Atan2(d.Y, d.X),
	}
}

// IsDegenerate reports a zero-length segment.
func (s Segment) IsDegenerate() bool {
	return s.Start == s.End
}

// Project returns the perpendicular projection of p onto the infinite line
// through the segment and the parametric position u of that projection
// (0 at Start, 1 at End). ok is false for zero-length segments.
func (s Segment) Project(p Point) (proj Point, u float64, ok bool) {
	dx := s.End.X - s.Start.X
	dy := s.End.Y - s.Start.Y
	magSq := dx*dx + dy*dy
	if magSq == 0 {
		return Point{}, 0, false
	}

	u = ((p.X-s.Start.X)*dx + (p.Y-s.Start.Y)*dy) / magSq
	return Point{X: s.Start.X + u*dx, Y: s.Start.Y + u*dy}, u, true
}

// Bounds returns the axis-aligned box spanned by the segment.
func (s Segment) Bounds() Rect {
	return BoundsOf(s.Start, s.End)
}
