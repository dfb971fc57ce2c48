// Package viewport owns the pan/zoom transform between screen pixels and
// world units, its animated transitions, and the two-tier change events
// renderers subscribe to.
package viewport

import "github.com/eukleia/eukleia/internal/geom"

// Transform maps world to screen as screen = world*Scale + (X, Y).
type Transform struct {
	Scale float64 `json:"scale"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (t Transform) ScreenToWorld(p geom.Point) geom.Point {
	return geom.Point{X: (p.X - t.X) / t.Scale, Y: (p.Y - t.Y) / t.Scale}
}

func (t Transform) WorldToScreen(p geom.Point) geom.Point {
	return geom.Point{X: p.X*t.Scale + t.X, Y: p.Y*t.Scale + t.Y}
}

// Matrix returns the world-to-screen matrix.
func (t Transform) Matrix() geom.Matrix2D {
	return geom.Translate(t.X, t.Y).Multiply(geom.Scale(t.Scale, t.Scale))
}

func lerp(a, b Transform, k float64) Transform {
	return Transform{
		Scale: a.Scale + (b.Scale-a.Scale)*k,
		X:     a.X + (b.X-a.X)*k,
		Y:     a.Y + (b.Y-a.Y)*k,
	}
}
