// Package draw turns pointer input into lines: the first click anchors a
// snapped start point, moves update a preview, the second click finishes.
package draw

import (
	"errors"
	"fmt"

	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/typeid"
)

var (
	// ErrZeroLength rejects finishing a line on its own start point.
	ErrZeroLength = errors.New("zero-length line")
	// ErrInvalidPoint rejects non-finite pointer positions.
	ErrInvalidPoint = errors.New("invalid pointer position")
)

// Transformer converts screen input to world coordinates.
type Transformer interface {
	ScreenToWorld(p geom.Point) geom.Point
	Scale() float64
}

// Snapper resolves points and collects finished segments.
type Snapper interface {
	SnapPoint(raw geom.Point, scale float64, excludeID string) geom.Point
	SetStartPoint(p geom.Point)
	ClearStartPoint()
	AddSegment(s geom.Segment)
}

type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome describes what a click did. Segment is set only when the click
// finished a line.
type Outcome struct {
	State    State         `json:"state"`
	Point    geom.Point    `json:"point"`
	Finished bool          `json:"finished"`
	Segment  *geom.Segment `json:"segment,omitempty"`
}

// Drawer is the two-state line drawing machine.
type Drawer struct {
	view Transformer
	snap Snapper

	state   State
	start   geom.Point
	current geom.Point
}

func NewDrawer(view Transformer, snap Snapper) *Drawer {
	return &Drawer{view: view, snap: snap}
}

func (d *Drawer) State() State { return d.state }

// Click starts a line when idle and finishes it when drawing. A finish on
// the start point fails with ErrZeroLength and keeps drawing.
func (d *Drawer) Click(screen geom.Point) (Outcome, error) {
	p, err := d.resolve(screen)
	if err != nil {
		return Outcome{State: d.state}, err
	}

	if d.state == Idle {
		d.state = Drawing
		d.start = p
		d.current = p
		d.snap.SetStartPoint(p)
		return Outcome{State: d.state, Point: p}, nil
	}

	seg := geom.NewSegment(typeid.NewSegmentID(), d.start, p)
	if seg.IsDegenerate() {
		d.current = p
		return Outcome{State: d.state, Point: p}, fmt.Errorf("finish at %v: %w", p, ErrZeroLength)
	}

	d.snap.AddSegment(seg)
	d.reset()
	return Outcome{State: d.state, Point: p, Finished: true, Segment: &seg}, nil
}

// Move re-snaps the pointer and updates the preview end. It does nothing
// while idle.
func (d *Drawer) Move(screen geom.Point) (geom.Point, error) {
	p, err := d.resolve(screen)
	if err != nil {
		return geom.Point{}, err
	}
	if d.state == Drawing {
		d.current = p
	}
	return p, nil
}

// Preview returns the in-progress line.
func (d *Drawer) Preview() (geom.Segment, bool) {
	if d.state != Drawing {
		return geom.Segment{}, false
	}
	return geom.NewSegment("", d.start, d.current), true
}

// Cancel drops the preview. Safe to call at any time.
func (d *Drawer) Cancel() {
	if d.state == Idle {
		return
	}
	d.reset()
}

func (d *Drawer) resolve(screen geom.Point) (geom.Point, error) {
	if !screen.IsFinite() {
		return geom.Point{}, fmt.Errorf("pointer %v: %w", screen, ErrInvalidPoint)
	}
	world := d.view.ScreenToWorld(screen)
	if !world.IsFinite() {
		return geom.Point{}, fmt.Errorf("pointer %v: %w", screen, ErrInvalidPoint)
	}
	return d.snap.SnapPoint(world, d.view.Scale(), ""), nil
}

func (d *Drawer) reset() {
	d.state = Idle
	d.start = geom.Point{}
	d.current = geom.Point{}
	d.snap.ClearStartPoint()
}
