package snap

import (
	"log/slog"
	"math"
	"slices"

	"github.com/eukleia/eukleia/internal/geom"
)

// Result is a resolved point and the strategy that won. Distance is the
// world distance from the raw point; zero for KindNone.
type Result struct {
	Point    geom.Point `json:"point"`
	Kind     Kind       `json:"kind"`
	Distance float64    `json:"distance"`
}

// Engine holds the segment collection and configuration. It is a plain
// linear scan: diagrams are hand drawn and small.
type Engine struct {
	cfg      Config
	segments []geom.Segment

	start    geom.Point
	hasStart bool
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) SetConfig(cfg Config) { e.cfg = cfg }

// UpdateConfig edits the configuration in place.
func (e *Engine) UpdateConfig(fn func(*Config)) {
	fn(&e.cfg)
}

// AddSegment registers a segment as a snap target. Zero-length segments
// still contribute their endpoint and center.
func (e *Engine) AddSegment(s geom.Segment) {
	e.segments = append(e.segments, s)
}

// RemoveSegment drops every segment with the given id.
func (e *Engine) RemoveSegment(id string) {
	e.segments = slices.DeleteFunc(e.segments, func(s geom.Segment) bool { return s.ID == id })
}

// SetSegments replaces the whole collection.
func (e *Engine) SetSegments(segs []geom.Segment) {
	e.segments = slices.Clone(segs)
}

func (e *Engine) Segments() []geom.Segment {
	return slices.Clone(e.segments)
}

// SetStartPoint sets the anchor used by axis lock while a line is drawn.
func (e *Engine) SetStartPoint(p geom.Point) {
	e.start = p
	e.hasStart = true
}

func (e *Engine) ClearStartPoint() {
	e.hasStart = false
}

// StartPoint returns the axis-lock anchor, if set.
func (e *Engine) StartPoint() (geom.Point, bool) {
	return e.start, e.hasStart
}

// SnapPoint is Resolve without the diagnostics.
func (e *Engine) SnapPoint(raw geom.Point, scale float64, excludeID string) geom.Point {
	return e.Resolve(raw, scale, excludeID).Point
}

// Resolve runs the strategies in a fixed order: endpoint, axis lock,
// center, grid, orthogonal. A later strategy replaces the running choice
// only when strictly closer, so exact ties go to the earlier one.
func (e *Engine) Resolve(raw geom.Point, scale float64, excludeID string) Result {
	none := Result{Point: raw, Kind: KindNone}
	if !e.cfg.Enabled {
		return none
	}
	if !raw.IsFinite() || !geom.IsFinite(scale) || scale <= 0 {
		slog.Debug("snap skipped, invalid input", "x", raw.X, "y", raw.Y, "scale", scale)
		return none
	}

	best := none
	minDist := math.Inf(1)

	if e.cfg.EndPointSnap {
		if p, ok := e.nearestEndPoint(raw, excludeID); ok {
			if d := raw.Dist(p); d < e.cfg.EndPointSnapDistance/scale {
				best = Result{Point: p, Kind: KindEndPoint, Distance: d}
				minDist = d
			}
		}
	}

	if e.cfg.AxisLock && e.hasStart {
		p := axisLocked(raw, e.start)
		if d := raw.Dist(p); d < minDist {
			best = Result{Point: p, Kind: KindAxis, Distance: d}
			minDist = d
		}
	}

	if e.cfg.CenterSnap {
		if p, ok := e.nearestCenter(raw, excludeID); ok {
			if d := raw.Dist(p); d < e.cfg.CenterSnapDistance/scale && d < minDist {
				best = Result{Point: p, Kind: KindCenter, Distance: d}
				minDist = d
			}
		}
	}

	if e.cfg.GridSnap && e.cfg.GridSize > 0 && geom.IsFinite(e.cfg.GridSize) {
		p := toGrid(raw, e.cfg.GridSize)
		if d := raw.Dist(p); d < minDist {
			best = Result{Point: p, Kind: KindGrid, Distance: d}
			minDist = d
		}
	}

	if e.cfg.OrthogonalSnap {
		if p, ok := e.nearestProjection(raw, excludeID); ok {
			if d := raw.Dist(p); d < e.cfg.OrthogonalSnapDistance/scale && d < minDist {
				best = Result{Point: p, Kind: KindOrthogonal, Distance: d}
			}
		}
	}

	return best
}

func (e *Engine) nearestEndPoint(p geom.Point, excludeID string) (geom.Point, bool) {
	var nearest geom.Point
	found := false
	minDist := math.Inf(1)
	for _, s := range e.segments {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		for _, end := range [2]geom.Point{s.Start, s.End} {
			if d := p.Dist(end); d < minDist {
				minDist = d
				nearest = end
				found = true
			}
		}
	}
	return nearest, found
}

func (e *Engine) nearestCenter(p geom.Point, excludeID string) (geom.Point, bool) {
	var nearest geom.Point
	found := false
	minDist := math.Inf(1)
	for _, s := range e.segments {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		if d := p.Dist(s.Center); d < minDist {
			minDist = d
			nearest = s.Center
			found = true
		}
	}
	return nearest, found
}

// nearestProjection considers only projections landing within the segment.
func (e *Engine) nearestProjection(p geom.Point, excludeID string) (geom.Point, bool) {
	var nearest geom.Point
	found := false
	minDist := math.Inf(1)
	for _, s := range e.segments {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		proj, u, ok := s.Project(p)
		if !ok || u < 0 || u > 1 {
			continue
		}
		if d := p.Dist(proj); d < minDist {
			minDist = d
			nearest = proj
			found = true
		}
	}
	return nearest, found
}

// axisLocked keeps the axis with the larger deviation from start free.
func axisLocked(p, start geom.Point) geom.Point {
	dx := math.Abs(p.X - start.X)
	dy := math.Abs(p.Y - start.Y)
	if dx > dy {
		return geom.Point{X: p.X, Y: start.Y}
	}
	return geom.Point{X: start.X, Y: p.Y}
}

// toGrid rounds half up on each axis.
func toGrid(p geom.Point, size float64) geom.Point {
	return geom.Point{
		X: math.Floor(p.X/size+0.5) * size,
		Y: math.Floor(p.Y/size+0.5) * size,
	}
}
