package viewport

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/notify"
)

var (
	// ErrOutOfRange rejects a request whose target scale lies outside
	// [MinZoom, MaxZoom]. The viewport is left exactly as it was.
	ErrOutOfRange = errors.New("scale out of range")
	// ErrInvalidGeometry rejects non-finite values and non-positive sizes.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// Config bounds and paces zooming.
type Config struct {
	MinZoom        float64       `json:"minZoom" yaml:"min_zoom"`
	MaxZoom        float64       `json:"maxZoom" yaml:"max_zoom"`
	ZoomSpeed      float64       `json:"zoomSpeed" yaml:"zoom_speed"`
	ModifierFactor float64       `json:"modifierFactor" yaml:"modifier_factor"`
	ZoomDuration   time.Duration `json:"zoomDuration" yaml:"zoom_duration"`
	FitDuration    time.Duration `json:"fitDuration" yaml:"fit_duration"`
}

func DefaultConfig() Config {
	return Config{
		MinZoom:        0.002,
		MaxZoom:        1000,
		ZoomSpeed:      0.46,
		ModifierFactor: 0.3,
		ZoomDuration:   100 * time.Millisecond,
		FitDuration:    300 * time.Millisecond,
	}
}

// EventKind separates cheap per-frame updates from the one-shot update
// after the transform came to rest.
type EventKind string

const (
	Moved   EventKind = "moved"
	Settled EventKind = "settled"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	Transform Transform `json:"transform"`
}

// Option configures a Viewport.
type Option func(*Viewport)

// WithClock sets the clock used to timestamp the start of transitions.
func WithClock(now func() time.Time) Option {
	return func(v *Viewport) { v.now = now }
}

// Viewport is the transform state machine. At most one transition is in
// flight; starting another force-completes the current one first.
type Viewport struct {
	cfg           Config
	width, height float64
	t             Transform

	active  *transition
	panning bool

	now    func() time.Time
	events notify.Feed[Event]
}

// New creates a viewport of the given screen size at scale 1 with the world
// origin at its center.
func New(width, height float64, cfg Config, opts ...Option) (*Viewport, error) {
	if !validSize(width, height) {
		return nil, fmt.Errorf("new viewport %gx%g: %w", width, height, ErrInvalidGeometry)
	}
	if cfg.MinZoom <= 0 || cfg.MaxZoom < cfg.MinZoom {
		return nil, fmt.Errorf("zoom bounds [%g, %g]: %w", cfg.MinZoom, cfg.MaxZoom, ErrOutOfRange)
	}

	v := &Viewport{
		cfg:    cfg,
		width:  width,
		height: height,
		t:      Transform{Scale: 1, X: width / 2, Y: height / 2},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Viewport) Config() Config       { return v.cfg }
func (v *Viewport) Transform() Transform { return v.t }
func (v *Viewport) Scale() float64       { return v.t.Scale }
func (v *Viewport) Size() (w, h float64) { return v.width, v.height }
func (v *Viewport) Animating() bool      { return v.active != nil }

func (v *Viewport) ScreenToWorld(p geom.Point) geom.Point { return v.t.ScreenToWorld(p) }
func (v *Viewport) WorldToScreen(p geom.Point) geom.Point { return v.t.WorldToScreen(p) }

// WorldRect returns the world area currently visible.
func (v *Viewport) WorldRect() geom.Rect {
	return geom.Rect{
		X:      -v.t.X / v.t.Scale,
		Y:      -v.t.Y / v.t.Scale,
		Width:  v.width / v.t.Scale,
		Height: v.height / v.t.Scale,
	}
}

// Subscribe registers fn for Moved and Settled events.
func (v *Viewport) Subscribe(fn func(Event)) (cancel func()) {
	return v.events.Subscribe(fn)
}

// Pan moves the world by a screen-space delta. Call EndPan when the drag
// is released.
func (v *Viewport) Pan(dx, dy float64) error {
	if !geom.IsFinite(dx) || !geom.IsFinite(dy) {
		return fmt.Errorf("pan (%g, %g): %w", dx, dy, ErrInvalidGeometry)
	}
	v.Finish()

	v.t.X += dx
	v.t.Y += dy
	v.panning = true
	v.emit(Moved)
	return nil
}

// EndPan settles a pan started with Pan. It is a no-op otherwise.
func (v *Viewport) EndPan() {
	if !v.panning {
		return
	}
	v.panning = false
	v.emit(Settled)
}

// ZoomAtPointer zooms one wheel step around a screen point. A positive
// wheelDelta zooms out, a negative one zooms in; zero does nothing. With
// modifier held the step is scaled by ModifierFactor.
func (v *Viewport) ZoomAtPointer(pointer geom.Point, wheelDelta float64, modifier bool) error {
	if !pointer.IsFinite() || !geom.IsFinite(wheelDelta) {
		return fmt.Errorf("zoom at %v: %w", pointer, ErrInvalidGeometry)
	}
	if wheelDelta == 0 {
		return nil
	}
	v.Finish()

	old := v.t
	world := old.ScreenToWorld(pointer)

	speed := v.cfg.ZoomSpeed
	if modifier {
		speed *= v.cfg.ModifierFactor
	}
	newScale := old.Scale * (1 + speed)
	if wheelDelta > 0 {
		newScale = old.Scale / (1 + speed)
	}
	if err := v.checkScale(newScale); err != nil {
		return fmt.Errorf("zoom at %v: %w", pointer, err)
	}

	target := Transform{
		Scale: newScale,
		X:     pointer.X - world.X*newScale,
		Y:     pointer.Y - world.Y*newScale,
	}
	v.start(target, v.cfg.ZoomDuration, EaseOut)
	return nil
}

// FitToBounds scales and centers a world rectangle in the viewport. A
// duration of zero or less applies it immediately.
func (v *Viewport) FitToBounds(r geom.Rect, duration time.Duration) error {
	if !geom.IsFinite(r.X) || !geom.IsFinite(r.Y) || !validSize(r.Width, r.Height) {
		return fmt.Errorf("fit to %+v: %w", r, ErrInvalidGeometry)
	}
	v.Finish()

	newScale := min(v.width/r.Width, v.height/r.Height)
	if err := v.checkScale(newScale); err != nil {
		return fmt.Errorf("fit to %+v: %w", r, err)
	}

	c := r.Center()
	target := Transform{
		Scale: newScale,
		X:     v.width/2 - c.X*newScale,
		Y:     v.height/2 - c.Y*newScale,
	}
	v.start(target, duration, EaseInOut)
	return nil
}

// Resize changes the screen size keeping the world point at the center of
// the viewport in place. It always emits Settled.
func (v *Viewport) Resize(width, height float64) error {
	if !validSize(width, height) {
		return fmt.Errorf("resize to %gx%g: %w", width, height, ErrInvalidGeometry)
	}
	v.Finish()

	center := v.t.ScreenToWorld(geom.Point{X: v.width / 2, Y: v.height / 2})
	v.width, v.height = width, height
	v.t.X = width/2 - center.X*v.t.Scale
	v.t.Y = height/2 - center.Y*v.t.Scale

	v.emit(Settled)
	return nil
}

// SetMinZoom lowers or raises the minimum scale, zooming in around the
// viewport center when the current scale falls below it.
func (v *Viewport) SetMinZoom(minZoom float64) error {
	if !geom.IsFinite(minZoom) || minZoom <= 0 || minZoom > v.cfg.MaxZoom {
		return fmt.Errorf("min zoom %g: %w", minZoom, ErrOutOfRange)
	}
	v.cfg.MinZoom = minZoom
	if v.t.Scale < minZoom {
		v.Finish()
		v.scaleAroundCenter(minZoom)
	}
	return nil
}

// SetMaxZoom is the counterpart of SetMinZoom.
func (v *Viewport) SetMaxZoom(maxZoom float64) error {
	if !geom.IsFinite(maxZoom) || maxZoom <= 0 || maxZoom < v.cfg.MinZoom {
		return fmt.Errorf("max zoom %g: %w", maxZoom, ErrOutOfRange)
	}
	v.cfg.MaxZoom = maxZoom
	if v.t.Scale > maxZoom {
		v.Finish()
		v.scaleAroundCenter(maxZoom)
	}
	return nil
}

func (v *Viewport) SetZoomSpeed(speed float64) error {
	if !geom.IsFinite(speed) || speed <= 0 {
		return fmt.Errorf("zoom speed %g: %w", speed, ErrInvalidGeometry)
	}
	v.cfg.ZoomSpeed = speed
	return nil
}

func (v *Viewport) SetZoomDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("zoom duration %v: %w", d, ErrInvalidGeometry)
	}
	v.cfg.ZoomDuration = d
	return nil
}

// Update is a partial change to the zoom configuration. Nil fields are
// left as they are.
type Update struct {
	MinZoom        *float64 `json:"minZoom,omitempty"`
	MaxZoom        *float64 `json:"maxZoom,omitempty"`
	ZoomSpeed      *float64 `json:"zoomSpeed,omitempty"`
	ZoomDurationMS *int     `json:"zoomDurationMs,omitempty"`
}

// Configure applies u. Nothing changes unless the whole update is valid.
func (v *Viewport) Configure(u Update) error {
	minZoom, maxZoom := v.cfg.MinZoom, v.cfg.MaxZoom
	if u.MinZoom != nil {
		minZoom = *u.MinZoom
	}
	if u.MaxZoom != nil {
		maxZoom = *u.MaxZoom
	}
	if !geom.IsFinite(minZoom) || !geom.IsFinite(maxZoom) || minZoom <= 0 || maxZoom < minZoom {
		return fmt.Errorf("zoom bounds [%g, %g]: %w", minZoom, maxZoom, ErrOutOfRange)
	}
	if u.ZoomSpeed != nil && (!geom.IsFinite(*u.ZoomSpeed) || *u.ZoomSpeed <= 0) {
		return fmt.Errorf("zoom speed %g: %w", *u.ZoomSpeed, ErrInvalidGeometry)
	}
	if u.ZoomDurationMS != nil && *u.ZoomDurationMS < 0 {
		return fmt.Errorf("zoom duration %dms: %w", *u.ZoomDurationMS, ErrInvalidGeometry)
	}

	if u.ZoomSpeed != nil {
		if err := v.SetZoomSpeed(*u.ZoomSpeed); err != nil {
			return err
		}
	}
	if u.ZoomDurationMS != nil {
		if err := v.SetZoomDuration(time.Duration(*u.ZoomDurationMS) * time.Millisecond); err != nil {
			return err
		}
	}

	// Each setter checks against the other bound, so move the one that
	// keeps the pair ordered first.
	setMax := func() error { return v.SetMaxZoom(maxZoom) }
	setMin := func() error { return v.SetMinZoom(minZoom) }
	steps := []func() error{setMax, setMin}
	if maxZoom < v.cfg.MinZoom {
		steps = []func() error{setMin, setMax}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Tick advances the running transition to now. It emits Moved for an
// intermediate frame and Settled when the transition completes, and
// reports whether a transition is still running afterwards.
func (v *Viewport) Tick(now time.Time) bool {
	if v.active == nil {
		return false
	}
	t, done := v.active.at(now)
	v.t = t
	if done {
		v.active = nil
		v.emit(Settled)
		return false
	}
	v.emit(Moved)
	return true
}

// Finish jumps a running transition to its target and settles it.
func (v *Viewport) Finish() {
	if v.active == nil {
		return
	}
	v.t = v.active.to
	v.active = nil
	v.emit(Settled)
}

func (v *Viewport) start(target Transform, duration time.Duration, easing Easing) {
	if duration <= 0 {
		v.t = target
		v.emit(Settled)
		return
	}
	v.active = &transition{
		from:     v.t,
		to:       target,
		start:    v.now(),
		duration: duration,
		easing:   easing,
	}
}

func (v *Viewport) scaleAroundCenter(scale float64) {
	center := v.t.ScreenToWorld(geom.Point{X: v.width / 2, Y: v.height / 2})
	v.t = Transform{
		Scale: scale,
		X:     v.width/2 - center.X*scale,
		Y:     v.height/2 - center.Y*scale,
	}
	v.emit(Settled)
}

func (v *Viewport) checkScale(s float64) error {
	if !geom.IsFinite(s) || s <= 0 {
		return fmt.Errorf("scale %g: %w", s, ErrInvalidGeometry)
	}
	if s < v.cfg.MinZoom || s > v.cfg.MaxZoom {
		slog.Debug("target scale out of bounds", "scale", s, "min", v.cfg.MinZoom, "max", v.cfg.MaxZoom)
		return fmt.Errorf("scale %g not in [%g, %g]: %w", s, v.cfg.MinZoom, v.cfg.MaxZoom, ErrOutOfRange)
	}
	return nil
}

func (v *Viewport) emit(kind EventKind) {
	v.events.Send(Event{Kind: kind, Transform: v.t})
}

func validSize(w, h float64) bool {
	return geom.IsFinite(w) && geom.IsFinite(h) && w > 0 && h > 0
}
