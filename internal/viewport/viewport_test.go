package viewport

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/eukleia/eukleia/internal/geom"
)

const eps = 1e-9

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestViewport(t *testing.T, cfg Config) (*Viewport, *fakeClock, *[]Event) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	v, err := New(800, 600, cfg, WithClock(clock.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var events []Event
	v.Subscribe(func(e Event) { events = append(events, e) })
	return v, clock, &events
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Abs(b))
}

func TestNewCentersOrigin(t *testing.T) {
	v, _, _ := newTestViewport(t, DefaultConfig())
	if got := v.WorldToScreen(geom.Pt(0, 0)); got != geom.Pt(400, 300) {
		t.Fatalf("expected origin at (400, 300), got %v", got)
	}

	if _, err := New(0, 600, DefaultConfig()); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestScreenWorldRoundTrip(t *testing.T) {
	tr := Transform{Scale: 2, X: 100, Y: 50}
	if got := tr.ScreenToWorld(geom.Pt(300, 250)); got != geom.Pt(100, 100) {
		t.Fatalf("ScreenToWorld = %v", got)
	}
	if got := tr.WorldToScreen(geom.Pt(100, 100)); got != geom.Pt(300, 250) {
		t.Fatalf("WorldToScreen = %v", got)
	}
	if got := tr.Matrix().Apply(geom.Pt(100, 100)); got != geom.Pt(300, 250) {
		t.Fatalf("Matrix().Apply = %v", got)
	}
}

func TestZoomAtPointerKeepsWorldPoint(t *testing.T) {
	tests := []struct {
		name     string
		pointer  geom.Point
		delta    float64
		modifier bool
		scale    float64
	}{
		{"in at center", geom.Pt(400, 300), -100, false, 1.46},
		{"out at corner", geom.Pt(10, 20), 100, false, 1 / 1.46},
		{"in with modifier", geom.Pt(650, 120), -3, true, 1.138},
		{"out with modifier", geom.Pt(123.5, 456.25), 3, true, 1 / 1.138},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, _ := newTestViewport(t, DefaultConfig())
			v.Pan(37, -12)
			v.EndPan()

			before := v.ScreenToWorld(tt.pointer)
			if err := v.ZoomAtPointer(tt.pointer, tt.delta, tt.modifier); err != nil {
				t.Fatalf("ZoomAtPointer: %v", err)
			}
			v.Finish()

			if !approx(v.Scale(), tt.scale) {
				t.Fatalf("expected scale %v, got %v", tt.scale, v.Scale())
			}
			after := v.ScreenToWorld(tt.pointer)
			if !after.ApproxEqual(before, 1e-9) {
				t.Fatalf("world point moved: before %v after %v", before, after)
			}
		})
	}
}

func TestZoomOutOfRangeRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxZoom = 1.2
	v, _, events := newTestViewport(t, cfg)
	before := v.Transform()

	err := v.ZoomAtPointer(geom.Pt(100, 100), -1, false)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if v.Transform() != before || v.Animating() {
		t.Fatal("expected viewport to be unchanged")
	}
	if len(*events) != 0 {
		t.Fatalf("expected no events, got %d", len(*events))
	}
}

func TestZoomNeverLeavesBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinZoom = 0.5
	cfg.MaxZoom = 4
	v, _, _ := newTestViewport(t, cfg)

	for i := 0; i < 20; i++ {
		v.ZoomAtPointer(geom.Pt(200, 200), -1, false)
		v.Finish()
		if s := v.Scale(); s < cfg.MinZoom || s > cfg.MaxZoom {
			t.Fatalf("scale %v outside bounds", s)
		}
	}
	for i := 0; i < 40; i++ {
		v.ZoomAtPointer(geom.Pt(200, 200), 1, true)
		v.Finish()
		if s := v.Scale(); s < cfg.MinZoom || s > cfg.MaxZoom {
			t.Fatalf("scale %v outside bounds", s)
		}
	}
}

func TestZoomTransitionFrames(t *testing.T) {
	v, clock, events := newTestViewport(t, DefaultConfig())

	if err := v.ZoomAtPointer(geom.Pt(400, 300), -1, false); err != nil {
		t.Fatalf("ZoomAtPointer: %v", err)
	}
	if !v.Animating() {
		t.Fatal("expected a running transition")
	}

	clock.t = clock.t.Add(50 * time.Millisecond)
	if !v.Tick(clock.t) {
		t.Fatal("expected transition to still run at half time")
	}
	// EaseOut at 0.5 is 0.75.
	if want := 1 + 0.46*0.75; !approx(v.Scale(), want) {
		t.Fatalf("expected scale %v mid-transition, got %v", want, v.Scale())
	}

	clock.t = clock.t.Add(50 * time.Millisecond)
	if v.Tick(clock.t) {
		t.Fatal("expected transition to be done")
	}
	if !approx(v.Scale(), 1.46) {
		t.Fatalf("expected final scale 1.46, got %v", v.Scale())
	}

	kinds := []EventKind{}
	for _, e := range *events {
		kinds = append(kinds, e.Kind)
	}
	if len(kinds) != 2 || kinds[0] != Moved || kinds[1] != Settled {
		t.Fatalf("expected [moved settled], got %v", kinds)
	}
	if v.Tick(clock.t) {
		t.Fatal("expected idle Tick to report false")
	}
}

func TestNewZoomForceCompletesPrevious(t *testing.T) {
	v, _, events := newTestViewport(t, DefaultConfig())

	v.ZoomAtPointer(geom.Pt(400, 300), -1, false)
	v.ZoomAtPointer(geom.Pt(400, 300), -1, false)

	if len(*events) != 1 || (*events)[0].Kind != Settled {
		t.Fatalf("expected the first zoom to settle, got %+v", *events)
	}
	if !approx((*events)[0].Transform.Scale, 1.46) {
		t.Fatalf("expected first zoom to settle at 1.46, got %v", (*events)[0].Transform.Scale)
	}

	v.Finish()
	if !approx(v.Scale(), 1.46*1.46) {
		t.Fatalf("expected compounded scale, got %v", v.Scale())
	}
}

func TestFitToBounds(t *testing.T) {
	v, _, events := newTestViewport(t, DefaultConfig())

	if err := v.FitToBounds(geom.Rect{X: 0, Y: 0, Width: 400, Height: 200}, 0); err != nil {
		t.Fatalf("FitToBounds: %v", err)
	}
	want := Transform{Scale: 2, X: 0, Y: 100}
	if v.Transform() != want {
		t.Fatalf("expected %+v, got %+v", want, v.Transform())
	}
	if len(*events) != 1 || (*events)[0].Kind != Settled {
		t.Fatalf("expected a single settled event, got %+v", *events)
	}

	if err := v.FitToBounds(geom.Rect{Width: 0, Height: 10}, 0); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
	if err := v.FitToBounds(geom.Rect{Width: 1e-9, Height: 1e-9}, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if v.Transform() != want {
		t.Fatal("expected rejected fits to leave the transform alone")
	}
}

func TestFitToBoundsAnimated(t *testing.T) {
	v, clock, _ := newTestViewport(t, DefaultConfig())

	v.FitToBounds(geom.Rect{X: -50, Y: -50, Width: 100, Height: 100}, 300*time.Millisecond)
	clock.t = clock.t.Add(150 * time.Millisecond)
	v.Tick(clock.t)
	// EaseInOut at 0.5 is 0.5: halfway between 1 and 6.
	if !approx(v.Scale(), 3.5) {
		t.Fatalf("expected scale 3.5 halfway, got %v", v.Scale())
	}
	clock.t = clock.t.Add(time.Second)
	v.Tick(clock.t)
	if !approx(v.Scale(), 6) {
		t.Fatalf("expected scale 6, got %v", v.Scale())
	}
}

func TestResizeKeepsCenter(t *testing.T) {
	v, _, events := newTestViewport(t, DefaultConfig())
	v.ZoomAtPointer(geom.Pt(100, 100), -1, false)
	v.Finish()
	*events = nil

	center := v.ScreenToWorld(geom.Pt(400, 300))
	if err := v.Resize(1000, 500); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := v.ScreenToWorld(geom.Pt(500, 250)); !got.ApproxEqual(center, 1e-9) {
		t.Fatalf("center moved from %v to %v", center, got)
	}
	if len(*events) != 1 || (*events)[0].Kind != Settled {
		t.Fatalf("expected a single settled event, got %+v", *events)
	}

	if err := v.Resize(-1, 10); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestPanEvents(t *testing.T) {
	v, _, events := newTestViewport(t, DefaultConfig())

	v.Pan(10, 5)
	v.Pan(-3, 1)
	v.EndPan()
	v.EndPan()

	if got := v.Transform(); got.X != 407 || got.Y != 306 {
		t.Fatalf("unexpected translation %+v", got)
	}
	kinds := []EventKind{}
	for _, e := range *events {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{Moved, Moved, Settled}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}

	if err := v.Pan(math.NaN(), 0); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestWorldRect(t *testing.T) {
	v, _, _ := newTestViewport(t, DefaultConfig())
	want := geom.Rect{X: -400, Y: -300, Width: 800, Height: 600}
	if got := v.WorldRect(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSetZoomBoundsClamp(t *testing.T) {
	v, _, _ := newTestViewport(t, DefaultConfig())

	if err := v.SetMinZoom(2); err != nil {
		t.Fatalf("SetMinZoom: %v", err)
	}
	if v.Scale() != 2 {
		t.Fatalf("expected scale clamped to 2, got %v", v.Scale())
	}
	if got := v.ScreenToWorld(geom.Pt(400, 300)); got != geom.Pt(0, 0) {
		t.Fatalf("expected center kept at origin, got %v", got)
	}

	if err := v.SetMaxZoom(1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for max below min, got %v", err)
	}
	if err := v.SetMinZoom(0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for zero min, got %v", err)
	}
}

func TestConfigure(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	ms := func(v int) *int { return &v }

	tests := []struct {
		name      string
		update    Update
		wantErr   error
		wantMin   float64
		wantMax   float64
		wantScale float64
	}{
		{"raise both bounds", Update{MinZoom: f(2000), MaxZoom: f(5000)}, nil, 2000, 5000, 2000},
		{"lower both bounds", Update{MinZoom: f(0.0001), MaxZoom: f(0.001)}, nil, 0.0001, 0.001, 0.001},
		{"max only", Update{MaxZoom: f(10)}, nil, 0.002, 10, 1},
		{"inverted bounds", Update{MinZoom: f(5), MaxZoom: f(3)}, ErrOutOfRange, 0.002, 1000, 1},
		{"zero min", Update{MinZoom: f(0)}, ErrOutOfRange, 0.002, 1000, 1},
		{"bad speed", Update{MaxZoom: f(10), ZoomSpeed: f(-1)}, ErrInvalidGeometry, 0.002, 1000, 1},
		{"bad duration", Update{MaxZoom: f(10), ZoomDurationMS: ms(-5)}, ErrInvalidGeometry, 0.002, 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, _ := newTestViewport(t, DefaultConfig())
			err := v.Configure(tt.update)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			cfg := v.Config()
			if cfg.MinZoom != tt.wantMin || cfg.MaxZoom != tt.wantMax {
				t.Fatalf("expected bounds [%v, %v], got [%v, %v]", tt.wantMin, tt.wantMax, cfg.MinZoom, cfg.MaxZoom)
			}
			if !approx(v.Scale(), tt.wantScale) {
				t.Fatalf("expected scale %v, got %v", tt.wantScale, v.Scale())
			}
		})
	}
}

func TestConfigureZoomPacing(t *testing.T) {
	v, _, events := newTestViewport(t, DefaultConfig())
	speed, duration := 1.0, 0
	if err := v.Configure(Update{ZoomSpeed: &speed, ZoomDurationMS: &duration}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := v.ZoomAtPointer(geom.Pt(400, 300), -1, false); err != nil {
		t.Fatalf("ZoomAtPointer: %v", err)
	}
	if v.Animating() {
		t.Fatal("expected zero duration to apply immediately")
	}
	if v.Scale() != 2 {
		t.Fatalf("expected scale 2 with speed 1, got %v", v.Scale())
	}
	if n := len(*events); n != 1 || (*events)[0].Kind != Settled {
		t.Fatalf("expected one settled event, got %+v", *events)
	}
}
