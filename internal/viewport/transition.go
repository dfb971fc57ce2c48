package viewport

import "time"

// Easing shapes the interpolation factor of a transition.
type Easing int

const (
	EaseOut Easing = iota
	EaseInOut
)

// apply maps t in [0, 1] to the eased factor.
func (e Easing) apply(t float64) float64 {
	switch e {
	case EaseOut:
		return t * (2 - t)

	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t

	default:
		return t
	}
}

// transition interpolates between two transforms over a fixed duration.
// It is driven by Viewport.Tick; it never runs on its own goroutine.
type transition struct {
	from, to Transform
	start    time.Time
	duration time.Duration
	easing   Easing
}

// at returns the transform at now and whether the transition is over.
func (tr *transition) at(now time.Time) (Transform, bool) {
	elapsed := now.Sub(tr.start)
	if tr.duration <= 0 || elapsed >= tr.duration {
		return tr.to, true
	}
	if elapsed < 0 {
		elapsed = 0
	}
	k := tr.easing.apply(float64(elapsed) / float64(tr.duration))
	return lerp(tr.from, tr.to, k), false
}
