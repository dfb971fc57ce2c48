// Package snap resolves raw pointer positions to snapped world points
// using the endpoints, centers and lines of committed segments and a grid.
//
// Distances in Config are screen pixels; they are divided by the current
// viewport scale before being compared with world distances.
package snap

// Config toggles the individual strategies and holds their thresholds.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	EndPointSnap         bool    `json:"endPointSnap" yaml:"end_point_snap"`
	EndPointSnapDistance float64 `json:"endPointSnapDistance" yaml:"end_point_snap_distance"`

	AxisLock bool `json:"axisLock" yaml:"axis_lock"`

	CenterSnap         bool    `json:"centerSnap" yaml:"center_snap"`
	CenterSnapDistance float64 `json:"centerSnapDistance" yaml:"center_snap_distance"`

	GridSnap bool    `json:"gridSnap" yaml:"grid_snap"`
	GridSize float64 `json:"gridSize" yaml:"grid_size"`

	OrthogonalSnap         bool    `json:"orthogonalSnap" yaml:"orthogonal_snap"`
	OrthogonalSnapDistance float64 `json:"orthogonalSnapDistance" yaml:"orthogonal_snap_distance"`
}

// DefaultConfig enables every strategy except axis lock.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		EndPointSnap:           true,
		EndPointSnapDistance:   10,
		AxisLock:               false,
		CenterSnap:             true,
		CenterSnapDistance:     10,
		GridSnap:               true,
		GridSize:               20,
		OrthogonalSnap:         true,
		OrthogonalSnapDistance: 10,
	}
}

// Kind names the strategy that produced a snapped point.
type Kind string

const (
	KindNone       Kind = "none"
	KindEndPoint   Kind = "endpoint"
	KindAxis       Kind = "axis"
	KindCenter     Kind = "center"
	KindGrid       Kind = "grid"
	KindOrthogonal Kind = "orthogonal"
)
