package scene

import (
	"encoding/json"

	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/viewport"
)

// DrawCommand represents a single drawing operation for the renderer.
// The renderer receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "path"
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation
	Kind        string        `json:"kind,omitempty"`        // node, element, preview
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] world to screen
	Path        []PathCommand `json:"path,omitempty"`        // World coordinates
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // World units
	Dash        []float64     `json:"dash,omitempty"`        // World units
}

// Compile generates a draw command buffer in painter's order. Items whose
// bounds miss the visible world rect are culled.
func Compile(s *Scene, t viewport.Transform, visible geom.Rect, selection []string) []DrawCommand {
	if s == nil || t.Scale <= 0 {
		return nil
	}

	selected := make(map[string]bool, len(selection))
	for _, id := range selection {
		selected[id] = true
	}

	// Glyphs reach past their bounds by up to NodeRadius pixels.
	visible = visible.Inflate(NodeRadius / t.Scale)
	matrix := t.Matrix().ToSlice()

	var commands []DrawCommand
	for _, it := range s.Items {
		if !it.Bounds().Intersects(visible) {
			continue
		}
		style := it.StyleFor(selected[it.ID()])
		cmd := DrawCommand{
			Op:          "path",
			ObjectID:    it.ID(),
			Kind:        it.Kind(),
			Transform:   matrix,
			Path:        it.Path(t.Scale),
			Fill:        style.Fill,
			Stroke:      style.Stroke,
			StrokeWidth: style.StrokeWidth / t.Scale,
		}
		for _, d := range style.Dash {
			cmd.Dash = append(cmd.Dash, d/t.Scale)
		}
		commands = append(commands, cmd)
	}
	return commands
}

// CommandsToJSON serializes draw commands to JSON.
func CommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTest returns the id of the topmost item within tolerance world units
// of p, or the empty string.
func HitTest(s *Scene, p geom.Point, tolerance float64) string {
	if s == nil {
		return ""
	}
	for i := len(s.Items) - 1; i >= 0; i-- {
		it := s.Items[i]
		if it.Kind() == "preview" {
			continue
		}
		if !it.Bounds().Inflate(tolerance).Contains(p) {
			continue
		}
		if it.Dist(p) <= tolerance {
			return it.ID()
		}
	}
	return ""
}

// SelectRect returns the ids of items whose bounds touch r, in painter's
// order.
func SelectRect(s *Scene, r geom.Rect) []string {
	if s == nil {
		return nil
	}
	var ids []string
	for _, it := range s.Items {
		if it.Kind() == "preview" {
			continue
		}
		if it.Bounds().Intersects(r) {
			ids = append(ids, it.ID())
		}
	}
	return ids
}

// SelectionBounds returns the combined bounds of the given ids. ok is false
// when none of them is in the scene.
func SelectionBounds(s *Scene, ids []string) (geom.Rect, bool) {
	if s == nil {
		return geom.Rect{}, false
	}
	var corners []geom.Point
	for _, id := range ids {
		it, ok := s.Item(id)
		if !ok {
			continue
		}
		b := it.Bounds()
		corners = append(corners, geom.Pt(b.X, b.Y), geom.Pt(b.X+b.Width, b.Y+b.Height))
	}
	if len(corners) == 0 {
		return geom.Rect{}, false
	}
	return geom.BoundsOf(corners...), true
}

func distToSegment(p, a, b geom.Point) float64 {
	seg := geom.NewSegment("", a, b)
	proj, u, ok := seg.Project(p)
	switch {
	case !ok || u <= 0:
		return p.Dist(a)
	case u >= 1:
		return p.Dist(b)
	default:
		return p.Dist(proj)
	}
}
