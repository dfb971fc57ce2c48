// Package editor wires the graph, history, viewport, snapping and line
// drawing into one session object. Hosts (the HTTP server, the wasm bridge,
// the CLI) talk to an Editor and nothing else.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eukleia/eukleia/internal/draw"
	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/history"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/scene"
	"github.com/eukleia/eukleia/internal/snap"
	"github.com/eukleia/eukleia/internal/viewport"
)

// HitTolerance is the pick radius in screen pixels.
const HitTolerance = 4.0

// emptyFitSize is the world extent shown when there is nothing to fit.
const emptyFitSize = 1000.0

// Editor is a single editing session. It is not safe for concurrent use;
// hosts with several goroutines serialize calls.
type Editor struct {
	graph   *model.Graph
	history *history.Manager
	view    *viewport.Viewport
	snap    *snap.Engine
	drawer  *draw.Drawer

	scene     *scene.Scene
	dirty     bool
	selection []string

	cancels []func()
}

// New creates an editor with an empty model.
func New(s Settings, opts ...viewport.Option) (*Editor, error) {
	view, err := viewport.New(s.Width, s.Height, s.Viewport, opts...)
	if err != nil {
		return nil, fmt.Errorf("viewport: %w", err)
	}

	g := model.NewGraph()
	engine := snap.NewEngine(s.Snap)

	e := &Editor{
		graph:   g,
		history: history.NewManager(g, s.HistoryLimit),
		view:    view,
		snap:    engine,
		drawer:  draw.NewDrawer(view, engine),
		dirty:   true,
	}
	e.cancels = append(e.cancels, g.Subscribe(e.modelChanged))
	return e, nil
}

// Close detaches the editor's own subscriptions.
func (e *Editor) Close() {
	for _, cancel := range e.cancels {
		cancel()
	}
	e.cancels = nil
}

func (e *Editor) Graph() *model.Graph          { return e.graph }
func (e *Editor) History() *history.Manager    { return e.history }
func (e *Editor) Viewport() *viewport.Viewport { return e.view }
func (e *Editor) Snap() *snap.Engine           { return e.snap }
func (e *Editor) Drawer() *draw.Drawer         { return e.drawer }

// --- Model ---

func (e *Editor) Snapshot() model.Snapshot {
	return e.graph.Snapshot()
}

func (e *Editor) Commit(tx *history.Transaction) error {
	return e.history.Commit(tx)
}

func (e *Editor) Undo() (bool, error) {
	return e.history.Undo()
}

func (e *Editor) Redo() (bool, error) {
	return e.history.Redo()
}

// LoadSnapshot replaces the whole model and drops the history.
func (e *Editor) LoadSnapshot(snap model.Snapshot) error {
	e.drawer.Cancel()
	if err := e.graph.Replace(snap); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	e.selection = nil
	e.history.Reset()
	e.graph.Publish()
	slog.Info("model loaded", "nodes", e.graph.NodeCount(), "elements", e.graph.ElementCount())
	return nil
}

// LoadSample loads the demo truss and fits it into view.
func (e *Editor) LoadSample() error {
	if err := e.LoadSnapshot(model.SampleSnapshot()); err != nil {
		return err
	}
	return e.FitToModel(0)
}

// modelChanged keeps snap targets in step with the model, including after
// undo and redo.
func (e *Editor) modelChanged(model.Snapshot) {
	e.snap.SetSegments(e.graph.Segments())
	e.dirty = true
}

// --- Viewport ---

func (e *Editor) Zoom(pointer geom.Point, wheelDelta float64, modifier bool) error {
	return e.view.ZoomAtPointer(pointer, wheelDelta, modifier)
}

func (e *Editor) Pan(dx, dy float64) error {
	return e.view.Pan(dx, dy)
}

func (e *Editor) EndPan() {
	e.view.EndPan()
}

func (e *Editor) Resize(width, height float64) error {
	return e.view.Resize(width, height)
}

func (e *Editor) FitToBounds(r geom.Rect, duration time.Duration) error {
	return e.view.FitToBounds(r, duration)
}

// FitToModel frames every node with a small margin. An empty model frames
// a default area around the origin.
func (e *Editor) FitToModel(duration time.Duration) error {
	return e.view.FitToBounds(fitRect(e.graph), duration)
}

// Tick advances viewport animation. It reports whether more frames follow.
func (e *Editor) Tick(now time.Time) bool {
	return e.view.Tick(now)
}

func fitRect(g *model.Graph) geom.Rect {
	r, ok := g.Bounds()
	if !ok {
		return geom.Rect{X: -emptyFitSize / 2, Y: -emptyFitSize / 2, Width: emptyFitSize, Height: emptyFitSize}
	}

	size := max(r.Width, r.Height)
	if size == 0 {
		size = emptyFitSize
	}
	c := r.Center()
	w := max(r.Width, size/10)
	h := max(r.Height, size/10)
	r = geom.Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
	return r.Inflate(size * 0.05)
}

// --- Drawing ---

// Click feeds a click to the line drawer. When it finishes a line the line
// is committed to the model as one transaction.
func (e *Editor) Click(screen geom.Point) (draw.Outcome, error) {
	out, err := e.drawer.Click(screen)
	if err != nil {
		return out, err
	}
	if out.Finished {
		if err := e.commitLine(*out.Segment); err != nil {
			return out, err
		}
	}
	e.dirty = true
	return out, nil
}

// Move updates the drawing preview and returns the snapped world point.
func (e *Editor) Move(screen geom.Point) (geom.Point, error) {
	p, err := e.drawer.Move(screen)
	if err == nil && e.drawer.State() == draw.Drawing {
		e.dirty = true
	}
	return p, err
}

func (e *Editor) CancelDraw() {
	e.drawer.Cancel()
	e.dirty = true
}

// SnapAt resolves a screen point without drawing.
func (e *Editor) SnapAt(screen geom.Point) snap.Result {
	world := e.view.ScreenToWorld(screen)
	return e.snap.Resolve(world, e.view.Scale(), "")
}

// commitLine turns a finished segment into nodes and an element, reusing a
// node already sitting on either end.
func (e *Editor) commitLine(seg geom.Segment) error {
	tx := history.NewTransaction("Draw line")
	a := e.nodeAt(tx, seg.Start)
	b := e.nodeAt(tx, seg.End)
	if a == b {
		return fmt.Errorf("draw line: %w", draw.ErrZeroLength)
	}
	tx.AddElement(a, b)

	if err := e.history.Commit(tx); err != nil {
		return fmt.Errorf("draw line: %w", err)
	}
	return nil
}

func (e *Editor) nodeAt(tx *history.Transaction, p geom.Point) string {
	if n, ok := e.graph.NodeAt(p); ok {
		return n.ID
	}
	return tx.AddNode(p.X, p.Y)
}

// --- Selection and queries ---

// SelectRect selects every node and element touching a screen rectangle
// and returns their ids.
func (e *Editor) SelectRect(screen geom.Rect) []string {
	a := e.view.ScreenToWorld(geom.Pt(screen.X, screen.Y))
	b := e.view.ScreenToWorld(geom.Pt(screen.X+screen.Width, screen.Y+screen.Height))
	e.selection = scene.SelectRect(e.currentScene(), geom.RectFromCorners(a, b))
	e.dirty = true
	return e.Selection()
}

func (e *Editor) SetSelection(ids []string) {
	e.selection = append([]string(nil), ids...)
	e.dirty = true
}

func (e *Editor) Selection() []string {
	return append([]string(nil), e.selection...)
}

// SelectionBounds returns the world bounds of the selection.
func (e *Editor) SelectionBounds() (geom.Rect, bool) {
	return scene.SelectionBounds(e.currentScene(), e.selection)
}

// HitTest returns the topmost entity under a screen point.
func (e *Editor) HitTest(screen geom.Point) string {
	world := e.view.ScreenToWorld(screen)
	return scene.HitTest(e.currentScene(), world, HitTolerance/e.view.Scale())
}

// Render compiles draw commands for the visible part of the model plus the
// drawing preview.
func (e *Editor) Render() []scene.DrawCommand {
	t := e.view.Transform()
	visible := e.view.WorldRect()

	cmds := scene.Compile(e.currentScene(), t, visible, e.selection)
	if preview, ok := e.drawer.Preview(); ok {
		overlay := scene.Build(model.Snapshot{})
		overlay.Add(scene.PreviewItem(preview.Start, preview.End))
		cmds = append(cmds, scene.Compile(overlay, t, visible, nil)...)
	}
	e.dirty = false
	return cmds
}

// RenderJSON is Render serialized for hosts that pass strings.
func (e *Editor) RenderJSON() string {
	out, err := scene.CommandsToJSON(e.Render())
	if err != nil {
		slog.Error("encode draw commands", "error", err)
	}
	return out
}

// NeedsRender reports whether anything changed since the last Render.
func (e *Editor) NeedsRender() bool {
	return e.dirty || e.view.Animating()
}

func (e *Editor) currentScene() *scene.Scene {
	if e.scene == nil || e.scene.Version != e.graph.Version() {
		e.scene = scene.Build(e.graph.Snapshot())
	}
	return e.scene
}

// --- Notifications ---

func (e *Editor) SubscribeModel(fn func(model.Snapshot)) (cancel func()) {
	return e.graph.Subscribe(fn)
}

func (e *Editor) SubscribeHistory(fn func(history.State)) (cancel func()) {
	return e.history.Subscribe(fn)
}

func (e *Editor) SubscribeViewport(fn func(viewport.Event)) (cancel func()) {
	return e.view.Subscribe(fn)
}

// IsRejected reports errors that leave the editor unchanged and are safe to
// show to the user as a failed action.
func IsRejected(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrIntegrityViolation) ||
		errors.Is(err, viewport.ErrOutOfRange) ||
		errors.Is(err, viewport.ErrInvalidGeometry) ||
		errors.Is(err, draw.ErrZeroLength) ||
		errors.Is(err, draw.ErrInvalidPoint)
}
