package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/eukleia/eukleia/internal/draw"
	"github.com/eukleia/eukleia/internal/editor"
	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/history"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/scene"
	"github.com/eukleia/eukleia/internal/snap"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/viewport"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNoStore    = errors.New("snapshot store not configured")
)

// --- Model ---

func (s *Server) GetModel(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	s.with(func(ed *editor.Editor) { snap = ed.Snapshot() })
	writeJSON(w, http.StatusOK, snap)
}

type transactionResponse struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Refs   map[string]string `json:"refs,omitempty"`
	Errors []string          `json:"errors,omitempty"`
}

// CommitTransaction applies a batch of operations as one undo step. When
// some operations fail the transaction is still recorded and the failures
// are listed with status 422.
func (s *Server) CommitTransaction(w http.ResponseWriter, r *http.Request) {
	var spec editor.TxSpec
	if !decode(w, r, &spec) {
		return
	}

	refs := make(map[string]string)
	tx, err := editor.BuildTransaction(spec, refs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	s.with(func(ed *editor.Editor) { err = ed.Commit(tx) })

	resp := transactionResponse{ID: tx.ID, Name: tx.Name, Refs: refs}
	if err != nil {
		slog.Warn("transaction partially failed", "tx", tx.ID, "name", tx.Name, "error", err)
		resp.Errors = joinedErrors(err)
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type addNodeRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name *int    `json:"name,omitempty"`
}

func (s *Server) AddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if !decode(w, r, &req) {
		return
	}
	if !geom.Pt(req.X, req.Y).IsFinite() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates must be finite"})
		return
	}

	tx := history.NewTransaction("Add node")
	var id string
	if req.Name != nil {
		id = tx.AddNamedNode(req.X, req.Y, *req.Name)
	} else {
		id = tx.AddNode(req.X, req.Y)
	}

	var (
		node model.Node
		err  error
	)
	s.with(func(ed *editor.Editor) {
		if err = ed.Commit(tx); err != nil {
			return
		}
		n, _ := ed.Graph().Node(id)
		node = *n
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// RemoveNode deletes a free node. The model is checked first so a
// rejected request leaves no history entry behind.
func (s *Server) RemoveNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var err error
	s.with(func(ed *editor.Editor) {
		g := ed.Graph()
		if !g.HasNode(id) {
			err = model.ErrNotFound
			return
		}
		if len(g.ReferencingElements(id)) > 0 {
			err = model.ErrIntegrityViolation
			return
		}
		tx := history.NewTransaction("Remove node")
		tx.RemoveNode(id)
		err = ed.Commit(tx)
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addElementRequest struct {
	NodeA string `json:"nodeA"`
	NodeB string `json:"nodeB"`
}

func (s *Server) AddElement(w http.ResponseWriter, r *http.Request) {
	var req addElementRequest
	if !decode(w, r, &req) {
		return
	}
	if req.NodeA == "" || req.NodeB == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nodeA and nodeB are required"})
		return
	}

	var (
		element model.Element
		err     error
	)
	s.with(func(ed *editor.Editor) {
		g := ed.Graph()
		if !g.HasNode(req.NodeA) || !g.HasNode(req.NodeB) {
			err = model.ErrNotFound
			return
		}
		if req.NodeA == req.NodeB {
			err = model.ErrIntegrityViolation
			return
		}
		tx := history.NewTransaction("Add element")
		id := tx.AddElement(req.NodeA, req.NodeB)
		if err = ed.Commit(tx); err != nil {
			return
		}
		e, _ := g.Element(id)
		element = *e
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, element)
}

func (s *Server) RemoveElement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var err error
	s.with(func(ed *editor.Editor) {
		if !ed.Graph().HasElement(id) {
			err = model.ErrNotFound
			return
		}
		tx := history.NewTransaction("Remove element")
		tx.RemoveElement(id)
		err = ed.Commit(tx)
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- History ---

type historyResponse struct {
	Applied bool          `json:"applied"`
	State   history.State `json:"state"`
	Errors  []string      `json:"errors,omitempty"`
}

func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*editor.Editor).Undo, "undo")
}

func (s *Server) Redo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*editor.Editor).Redo, "redo")
}

func (s *Server) step(w http.ResponseWriter, fn func(*editor.Editor) (bool, error), action string) {
	var resp historyResponse
	s.with(func(ed *editor.Editor) {
		applied, err := fn(ed)
		resp.Applied = applied
		resp.State = ed.History().State()
		if err != nil {
			slog.Warn(action+" reported operation errors", "error", err)
			resp.Errors = joinedErrors(err)
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

type historyListing struct {
	State history.State `json:"state"`
	Limit int           `json:"limit"`
	Undo  []string      `json:"undo"`
	Redo  []string      `json:"redo"`
}

func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	var resp historyListing
	s.with(func(ed *editor.Editor) {
		h := ed.History()
		resp = historyListing{State: h.State(), Limit: h.Limit(), Undo: h.UndoNames(), Redo: h.RedoNames()}
	})
	writeJSON(w, http.StatusOK, resp)
}

// --- Viewport ---

type viewportResponse struct {
	Transform viewport.Transform `json:"transform"`
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	World     geom.Rect          `json:"world"`
	Animating bool               `json:"animating"`
	Config    viewport.Config    `json:"config"`
}

func viewportState(ed *editor.Editor) viewportResponse {
	v := ed.Viewport()
	width, height := v.Size()
	return viewportResponse{
		Transform: v.Transform(),
		Width:     width,
		Height:    height,
		World:     v.WorldRect(),
		Animating: v.Animating(),
		Config:    v.Config(),
	}
}

func (s *Server) GetViewport(w http.ResponseWriter, r *http.Request) {
	var resp viewportResponse
	s.with(func(ed *editor.Editor) { resp = viewportState(ed) })
	writeJSON(w, http.StatusOK, resp)
}

type zoomRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Delta    float64 `json:"delta"`
	Modifier bool    `json:"modifier"`
}

func (s *Server) Zoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if !decode(w, r, &req) {
		return
	}
	s.viewportAction(w, func(ed *editor.Editor) error {
		return ed.Zoom(geom.Pt(req.X, req.Y), req.Delta, req.Modifier)
	})
}

type panRequest struct {
	DX  float64 `json:"dx"`
	DY  float64 `json:"dy"`
	End bool    `json:"end"`
}

// Pan moves the view by a screen delta. End marks the end of the gesture
// and emits the settled notification.
func (s *Server) Pan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if !decode(w, r, &req) {
		return
	}
	s.viewportAction(w, func(ed *editor.Editor) error {
		if req.DX != 0 || req.DY != 0 {
			if err := ed.Pan(req.DX, req.DY); err != nil {
				return err
			}
		}
		if req.End {
			ed.EndPan()
		}
		return nil
	})
}

type fitRequest struct {
	Rect       *geom.Rect `json:"rect,omitempty"`
	Selection  bool       `json:"selection,omitempty"`
	DurationMS *int       `json:"durationMs,omitempty"`
}

// Fit frames a world rectangle, the selection, or by default the whole
// model.
func (s *Server) Fit(w http.ResponseWriter, r *http.Request) {
	var req fitRequest
	if !decode(w, r, &req) {
		return
	}
	s.viewportAction(w, func(ed *editor.Editor) error {
		d := ed.Viewport().Config().FitDuration
		if req.DurationMS != nil {
			d = time.Duration(*req.DurationMS) * time.Millisecond
		}
		switch {
		case req.Rect != nil:
			return ed.FitToBounds(*req.Rect, d)
		case req.Selection:
			rect, ok := ed.SelectionBounds()
			if !ok {
				return model.ErrNotFound
			}
			return ed.FitToBounds(rect, d)
		default:
			return ed.FitToModel(d)
		}
	})
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) Resize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !decode(w, r, &req) {
		return
	}
	s.viewportAction(w, func(ed *editor.Editor) error {
		return ed.Resize(req.Width, req.Height)
	})
}

// ConfigureViewport changes zoom bounds and pacing. Omitted fields are kept.
func (s *Server) ConfigureViewport(w http.ResponseWriter, r *http.Request) {
	var req viewport.Update
	if !decode(w, r, &req) {
		return
	}
	s.viewportAction(w, func(ed *editor.Editor) error {
		return ed.Viewport().Configure(req)
	})
}

func (s *Server) viewportAction(w http.ResponseWriter, fn func(ed *editor.Editor) error) {
	var (
		resp viewportResponse
		err  error
	)
	s.with(func(ed *editor.Editor) {
		err = fn(ed)
		resp = viewportState(ed)
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Snapping ---

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p pointRequest) point() geom.Point { return geom.Pt(p.X, p.Y) }

func (s *Server) Snap(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.point().IsFinite() {
		handleServiceError(w, draw.ErrInvalidPoint)
		return
	}
	var res snap.Result
	s.with(func(ed *editor.Editor) { res = ed.SnapAt(req.point()) })
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) GetSnapConfig(w http.ResponseWriter, r *http.Request) {
	var cfg snap.Config
	s.with(func(ed *editor.Editor) { cfg = ed.Snap().Config() })
	writeJSON(w, http.StatusOK, cfg)
}

// PutSnapConfig overlays the request body on the current configuration.
func (s *Server) PutSnapConfig(w http.ResponseWriter, r *http.Request) {
	var cfg snap.Config
	s.with(func(ed *editor.Editor) { cfg = ed.Snap().Config() })
	if !decode(w, r, &cfg) {
		return
	}
	if err := validateSnapConfig(cfg); err != nil {
		handleServiceError(w, err)
		return
	}
	s.with(func(ed *editor.Editor) { ed.Snap().SetConfig(cfg) })
	writeJSON(w, http.StatusOK, cfg)
}

func validateSnapConfig(cfg snap.Config) error {
	for _, v := range []float64{cfg.EndPointSnapDistance, cfg.CenterSnapDistance, cfg.OrthogonalSnapDistance} {
		if !geom.IsFinite(v) || v < 0 {
			return errors.Join(ErrBadRequest, errors.New("snap distances must be finite and non-negative"))
		}
	}
	if cfg.GridSnap && (!geom.IsFinite(cfg.GridSize) || cfg.GridSize <= 0) {
		return errors.Join(ErrBadRequest, errors.New("grid size must be positive"))
	}
	return nil
}

// --- Drawing ---

func (s *Server) DrawClick(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		out draw.Outcome
		err error
	)
	s.with(func(ed *editor.Editor) { out, err = ed.Click(req.point()) })
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type moveResponse struct {
	Point geom.Point `json:"point"`
	State draw.State `json:"state"`
}

func (s *Server) DrawMove(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		resp moveResponse
		err  error
	)
	s.with(func(ed *editor.Editor) {
		resp.Point, err = ed.Move(req.point())
		resp.State = ed.Drawer().State()
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) DrawCancel(w http.ResponseWriter, r *http.Request) {
	var state draw.State
	s.with(func(ed *editor.Editor) {
		ed.CancelDraw()
		state = ed.Drawer().State()
	})
	writeJSON(w, http.StatusOK, map[string]draw.State{"state": state})
}

// --- Selection and rendering ---

// Select replaces the selection with everything inside a screen rectangle.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	var rect geom.Rect
	if !decode(w, r, &rect) {
		return
	}
	var ids []string
	s.with(func(ed *editor.Editor) { ids = ed.SelectRect(rect) })
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"selection": ids})
}

func (s *Server) Hit(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	var id string
	s.with(func(ed *editor.Editor) { id = ed.HitTest(req.point()) })
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	var cmds []scene.DrawCommand
	s.with(func(ed *editor.Editor) { cmds = ed.Render() })
	if cmds == nil {
		cmds = []scene.DrawCommand{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

// --- Snapshots ---

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		handleServiceError(w, ErrNoStore)
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var snap model.Snapshot
	s.with(func(ed *editor.Editor) { snap = ed.Snapshot() })

	rec, err := s.store.Save(r.Context(), req.Name, snap)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	slog.Info("snapshot saved", "id", rec.ID, "revision", rec.Revision, "nodes", len(snap.Nodes))
	writeJSON(w, http.StatusCreated, store.Summary{
		ID:        rec.ID,
		Revision:  rec.Revision,
		Name:      rec.Name,
		Nodes:     len(snap.Nodes),
		Elements:  len(snap.Elements),
		CreatedAt: rec.CreatedAt,
	})
}

func (s *Server) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		handleServiceError(w, ErrNoStore)
		return
	}
	list, err := s.store.List(r.Context(), 50)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// LoadSnapshot replaces the model with a stored snapshot. The id "latest"
// picks the newest one. History is cleared.
func (s *Server) LoadSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		handleServiceError(w, ErrNoStore)
		return
	}
	id := mux.Vars(r)["id"]

	var (
		rec *store.Record
		err error
	)
	if id == "latest" {
		rec, err = s.store.Latest(r.Context())
	} else {
		rec, err = s.store.Get(r.Context(), id)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	s.with(func(ed *editor.Editor) { err = ed.LoadSnapshot(rec.Snapshot) })
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func joinedErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrIntegrityViolation), errors.Is(err, model.ErrDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, editor.ErrInvalidOp),
		errors.Is(err, viewport.ErrInvalidGeometry),
		errors.Is(err, draw.ErrInvalidPoint):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, viewport.ErrOutOfRange), errors.Is(err, draw.ErrZeroLength):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNoStore):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
