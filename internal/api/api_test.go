package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/eukleia/eukleia/internal/auth"
	"github.com/eukleia/eukleia/internal/editor"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/snap"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/store/sqlite"
	"github.com/eukleia/eukleia/internal/stream"
)

type testEnv struct {
	srv    *Server
	router *mux.Router
}

func newTestEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()
	settings := editor.DefaultSettings()
	settings.Width, settings.Height = 800, 600
	ed, err := editor.New(settings)
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	srv := NewServer(ed, st)
	t.Cleanup(func() {
		srv.Close()
		ed.Close()
	})

	r := mux.NewRouter()
	srv.Register(r.PathPrefix("/api").Subrouter())
	return &testEnv{srv: srv, router: r}
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestNodeAndElementLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/nodes", map[string]float64{"x": 0, "y": 0})
	expectStatus(t, rec, http.StatusCreated)
	a := decodeBody[model.Node](t, rec)

	rec = env.do(t, "POST", "/api/nodes", map[string]any{"x": 100, "y": 0, "name": 42})
	expectStatus(t, rec, http.StatusCreated)
	b := decodeBody[model.Node](t, rec)
	if b.Name != 42 {
		t.Fatalf("expected explicit name 42, got %d", b.Name)
	}

	rec = env.do(t, "POST", "/api/elements", map[string]string{"nodeA": a.ID, "nodeB": b.ID})
	expectStatus(t, rec, http.StatusCreated)
	el := decodeBody[model.Element](t, rec)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"element to itself", "POST", "/api/elements", map[string]string{"nodeA": a.ID, "nodeB": a.ID}, http.StatusConflict},
		{"element to unknown node", "POST", "/api/elements", map[string]string{"nodeA": a.ID, "nodeB": "node_missing"}, http.StatusNotFound},
		{"element without nodes", "POST", "/api/elements", map[string]string{}, http.StatusBadRequest},
		{"remove referenced node", "DELETE", "/api/nodes/" + a.ID, nil, http.StatusConflict},
		{"remove unknown node", "DELETE", "/api/nodes/node_missing", nil, http.StatusNotFound},
		{"remove unknown element", "DELETE", "/api/elements/el_missing", nil, http.StatusNotFound},
		{"malformed body", "POST", "/api/nodes", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, tt.method, tt.path, tt.body), tt.want)
		})
	}

	expectStatus(t, env.do(t, "DELETE", "/api/elements/"+el.ID, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, "DELETE", "/api/nodes/"+a.ID, nil), http.StatusNoContent)

	// Rejected requests leave no history entries.
	rec = env.do(t, "GET", "/api/history", nil)
	expectStatus(t, rec, http.StatusOK)
	hist := decodeBody[historyListing](t, rec)
	want := []string{"Add node", "Add node", "Add element", "Remove element", "Remove node"}
	if strings.Join(hist.Undo, ",") != strings.Join(want, ",") {
		t.Fatalf("undo names = %v, want %v", hist.Undo, want)
	}

	rec = env.do(t, "POST", "/api/undo", nil)
	expectStatus(t, rec, http.StatusOK)
	step := decodeBody[historyResponse](t, rec)
	if !step.Applied || step.State.UndoDepth != 4 || step.State.RedoDepth != 1 {
		t.Fatalf("unexpected undo response %+v", step)
	}

	rec = env.do(t, "GET", "/api/model", nil)
	snap := decodeBody[model.Snapshot](t, rec)
	if len(snap.Nodes) != 2 || len(snap.Elements) != 0 {
		t.Fatalf("expected node restored by undo, got %d nodes %d elements", len(snap.Nodes), len(snap.Elements))
	}
}

func TestCommitTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	spec := editor.TxSpec{
		Name: "Triangle",
		Ops: []editor.OpSpec{
			{Op: editor.OpAddNode, Ref: "a", X: 0, Y: 0},
			{Op: editor.OpAddNode, Ref: "b", X: 100, Y: 0},
			{Op: editor.OpAddNode, Ref: "c", X: 50, Y: -80},
			{Op: editor.OpAddElement, NodeA: "$a", NodeB: "$b"},
			{Op: editor.OpAddElement, NodeA: "$b", NodeB: "$c"},
			{Op: editor.OpAddElement, NodeA: "$c", NodeB: "$a"},
		},
	}
	rec := env.do(t, "POST", "/api/transactions", spec)
	expectStatus(t, rec, http.StatusCreated)
	resp := decodeBody[transactionResponse](t, rec)
	if resp.Name != "Triangle" || len(resp.Refs) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = env.do(t, "POST", "/api/transactions", editor.TxSpec{Ops: []editor.OpSpec{{Op: "explode"}}})
	expectStatus(t, rec, http.StatusBadRequest)

	partial := editor.TxSpec{
		Name: "Partial",
		Ops: []editor.OpSpec{
			{Op: editor.OpAddNode, X: 200, Y: 0},
			{Op: editor.OpRemoveNode, ID: "node_missing"},
		},
	}
	rec = env.do(t, "POST", "/api/transactions", partial)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	resp = decodeBody[transactionResponse](t, rec)
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one operation error, got %v", resp.Errors)
	}

	rec = env.do(t, "GET", "/api/history", nil)
	hist := decodeBody[historyListing](t, rec)
	if hist.State.UndoDepth != 2 {
		t.Fatalf("expected the partial transaction to be recorded, depth %d", hist.State.UndoDepth)
	}

	rec = env.do(t, "GET", "/api/model", nil)
	snap := decodeBody[model.Snapshot](t, rec)
	if len(snap.Nodes) != 4 || len(snap.Elements) != 3 {
		t.Fatalf("got %d nodes %d elements", len(snap.Nodes), len(snap.Elements))
	}
}

func TestViewportRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name      string
		path      string
		body      any
		want      int
		wantScale float64
	}{
		{"fit rect immediately", "/api/viewport/fit", map[string]any{"rect": map[string]float64{"x": 0, "y": 0, "width": 80, "height": 60}, "durationMs": 0}, http.StatusOK, 10},
		{"fit beyond max zoom", "/api/viewport/fit", map[string]any{"rect": map[string]float64{"x": 0, "y": 0, "width": 0.01, "height": 0.01}, "durationMs": 0}, http.StatusUnprocessableEntity, 0},
		{"fit degenerate rect", "/api/viewport/fit", map[string]any{"rect": map[string]float64{"x": 0, "y": 0, "width": 0, "height": 10}}, http.StatusBadRequest, 0},
		{"fit empty selection", "/api/viewport/fit", map[string]any{"selection": true}, http.StatusNotFound, 0},
		{"resize", "/api/viewport/resize", map[string]float64{"width": 1600, "height": 1200}, http.StatusOK, 10},
		{"resize to zero", "/api/viewport/resize", map[string]float64{"width": 0, "height": 1200}, http.StatusBadRequest, 0},
		{"pan", "/api/viewport/pan", map[string]any{"dx": 10, "dy": -5, "end": true}, http.StatusOK, 10},
		{"zero wheel delta", "/api/viewport/zoom", map[string]float64{"x": 10, "y": 10, "delta": 0}, http.StatusOK, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", tt.path, tt.body)
			expectStatus(t, rec, tt.want)
			if tt.want != http.StatusOK {
				return
			}
			resp := decodeBody[viewportResponse](t, rec)
			if resp.Transform.Scale != tt.wantScale {
				t.Fatalf("scale = %g, want %g", resp.Transform.Scale, tt.wantScale)
			}
		})
	}

	rec := env.do(t, "POST", "/api/viewport/zoom", map[string]float64{"x": 800, "y": 600, "delta": -1})
	expectStatus(t, rec, http.StatusOK)
	if resp := decodeBody[viewportResponse](t, rec); !resp.Animating {
		t.Fatal("expected zoom to start an animation")
	}

	env.srv.tick(time.Now().Add(time.Second))
	rec = env.do(t, "GET", "/api/viewport", nil)
	resp := decodeBody[viewportResponse](t, rec)
	if resp.Animating || resp.Width != 1600 {
		t.Fatalf("unexpected viewport after tick %+v", resp)
	}
	if want := 10 * (1 + 0.46); resp.Transform.Scale < want-1e-9 || resp.Transform.Scale > want+1e-9 {
		t.Fatalf("scale = %g, want %g", resp.Transform.Scale, want)
	}
}

func TestViewportConfigRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "PUT", "/api/viewport/config", map[string]any{"minZoom": 2000, "maxZoom": 5000, "zoomDurationMs": 0})
	expectStatus(t, rec, http.StatusOK)
	resp := decodeBody[viewportResponse](t, rec)
	if resp.Transform.Scale != 2000 {
		t.Fatalf("scale = %g, want clamp to 2000", resp.Transform.Scale)
	}
	if resp.Config.MinZoom != 2000 || resp.Config.MaxZoom != 5000 || resp.Config.ZoomDuration != 0 {
		t.Fatalf("unexpected config %+v", resp.Config)
	}

	expectStatus(t, env.do(t, "PUT", "/api/viewport/config", map[string]any{"minZoom": 5, "maxZoom": 3}), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, "PUT", "/api/viewport/config", map[string]any{"zoomSpeed": -1}), http.StatusBadRequest)

	rec = env.do(t, "GET", "/api/viewport", nil)
	if got := decodeBody[viewportResponse](t, rec).Config.MaxZoom; got != 5000 {
		t.Fatalf("rejected update changed max zoom to %g", got)
	}
}

func TestDrawAndSnapRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/snap", map[string]float64{"x": 427, "y": 333})
	expectStatus(t, rec, http.StatusOK)
	res := decodeBody[snap.Result](t, rec)
	if res.Kind != snap.KindGrid || res.Point.X != 20 || res.Point.Y != 40 {
		t.Fatalf("unexpected snap %+v", res)
	}

	expectStatus(t, env.do(t, "POST", "/api/draw/click", map[string]float64{"x": 401, "y": 299}), http.StatusOK)

	rec = env.do(t, "POST", "/api/draw/move", map[string]float64{"x": 455, "y": 302})
	expectStatus(t, rec, http.StatusOK)
	move := decodeBody[map[string]any](t, rec)
	if move["state"] != "drawing" {
		t.Fatalf("expected drawing state, got %v", move["state"])
	}

	expectStatus(t, env.do(t, "POST", "/api/draw/click", map[string]float64{"x": 401, "y": 301}), http.StatusUnprocessableEntity)

	rec = env.do(t, "POST", "/api/draw/click", map[string]float64{"x": 500, "y": 300})
	expectStatus(t, rec, http.StatusOK)
	out := decodeBody[map[string]any](t, rec)
	if out["finished"] != true || out["state"] != "idle" {
		t.Fatalf("unexpected outcome %v", out)
	}

	rec = env.do(t, "GET", "/api/model", nil)
	drawn := decodeBody[model.Snapshot](t, rec)
	if len(drawn.Nodes) != 2 || len(drawn.Elements) != 1 {
		t.Fatalf("got %d nodes %d elements", len(drawn.Nodes), len(drawn.Elements))
	}

	rec = env.do(t, "POST", "/api/hit", map[string]float64{"x": 450, "y": 301})
	hit := decodeBody[map[string]string](t, rec)
	if hit["id"] != drawn.Elements[0].ID {
		t.Fatalf("expected hit on the element, got %q", hit["id"])
	}

	rec = env.do(t, "POST", "/api/selection", map[string]float64{"x": 390, "y": 290, "width": 20, "height": 20})
	sel := decodeBody[map[string][]string](t, rec)
	if len(sel["selection"]) != 2 {
		t.Fatalf("expected node and element selected, got %v", sel["selection"])
	}

	rec = env.do(t, "GET", "/api/render", nil)
	expectStatus(t, rec, http.StatusOK)
	if cmds := decodeBody[[]map[string]any](t, rec); len(cmds) != 3 {
		t.Fatalf("expected 3 draw commands, got %d", len(cmds))
	}

	rec = env.do(t, "POST", "/api/draw/cancel", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestSnapConfigRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "PUT", "/api/snap/config", map[string]any{"gridSize": 50})
	expectStatus(t, rec, http.StatusOK)
	cfg := decodeBody[snap.Config](t, rec)
	if cfg.GridSize != 50 || !cfg.EndPointSnap {
		t.Fatalf("expected overlay on defaults, got %+v", cfg)
	}

	expectStatus(t, env.do(t, "PUT", "/api/snap/config", map[string]any{"gridSize": -1}), http.StatusBadRequest)
	expectStatus(t, env.do(t, "PUT", "/api/snap/config", map[string]any{"centerSnapDistance": -3}), http.StatusBadRequest)

	rec = env.do(t, "GET", "/api/snap/config", nil)
	if got := decodeBody[snap.Config](t, rec); got.GridSize != 50 {
		t.Fatalf("rejected update must not apply, grid size %g", got.GridSize)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	t.Run("without store", func(t *testing.T) {
		env := newTestEnv(t, nil)
		expectStatus(t, env.do(t, "POST", "/api/snapshots", nil), http.StatusServiceUnavailable)
		expectStatus(t, env.do(t, "POST", "/api/snapshots/latest/load", nil), http.StatusServiceUnavailable)
	})

	t.Run("save and load", func(t *testing.T) {
		env := newTestEnv(t, newSQLiteStore(t))

		expectStatus(t, env.do(t, "POST", "/api/snapshots/latest/load", nil), http.StatusNotFound)

		env.do(t, "POST", "/api/nodes", map[string]float64{"x": 1, "y": 2})
		rec := env.do(t, "POST", "/api/snapshots", map[string]string{"name": "one node"})
		expectStatus(t, rec, http.StatusCreated)
		saved := decodeBody[store.Summary](t, rec)
		if saved.Revision != 1 || saved.Nodes != 1 || saved.Name != "one node" {
			t.Fatalf("unexpected summary %+v", saved)
		}

		env.do(t, "POST", "/api/nodes", map[string]float64{"x": 3, "y": 4})

		rec = env.do(t, "POST", "/api/snapshots/latest/load", nil)
		expectStatus(t, rec, http.StatusOK)

		rec = env.do(t, "GET", "/api/model", nil)
		if snap := decodeBody[model.Snapshot](t, rec); len(snap.Nodes) != 1 {
			t.Fatalf("expected the saved model back, got %d nodes", len(snap.Nodes))
		}

		rec = env.do(t, "GET", "/api/history", nil)
		if hist := decodeBody[historyListing](t, rec); hist.State.CanUndo {
			t.Fatal("expected history cleared after load")
		}

		expectStatus(t, env.do(t, "POST", "/api/snapshots/"+saved.ID+"/load", nil), http.StatusOK)
		expectStatus(t, env.do(t, "POST", "/api/snapshots/snap_missing/load", nil), http.StatusNotFound)

		rec = env.do(t, "GET", "/api/snapshots", nil)
		if list := decodeBody[[]store.Summary](t, rec); len(list) != 1 {
			t.Fatalf("expected 1 snapshot listed, got %d", len(list))
		}
	})
}

func TestWebSocketStream(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.Run(ctx, 5*time.Millisecond)

	env.router.HandleFunc("/ws", env.srv.WebSocket(auth.NewService("", "secret"), nil))
	httpSrv := httptest.NewServer(env.router)
	defer httpSrv.Close()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, "ws"+strings.TrimPrefix(httpSrv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() stream.Message {
		t.Helper()
		_, data, err := conn.Read(dialCtx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		var msg stream.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != stream.TypeWelcome {
		t.Fatalf("expected welcome, got %s", msg.Type)
	}
	seen := map[string]bool{}
	for range 3 {
		seen[read().Type] = true
	}
	for _, typ := range []string{stream.TypeModelSnapshot, stream.TypeHistoryState, stream.TypeViewportSettled} {
		if !seen[typ] {
			t.Fatalf("expected replayed %s, got %v", typ, seen)
		}
	}

	env.do(t, "POST", "/api/nodes", map[string]float64{"x": 5, "y": 5})
	if msg := read(); msg.Type != stream.TypeModelSnapshot {
		t.Fatalf("expected model.snapshot after edit, got %s", msg.Type)
	}
	if msg := read(); msg.Type != stream.TypeHistoryState {
		t.Fatalf("expected history.state after edit, got %s", msg.Type)
	}

	req, _ := json.Marshal(stream.Message{Type: stream.TypePointerSnap, Payload: json.RawMessage(`{"x":427,"y":333}`)})
	if err := conn.Write(dialCtx, websocket.MessageText, req); err != nil {
		t.Fatalf("Write: %v", err)
	}
	reply := read()
	if reply.Type != stream.TypeSnapResult {
		t.Fatalf("expected snap.result, got %s", reply.Type)
	}
	var res snap.Result
	if err := json.Unmarshal(reply.Payload, &res); err != nil {
		t.Fatalf("decode snap result: %v", err)
	}
	if res.Point.X != 20 || res.Point.Y != 40 {
		t.Fatalf("unexpected snap point %+v", res.Point)
	}
}
