//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/eukleia/eukleia/internal/editor"
	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/history"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/snap"
	"github.com/eukleia/eukleia/internal/viewport"
)

var ed *editor.Editor

func main() {
	var err error
	ed, err = editor.New(editor.DefaultSettings())
	if err != nil {
		js.Global().Get("console").Call("error", "eukleia: "+err.Error())
		return
	}

	// Create the editor API object
	api := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	api.Set("loadSnapshot", js.FuncOf(loadSnapshot))
	api.Set("loadSample", js.FuncOf(loadSample))
	api.Set("commit", js.FuncOf(commit))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("zoom", js.FuncOf(zoom))
	api.Set("pan", js.FuncOf(pan))
	api.Set("endPan", js.FuncOf(endPan))
	api.Set("resize", js.FuncOf(resize))
	api.Set("fitToModel", js.FuncOf(fitToModel))
	api.Set("click", js.FuncOf(click))
	api.Set("move", js.FuncOf(move))
	api.Set("cancelDraw", js.FuncOf(cancelDraw))
	api.Set("setSelection", js.FuncOf(setSelection))
	api.Set("selectRect", js.FuncOf(selectRect))
	api.Set("setSnapConfig", js.FuncOf(setSnapConfig))
	api.Set("setViewportConfig", js.FuncOf(setViewportConfig))
	api.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← editor) ---
	api.Set("render", js.FuncOf(render))
	api.Set("needsRender", js.FuncOf(needsRender))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("snapAt", js.FuncOf(snapAt))
	api.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	api.Set("getSelection", js.FuncOf(getSelection))
	api.Set("getSnapshot", js.FuncOf(getSnapshot))
	api.Set("getHistory", js.FuncOf(getHistory))
	api.Set("getViewport", js.FuncOf(getViewport))
	api.Set("getSnapConfig", js.FuncOf(getSnapConfig))

	// --- Notifications (callback receives a JSON string) ---
	api.Set("onModelChange", js.FuncOf(onModelChange))
	api.Set("onHistoryChange", js.FuncOf(onHistoryChange))
	api.Set("onViewportChange", js.FuncOf(onViewportChange))

	// Register on global scope
	js.Global().Set("eukleiaEditor", api)

	// Signal that WASM is ready
	js.Global().Set("eukleiaWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func result(err error) interface{} {
	if err != nil {
		return fail(err)
	}
	return ok()
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("null")
	}
	return js.ValueOf(string(data))
}

func point(args []js.Value) (geom.Point, bool) {
	if len(args) < 2 {
		return geom.Point{}, false
	}
	return geom.Pt(args[0].Float(), args[1].Float()), true
}

// --- Command Handlers ---

func loadSnapshot(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing snapshot JSON"})
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(args[0].String()), &snap); err != nil {
		return fail(err)
	}
	return result(ed.LoadSnapshot(snap))
}

func loadSample(this js.Value, args []js.Value) interface{} {
	return result(ed.LoadSample())
}

// commit takes a transaction spec as JSON and returns the ref bindings.
func commit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing transaction JSON"})
	}
	var spec editor.TxSpec
	if err := json.Unmarshal([]byte(args[0].String()), &spec); err != nil {
		return fail(err)
	}
	refs := make(map[string]string)
	tx, err := editor.BuildTransaction(spec, refs)
	if err != nil {
		return fail(err)
	}
	if err := ed.Commit(tx); err != nil {
		return fail(err)
	}
	bound := make(map[string]interface{}, len(refs))
	for k, v := range refs {
		bound[k] = v
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "id": tx.ID, "refs": bound})
}

func undo(this js.Value, args []js.Value) interface{} {
	applied, err := ed.Undo()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(applied)
}

func redo(this js.Value, args []js.Value) interface{} {
	applied, err := ed.Redo()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(applied)
}

func zoom(this js.Value, args []js.Value) interface{} {
	p, found := point(args)
	if !found || len(args) < 3 {
		return nil
	}
	modifier := len(args) > 3 && args[3].Truthy()
	return result(ed.Zoom(p, args[2].Float(), modifier))
}

func pan(this js.Value, args []js.Value) interface{} {
	d, found := point(args)
	if !found {
		return nil
	}
	return result(ed.Pan(d.X, d.Y))
}

func endPan(this js.Value, args []js.Value) interface{} {
	ed.EndPan()
	return nil
}

func resize(this js.Value, args []js.Value) interface{} {
	size, found := point(args)
	if !found {
		return nil
	}
	return result(ed.Resize(size.X, size.Y))
}

func fitToModel(this js.Value, args []js.Value) interface{} {
	d := ed.Viewport().Config().FitDuration
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		d = time.Duration(args[0].Float() * float64(time.Millisecond))
	}
	return result(ed.FitToModel(d))
}

func click(this js.Value, args []js.Value) interface{} {
	p, found := point(args)
	if !found {
		return nil
	}
	out, err := ed.Click(p)
	if err != nil {
		return fail(err)
	}
	return toJSON(out)
}

func move(this js.Value, args []js.Value) interface{} {
	p, found := point(args)
	if !found {
		return nil
	}
	snapped, err := ed.Move(p)
	if err != nil {
		return fail(err)
	}
	return toJSON(snapped)
}

func cancelDraw(this js.Value, args []js.Value) interface{} {
	ed.CancelDraw()
	return nil
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		ed.SetSelection(nil)
		return nil
	}

	arr := args[0]
	if arr.Type() != js.TypeObject {
		ed.SetSelection(nil)
		return nil
	}

	length := arr.Length()
	ids := make([]string, length)
	for i := 0; i < length; i++ {
		ids[i] = arr.Index(i).String()
	}
	ed.SetSelection(ids)
	return nil
}

func selectRect(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf("[]")
	}
	r := geom.Rect{X: args[0].Float(), Y: args[1].Float(), Width: args[2].Float(), Height: args[3].Float()}
	return toJSON(ed.SelectRect(r))
}

// setSnapConfig overlays a partial JSON config on the current one.
func setSnapConfig(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var err error
	ed.Snap().UpdateConfig(func(cfg *snap.Config) {
		err = json.Unmarshal([]byte(args[0].String()), cfg)
	})
	return result(err)
}

// setViewportConfig applies a partial JSON zoom config, e.g.
// {"zoomSpeed": 0.3, "zoomDurationMs": 150, "minZoom": 0.01}.
func setViewportConfig(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var u viewport.Update
	if err := json.Unmarshal([]byte(args[0].String()), &u); err != nil {
		return fail(err)
	}
	return result(ed.Viewport().Configure(u))
}

func tick(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.Tick(time.Now()))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.RenderJSON())
}

func needsRender(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.NeedsRender())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	p, found := point(args)
	if !found {
		return js.ValueOf("")
	}
	return js.ValueOf(ed.HitTest(p))
}

func snapAt(this js.Value, args []js.Value) interface{} {
	p, found := point(args)
	if !found {
		return js.ValueOf("null")
	}
	return toJSON(ed.SnapAt(p))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	r, found := ed.SelectionBounds()
	if !found {
		return js.ValueOf("null")
	}
	return toJSON(r)
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return toJSON(ed.Selection())
}

func getSnapshot(this js.Value, args []js.Value) interface{} {
	return toJSON(ed.Snapshot())
}

func getHistory(this js.Value, args []js.Value) interface{} {
	h := ed.History()
	return toJSON(map[string]any{
		"state": h.State(),
		"undo":  h.UndoNames(),
		"redo":  h.RedoNames(),
	})
}

func getViewport(this js.Value, args []js.Value) interface{} {
	v := ed.Viewport()
	w, h := v.Size()
	return toJSON(map[string]any{
		"transform": v.Transform(),
		"width":     w,
		"height":    h,
		"animating": v.Animating(),
		"config":    v.Config(),
	})
}

func getSnapConfig(this js.Value, args []js.Value) interface{} {
	return toJSON(ed.Snap().Config())
}

// --- Notifications ---

// The callbacks run synchronously inside the command that caused them. Each
// registration returns a function that removes the callback again.
func onModelChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cb := args[0]
	cancel := ed.SubscribeModel(func(snap model.Snapshot) {
		cb.Invoke(toJSON(snap))
	})
	return unsubscriber(cancel)
}

func onHistoryChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cb := args[0]
	cancel := ed.SubscribeHistory(func(state history.State) {
		cb.Invoke(toJSON(state))
	})
	return unsubscriber(cancel)
}

func onViewportChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cb := args[0]
	cancel := ed.SubscribeViewport(func(ev viewport.Event) {
		cb.Invoke(toJSON(ev))
	})
	return unsubscriber(cancel)
}

// unsubscriber exposes cancel to JS. Calling it more than once is a no-op.
func unsubscriber(cancel func()) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		cancel()
		return nil
	})
}
