// Package api exposes an editor session over HTTP and streams its
// notifications to websocket renderers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/eukleia/eukleia/internal/auth"
	"github.com/eukleia/eukleia/internal/editor"
	"github.com/eukleia/eukleia/internal/geom"
	"github.com/eukleia/eukleia/internal/history"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/stream"
	"github.com/eukleia/eukleia/internal/viewport"
)

// Server owns one editor session. Every access to the editor goes through
// mu, so HTTP handlers, websocket requests and the animation ticker never
// interleave.
type Server struct {
	mu     sync.Mutex
	editor *editor.Editor
	store  store.Store
	hub    *stream.Hub

	cancels []func()
}

// NewServer wraps ed. st may be nil, in which case the snapshot routes
// answer 503.
func NewServer(ed *editor.Editor, st store.Store) *Server {
	s := &Server{editor: ed, store: st}
	s.hub = stream.NewHub(s.handleStream)

	s.cancels = append(s.cancels,
		ed.SubscribeModel(func(snap model.Snapshot) {
			s.hub.Broadcast(stream.TypeModelSnapshot, snap)
		}),
		ed.SubscribeHistory(func(state history.State) {
			s.hub.Broadcast(stream.TypeHistoryState, state)
		}),
		ed.SubscribeViewport(func(ev viewport.Event) {
			msgType := stream.TypeViewportMoved
			if ev.Kind == viewport.Settled {
				msgType = stream.TypeViewportSettled
			}
			s.hub.Broadcast(msgType, ev.Transform)
		}),
	)

	// Seed the replay cache so the first renderer starts from the current state.
	s.hub.Broadcast(stream.TypeModelSnapshot, ed.Snapshot())
	s.hub.Broadcast(stream.TypeHistoryState, ed.History().State())
	s.hub.Broadcast(stream.TypeViewportSettled, ed.Viewport().Transform())
	return s
}

func (s *Server) Hub() *stream.Hub { return s.hub }

// Close detaches the server from the editor.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// Run drives the stream hub and advances viewport animation every
// interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	go s.hub.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Server) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor.Viewport().Animating() {
		s.editor.Tick(now)
	}
}

// with runs fn while holding the editor lock.
func (s *Server) with(fn func(ed *editor.Editor)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.editor)
}

// Register mounts the editor routes on r, normally the protected /api
// subrouter.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/model", s.GetModel).Methods("GET")
	r.HandleFunc("/transactions", s.CommitTransaction).Methods("POST")
	r.HandleFunc("/nodes", s.AddNode).Methods("POST")
	r.HandleFunc("/nodes/{id}", s.RemoveNode).Methods("DELETE")
	r.HandleFunc("/elements", s.AddElement).Methods("POST")
	r.HandleFunc("/elements/{id}", s.RemoveElement).Methods("DELETE")

	r.HandleFunc("/undo", s.Undo).Methods("POST")
	r.HandleFunc("/redo", s.Redo).Methods("POST")
	r.HandleFunc("/history", s.GetHistory).Methods("GET")

	r.HandleFunc("/viewport", s.GetViewport).Methods("GET")
	r.HandleFunc("/viewport/zoom", s.Zoom).Methods("POST")
	r.HandleFunc("/viewport/pan", s.Pan).Methods("POST")
	r.HandleFunc("/viewport/fit", s.Fit).Methods("POST")
	r.HandleFunc("/viewport/resize", s.Resize).Methods("POST")
	r.HandleFunc("/viewport/config", s.ConfigureViewport).Methods("PUT")

	r.HandleFunc("/snap", s.Snap).Methods("POST")
	r.HandleFunc("/snap/config", s.GetSnapConfig).Methods("GET")
	r.HandleFunc("/snap/config", s.PutSnapConfig).Methods("PUT")

	r.HandleFunc("/draw/click", s.DrawClick).Methods("POST")
	r.HandleFunc("/draw/move", s.DrawMove).Methods("POST")
	r.HandleFunc("/draw/cancel", s.DrawCancel).Methods("POST")

	r.HandleFunc("/selection", s.Select).Methods("POST")
	r.HandleFunc("/hit", s.Hit).Methods("POST")
	r.HandleFunc("/render", s.Render).Methods("GET")

	r.HandleFunc("/snapshots", s.ListSnapshots).Methods("GET")
	r.HandleFunc("/snapshots", s.SaveSnapshot).Methods("POST")
	r.HandleFunc("/snapshots/{id}/load", s.LoadSnapshot).Methods("POST")
}

// WebSocket upgrades an authenticated renderer connection and attaches it
// to the hub.
func (s *Server) WebSocket(authSvc *auth.Service, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := authSvc.Authenticate(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		client := stream.NewClient(s.hub, conn, subject)
		if !s.hub.Register(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

// handleStream answers renderer requests. Only pointer snapping is
// supported; everything else mutates through HTTP.
func (s *Server) handleStream(sender *stream.Client, msg *stream.Message) {
	switch msg.Type {
	case stream.TypePointerSnap:
		var p stream.PointerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			sender.SendError("invalid pointer payload")
			return
		}
		pt := geom.Pt(p.X, p.Y)
		if !pt.IsFinite() {
			sender.SendError("invalid pointer payload")
			return
		}
		var res any
		s.with(func(ed *editor.Editor) {
			res = ed.SnapAt(pt)
		})
		sender.Reply(stream.TypeSnapResult, res)
	default:
		slog.Warn("unsupported stream message", "type", msg.Type, "client", sender.ClientID)
		sender.SendError("unsupported message type " + msg.Type)
	}
}
