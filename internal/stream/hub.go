// Package stream fans editor notifications out to connected renderers over
// websockets and routes their requests back to a handler.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler processes a message received from a renderer. It runs on the
// sender's read goroutine.
type Handler func(sender *Client, msg *Message)

// Hub tracks connected renderers. The latest message of each replayable
// type is kept so late joiners start from the current state.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	latest  map[string][]byte
	seq     int64

	handler Handler

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

var replayable = map[string]bool{
	TypeModelSnapshot:   true,
	TypeHistoryState:    true,
	TypeViewportSettled: true,
}

func NewHub(handler Handler) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		latest:     make(map[string][]byte),
		handler:    handler,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes joins and leaves until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register adds a client. It returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected renderers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes payload and sends it to every client.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal broadcast payload", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	h.seq++
	frame, err := json.Marshal(&Message{Type: msgType, Seq: h.seq, Payload: data})
	if err != nil {
		h.mu.Unlock()
		slog.Error("marshal broadcast", "type", msgType, "error", err)
		return
	}
	if replayable[msgType] {
		h.latest[msgType] = frame
	}
	for _, c := range h.clients {
		c.trySend(frame)
	}
	h.mu.Unlock()
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if h.handler == nil {
		slog.Warn("no handler for message", "type", msg.Type, "client", sender.ClientID)
		return
	}
	h.handler(sender, msg)
}

func (h *Hub) addClient(client *Client) {
	welcomePayload, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, Subject: client.Subject})
	welcome, _ := json.Marshal(&Message{Type: TypeWelcome, ClientID: client.ClientID, Payload: welcomePayload})

	h.mu.Lock()
	h.clients[client.ClientID] = client
	client.trySend(welcome)
	for _, t := range []string{TypeModelSnapshot, TypeHistoryState, TypeViewportSettled} {
		if frame, ok := h.latest[t]; ok {
			client.trySend(frame)
		}
	}
	h.mu.Unlock()

	slog.Info("renderer connected", "client", client.ClientID, "subject", client.Subject)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ClientID)
	close(client.send)
	h.mu.Unlock()

	slog.Info("renderer disconnected", "client", client.ClientID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}
