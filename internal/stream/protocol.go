package stream

import "encoding/json"

// Message is the envelope for every frame in both directions.
type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Server to renderer
	TypeModelSnapshot   = "model.snapshot"
	TypeHistoryState    = "history.state"
	TypeViewportMoved   = "viewport.moved"
	TypeViewportSettled = "viewport.settled"
	TypeSnapResult      = "snap.result"

	// Renderer to server
	TypePointerSnap = "pointer.snap"
)

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	Subject  string `json:"subject"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// PointerPayload is a screen position sent by a renderer.
type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
