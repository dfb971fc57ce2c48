package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
)

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	ClientID string
	Subject  string
}

// NewClient wraps an accepted connection. subject is the authenticated
// token subject.
func NewClient(hub *Hub, conn *websocket.Conn, subject string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		ClientID: uuid.New().String(),
		Subject:  subject,
	}
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "client", c.ClientID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			c.SendError("invalid message")
			continue
		}
		msg.ClientID = c.ClientID

		c.hub.handleMessage(c, &msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send encodes msg and queues it for this client only.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}
	c.sendRaw(data)
}

// Reply sends a typed payload to this client only.
func (c *Client) Reply(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal reply", "type", msgType, "error", err)
		return
	}
	c.Send(&Message{Type: msgType, ClientID: c.ClientID, Payload: data})
}

func (c *Client) SendError(message string) {
	c.Reply(TypeError, ErrorPayload{Message: message})
}

// sendRaw queues data if the client is still connected.
func (c *Client) sendRaw(data []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.hub.clients[c.ClientID] != c {
		return
	}
	c.trySend(data)
}

// trySend never blocks; a slow renderer loses frames rather than stalling
// the editor. The caller holds the hub lock.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Debug("client send buffer full, dropping message", "client", c.ClientID)
	}
}
