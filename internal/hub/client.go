package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soar/joyctrl/internal/ipc"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	// Requests are small; anything bigger is a broken client.
	maxMessageSize = 1 << 20
)

// Client represents a connected WebSocket client.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	session *ipc.Session
	logger  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a new Client attached to the hub, with a fresh ipc
// session.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	c.logger = hub.logger.With("client", c.id)
	c.session = hub.svc.NewSession(c.emit)
	return c
}

func (c *Client) ID() string { return c.id }

// emit queues a reply. A client that cannot keep up is disconnected rather
// than allowed to stall the streams feeding it.
func (c *Client) emit(r ipc.Reply) {
	msg, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("encode reply", "stream", r.StreamID, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping client")
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Debug("write failed", "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// ReadPump turns incoming messages into ipc requests until the connection
// drops, then tears down every stream of the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.session.Close()
		c.hub.Unregister(c)
		c.closeSend()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}

		var req ipc.Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.logger.Warn("malformed request", "error", err)
			continue
		}
		if err := c.session.Trigger(ctx, req); err != nil {
			c.logger.Debug("request rejected", "channel", req.Channel, "stream", req.StreamID, "error", err)
		}
	}
}
