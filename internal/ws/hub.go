// Package ws pushes rendered frames to browser viewers over WebSocket
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/render"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from other origins during development
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Client represents a WebSocket viewer connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// channels the viewer subscribed to; empty means all
	subs  map[buffer.ChannelID]bool
	subMu sync.RWMutex
}

// Hub maintains the set of active viewers and broadcasts frames to them
type Hub struct {
	policy render.AxisPolicy
	logger *slog.Logger

	clients    map[*Client]bool
	frames     *render.Feed
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	last    render.Frame
	hasLast bool
}

// NewHub creates a hub that describes frames with the given x-axis policy
func NewHub(policy render.AxisPolicy, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		policy:     policy,
		logger:     logger,
		clients:    make(map[*Client]bool),
		frames:     render.NewFeed(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Draw queues a frame for broadcast. It never blocks the render loop.
func (h *Hub) Draw(frame render.Frame) {
	h.frames.Draw(frame)
}

// Run is the hub's event loop
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("viewer connected", "total", total)
			if h.hasLast {
				h.sendFrame(client, h.last)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("viewer disconnected", "total", total)

		case frame := <-h.frames.Frames():
			h.last, h.hasLast = frame, true
			h.mu.RLock()
			for client := range h.clients {
				h.sendFrame(client, frame)
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected viewers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendFrame(client *Client, frame render.Frame) {
	msg := h.buildClientMessage(client, frame)
	if msg == nil {
		return
	}
	select {
	case client.send <- msg:
	default:
		// Client buffer full, skip
	}
}

type seriesMessage struct {
	Channel buffer.ChannelID `json:"channel"`
	Stored  int              `json:"stored"`
	Samples []buffer.Sample  `json:"samples"`
}

type frameMessage struct {
	Type      string          `json:"type"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	Axis      string          `json:"axis"`
	XRange    *render.Range   `json:"x_range,omitempty"`
	Series    []seriesMessage `json:"series"`
}

// buildClientMessage creates a message for a specific client based on subscriptions
func (h *Hub) buildClientMessage(client *Client, frame render.Frame) []byte {
	client.subMu.RLock()
	defer client.subMu.RUnlock()

	msg := frameMessage{
		Type:      "frame",
		Seq:       frame.Seq,
		Timestamp: frame.Taken.UnixNano(),
		Axis:      h.policy.String(),
		Series:    make([]seriesMessage, 0, len(frame.Series)),
	}
	if xr := frame.XRange(h.policy); xr.Valid {
		msg.XRange = &xr
	}
	for _, s := range frame.Series {
		if len(client.subs) > 0 && !client.subs[s.Channel] {
			continue
		}
		msg.Series = append(msg.Series, seriesMessage{
			Channel: s.Channel,
			Stored:  s.Stored,
			Samples: s.Samples,
		})
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding frame", "error", err)
		return nil
	}
	return data
}

// HandleWebSocket handles new viewer connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// subscribeMessage replaces the client's channel filter
type subscribeMessage struct {
	Type     string             `json:"type"`
	Channels []buffer.ChannelID `json:"channels"`
}

// readPump handles incoming messages from the viewer
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("viewer read failed", "error", err)
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "subscribe" {
			continue
		}
		subs := make(map[buffer.ChannelID]bool, len(msg.Channels))
		for _, ch := range msg.Channels {
			subs[ch] = true
		}
		c.subMu.Lock()
		c.subs = subs
		c.subMu.Unlock()
		c.hub.logger.Debug("viewer subscribed", "channels", msg.Channels)
	}
}

// writePump handles outgoing messages to the viewer
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
