package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server broadcasts one generator's samples to every connected
// WebSocket client and applies control messages they send
type Server struct {
	gen      *Generator
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a broadcasting server emitting a sample every interval
func NewServer(gen *Generator, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		gen:      gen,
		interval: interval,
		logger:   logger,
		clients:  make(map[*client]bool),
	}
}

// Run produces samples until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			data, err := json.Marshal(s.gen.Sample(now))
			if err != nil {
				s.logger.Error("encoding sample", "error", err)
				continue
			}
			s.broadcast(data)
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Slow client, skip this sample
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// HandleWebSocket upgrades the request and streams samples to it
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256)}
	s.mu.Lock()
	s.clients[c] = true
	total := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", r.RemoteAddr, "total", total)

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	total := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client disconnected", "total", total)
}

// readPump applies control messages until the client goes away
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket error", "error", err)
			}
			return
		}

		var ctl Control
		if err := json.Unmarshal(message, &ctl); err != nil {
			s.logger.Warn("invalid control message", "message", string(message), "error", err)
			continue
		}
		if err := s.gen.Wave.Apply(ctl); err != nil {
			s.logger.Warn("rejected control message", "error", err)
			continue
		}
		s.logger.Info("applied control message", "message", string(message))
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
