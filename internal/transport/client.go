// Package transport connects to sample sources over WebSocket and hands
// every received frame to the ingestion worker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourorg/liveview/internal/ingest"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	maxMessageSize   = 64 * 1024
)

// Source describes one upstream sample producer
type Source struct {
	// URL of the WebSocket endpoint, e.g. ws://localhost:8765/ws
	URL string `yaml:"url"`

	// Control is sent as a JSON text message right after connecting.
	// The bundled generators understand Value_min, Value_max and Frequency.
	Control map[string]any `yaml:"control,omitempty"`

	// APIKey is sent in the x-api-key header when set
	APIKey string `yaml:"api_key,omitempty"`
}

// Client reads frames from one source until its context ends
type Client struct {
	source    Source
	submitter ingest.Submitter
	dialer    *websocket.Dialer
	reconnect time.Duration
	logger    *slog.Logger
}

// NewClient creates a client for a source. A positive reconnect delay
// makes Run redial after the connection drops.
func NewClient(source Source, submitter ingest.Submitter, reconnect time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		source:    source,
		submitter: submitter,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		reconnect: reconnect,
		logger:    logger.With("source", source.URL),
	}
}

// Run connects and reads until ctx is cancelled or, without reconnect,
// until the first connection ends
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ingest.ErrWorkerStopped) {
			return nil
		}
		if c.reconnect <= 0 {
			return err
		}

		c.logger.Warn("connection lost, reconnecting", "error", err, "delay", c.reconnect)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	header := http.Header{}
	if c.source.APIKey != "" {
		header.Set("X-Api-Key", c.source.APIKey)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.source.URL, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.source.URL, err)
	}
	defer conn.Close()
	c.logger.Info("connected")

	// Unblock ReadMessage when the session stops.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	if len(c.source.Control) > 0 {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(c.source.Control); err != nil {
			return fmt.Errorf("sending control message: %w", err)
		}
		c.logger.Info("sent control message", "control", c.source.Control)
	}

	conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("source closed the connection")
				return err
			}
			return fmt.Errorf("reading from %s: %w", c.source.URL, err)
		}

		if err := c.submitter.Submit(ctx, ingest.Unit{Raw: message, Source: c.source.URL}); err != nil {
			return err
		}
	}
}
