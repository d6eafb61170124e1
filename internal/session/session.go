// Package session owns the ingestion role: one worker feeding the
// coordinator and one transport client per source. A session can be
// started and stopped repeatedly; Stop returns only once no Ingest call
// is in flight.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/liveview/internal/ingest"
	"github.com/yourorg/liveview/internal/transport"
)

// ErrStopped is returned by Submit while the session is not running
var ErrStopped = ingest.ErrWorkerStopped

// Config describes what a session connects to
type Config struct {
	Sources        []transport.Source
	QueueSize      int
	ReconnectDelay time.Duration
}

// Session starts and stops the ingestion role
type Session struct {
	coord  *ingest.Coordinator
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	worker  *ingest.Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// New creates a stopped session
func New(coord *ingest.Coordinator, config Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		coord:  coord,
		config: config,
		logger: logger,
	}
}

// Start launches the worker and all source clients. Starting a running
// session is a no-op.
func (s *Session) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	worker := ingest.NewWorker(s.coord, s.config.QueueSize, s.logger)
	s.worker = worker
	s.cancel = cancel
	s.started = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		worker.Run(ctx)
	}()

	for _, src := range s.config.Sources {
		client := transport.NewClient(src, worker, s.config.ReconnectDelay, s.logger)
		s.wg.Add(1)
		go func(src transport.Source) {
			defer s.wg.Done()
			if err := client.Run(ctx); err != nil {
				s.logger.Warn("source stopped", "source", src.URL, "error", err)
			}
		}(src)
	}

	s.logger.Info("ingestion started", "sources", len(s.config.Sources))
}

// Stop cancels the clients and the worker and waits for them to exit
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker == nil {
		return
	}

	// Goroutines tracked by wg never take s.mu.
	s.cancel()
	s.wg.Wait()
	s.worker = nil
	s.cancel = nil
	s.logger.Info("ingestion stopped")
}

// Toggle starts a stopped session or stops a running one and reports
// whether the session is now running
func (s *Session) Toggle(parent context.Context) bool {
	if s.Running() {
		s.Stop()
		return false
	}
	s.Start(parent)
	return true
}

// Running reports whether the session is started
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker != nil
}

// Uptime returns how long the current run has lasted
func (s *Session) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil {
		return 0
	}
	return time.Since(s.started)
}

// Submit forwards a unit to the current worker. It lets the gRPC
// ingest server outlive individual runs.
func (s *Session) Submit(ctx context.Context, u ingest.Unit) error {
	s.mu.Lock()
	worker := s.worker
	s.mu.Unlock()

	if worker == nil {
		return ErrStopped
	}
	err := worker.Submit(ctx, u)
	if errors.Is(err, ingest.ErrWorkerStopped) {
		return ErrStopped
	}
	return err
}

// Control binds a session to the context its runs derive from. The
// terminal UI and the HTTP API toggle the session through it.
type Control struct {
	session *Session
	ctx     context.Context
}

// Control returns a handle whose Toggle starts runs under ctx
func (s *Session) Control(ctx context.Context) Control {
	return Control{session: s, ctx: ctx}
}

func (c Control) Toggle() bool { return c.session.Toggle(c.ctx) }
func (c Control) Running() bool { return c.session.Running() }
func (c Control) Uptime() time.Duration { return c.session.Uptime() }
