package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/liveview/internal/auth"
	"github.com/yourorg/liveview/internal/ingest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// PusherConfig holds pusher configuration
type PusherConfig struct {
	Target         string
	SourceName     string
	APIKey         string
	SampleInterval time.Duration
	PushInterval   time.Duration
	BatchSize      int
}

// DefaultPusherConfig returns default pusher configuration
func DefaultPusherConfig() PusherConfig {
	return PusherConfig{
		Target:         "localhost:9000",
		SourceName:     "sample-source",
		SampleInterval: 3 * time.Millisecond,
		PushInterval:   50 * time.Millisecond,
		BatchSize:      100,
	}
}

// Pusher streams generated samples to a viewer over gRPC
type Pusher struct {
	config PusherConfig
	gen    *Generator
	logger *slog.Logger

	conn   *grpc.ClientConn
	stream ingest.SampleIngestor_StreamSamplesClient

	// ctx controls the push loop; the stream has its own context so it
	// can still be half-closed after the loop stops.
	ctx          context.Context
	cancel       context.CancelFunc
	streamCancel context.CancelFunc
	wg           sync.WaitGroup

	mu   sync.Mutex
	sent uint64
}

// NewPusher creates a pusher for a generator
func NewPusher(config PusherConfig, gen *Generator, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pusher{
		config: config,
		gen:    gen,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect establishes the stream to the viewer. Extra dial options are
// appended after the defaults.
func (p *Pusher) Connect(opts ...grpc.DialOption) error {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(p.config.Target, dialOpts...)
	if err != nil {
		return fmt.Errorf("creating client for %s: %w", p.config.Target, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if p.config.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.HeaderName, p.config.APIKey)
	}

	stream, err := ingest.NewSampleIngestorClient(conn).StreamSamples(ctx)
	if err != nil {
		cancel()
		conn.Close()
		return fmt.Errorf("opening sample stream: %w", err)
	}

	p.conn = conn
	p.streamCancel = cancel
	p.stream = stream
	p.logger.Info("connected to viewer", "target", p.config.Target)
	return nil
}

// Start begins the sample and push loop
func (p *Pusher) Start() {
	p.wg.Add(1)
	go p.pushLoop()
}

// Stop ends the push loop after flushing pending samples, then closes
// the stream and returns the viewer's acknowledgement
func (p *Pusher) Stop() (*ingest.Ack, error) {
	p.cancel()
	p.wg.Wait()

	var ack *ingest.Ack
	var err error
	if p.stream != nil {
		ack, err = p.stream.CloseAndRecv()
		p.streamCancel()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return ack, err
}

// Sent returns the number of samples handed to the stream
func (p *Pusher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func (p *Pusher) pushLoop() {
	defer p.wg.Done()

	sampleTicker := time.NewTicker(p.config.SampleInterval)
	defer sampleTicker.Stop()
	pushTicker := time.NewTicker(p.config.PushInterval)
	defer pushTicker.Stop()

	pending := make([]ingest.Message, 0, p.config.BatchSize)
	for {
		select {
		case <-p.ctx.Done():
			if len(pending) > 0 {
				if err := p.send(pending); err != nil {
					p.logger.Warn("failed to flush batch", "error", err)
				}
			}
			return
		case now := <-sampleTicker.C:
			pending = append(pending, p.gen.Sample(now))
			if len(pending) < p.config.BatchSize {
				continue
			}
		case <-pushTicker.C:
			if len(pending) == 0 {
				continue
			}
		}

		if err := p.send(pending); err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Warn("viewer closed the stream")
				return
			}
			p.logger.Warn("failed to send batch", "error", err)
		}
		pending = pending[:0]
	}
}

func (p *Pusher) send(samples []ingest.Message) error {
	batch := &ingest.SampleBatch{
		Source:  p.config.SourceName,
		Samples: append([]ingest.Message(nil), samples...),
	}
	if err := p.stream.Send(batch); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent += uint64(len(samples))
	p.mu.Unlock()
	return nil
}
