package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yourorg/liveview/internal/buffer"
)

// DefaultRedrawThreshold is the number of samples between redraw signals
const DefaultRedrawThreshold = 100

// Observer receives ingestion events, e.g. for metrics export
type Observer interface {
	SampleIngested(ch buffer.ChannelID)
	SampleDropped(reason string)
	RedrawSignalled()
}

// Config controls store sizing and redraw cadence
type Config struct {
	Capacity        int
	RedrawThreshold int
	Decoder         Decoder
	Observer        Observer
	Logger          *slog.Logger
}

// Stats is a point-in-time view of the coordinator counters
type Stats struct {
	Ingested uint64 `json:"ingested"`
	Dropped  uint64 `json:"dropped"`
	Redraws  uint64 `json:"redraws"`
	Channels int    `json:"channels"`
}

// Coordinator routes samples to per-channel rings and raises a redraw
// signal every RedrawThreshold accepted samples.
type Coordinator struct {
	registry  *buffer.Registry
	decoder   Decoder
	threshold int
	observer  Observer
	logger    *slog.Logger

	mu          sync.Mutex
	sinceRedraw int

	// redraw has capacity 1: crossings that happen before the consumer
	// reads coalesce into one pending signal.
	redraw chan struct{}

	ingested atomic.Uint64
	dropped  atomic.Uint64
	redraws  atomic.Uint64
}

// NewCoordinator creates a coordinator with its own ring registry
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.RedrawThreshold <= 0 {
		cfg.RedrawThreshold = DefaultRedrawThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		registry:  buffer.NewRegistry(cfg.Capacity),
		decoder:   cfg.Decoder,
		threshold: cfg.RedrawThreshold,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		redraw:    make(chan struct{}, 1),
	}
}

// Ingest pushes one sample into its channel's ring
func (c *Coordinator) Ingest(ch buffer.ChannelID, value, ts float64) {
	c.registry.GetRing(ch).Push(value, ts)
	c.ingested.Add(1)
	if c.observer != nil {
		c.observer.SampleIngested(ch)
	}

	c.mu.Lock()
	c.sinceRedraw++
	fire := c.sinceRedraw >= c.threshold
	if fire {
		c.sinceRedraw = 0
	}
	c.mu.Unlock()

	if fire {
		c.signalRedraw()
	}
}

func (c *Coordinator) signalRedraw() {
	c.redraws.Add(1)
	if c.observer != nil {
		c.observer.RedrawSignalled()
	}
	select {
	case c.redraw <- struct{}{}:
	default:
		// A redraw is already pending
	}
}

// HandleRaw decodes a JSON frame and ingests it. Malformed frames are
// dropped and do not count towards the redraw threshold.
func (c *Coordinator) HandleRaw(raw []byte, source string) error {
	d, err := c.decoder.DecodeJSON(raw)
	if err != nil {
		c.drop(err, source, raw)
		return err
	}
	c.Ingest(d.Channel, d.Value, d.Ts)
	return nil
}

// HandleMessage validates an already unmarshalled message and ingests it
func (c *Coordinator) HandleMessage(msg Message, source string) error {
	d, err := c.decoder.Validate(msg)
	if err != nil {
		c.drop(err, source, nil)
		return err
	}
	c.Ingest(d.Channel, d.Value, d.Ts)
	return nil
}

func (c *Coordinator) drop(err error, source string, raw []byte) {
	c.dropped.Add(1)
	if c.observer != nil {
		c.observer.SampleDropped("malformed")
	}
	attrs := []any{"source", source, "error", err}
	if raw != nil {
		attrs = append(attrs, "message", truncate(raw, 256))
	}
	c.logger.Warn("dropping sample", attrs...)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

// Redraw returns the single-slot redraw signal
func (c *Coordinator) Redraw() <-chan struct{} {
	return c.redraw
}

// SinceRedraw returns the number of samples ingested since the last signal
func (c *Coordinator) SinceRedraw() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sinceRedraw
}

// Stats returns the current counters
func (c *Coordinator) Stats() Stats {
	return Stats{
		Ingested: c.ingested.Load(),
		Dropped:  c.dropped.Load(),
		Redraws:  c.redraws.Load(),
		Channels: len(c.registry.Channels()),
	}
}

// Capacity returns the per-channel ring size
func (c *Coordinator) Capacity() int {
	return c.registry.Capacity()
}

// Channels returns the known channels in ascending order
func (c *Coordinator) Channels() []buffer.ChannelID {
	return c.registry.Channels()
}

// Store returns the ring for a channel, if it exists
func (c *Coordinator) Store(ch buffer.ChannelID) (*buffer.Ring, bool) {
	return c.registry.Lookup(ch)
}

// SnapshotAll returns a copy of a channel's full history. Unknown
// channels yield an empty slice.
func (c *Coordinator) SnapshotAll(ch buffer.ChannelID) []buffer.Sample {
	ring, ok := c.registry.Lookup(ch)
	if !ok {
		return []buffer.Sample{}
	}
	return ring.Snapshot()
}

// SnapshotRecent returns a copy of a channel's n most recent samples
func (c *Coordinator) SnapshotRecent(ch buffer.ChannelID, n int) []buffer.Sample {
	ring, ok := c.registry.Lookup(ch)
	if !ok {
		return []buffer.Sample{}
	}
	return ring.SnapshotRecent(n)
}

// Latest returns the newest sample of a channel
func (c *Coordinator) Latest(ch buffer.ChannelID) (buffer.Sample, bool) {
	ring, ok := c.registry.Lookup(ch)
	if !ok {
		return buffer.Sample{}, false
	}
	return ring.Latest()
}
