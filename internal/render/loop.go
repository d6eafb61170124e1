package render

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Surface draws frames. Draw must not block for long; surfaces that
// render elsewhere should hand the frame off and return.
type Surface interface {
	Draw(Frame)
}

// SurfaceFunc adapts a function to a Surface
type SurfaceFunc func(Frame)

func (f SurfaceFunc) Draw(frame Frame) { f(frame) }

// Loop is the only consumer of the redraw signal. Every signal, and every
// refresh tick, produces one frame that is handed to all surfaces.
type Loop struct {
	src      SnapshotSource
	redraw   <-chan struct{}
	opts     Options
	refresh  time.Duration
	surfaces []Surface
	logger   *slog.Logger

	seq atomic.Uint64
}

// NewLoop creates a loop. A zero refresh disables periodic frames.
func NewLoop(src SnapshotSource, redraw <-chan struct{}, opts Options, refresh time.Duration, logger *slog.Logger, surfaces ...Surface) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		src:      src,
		redraw:   redraw,
		opts:     opts,
		refresh:  refresh,
		surfaces: surfaces,
		logger:   logger,
	}
}

// Run draws until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.refresh > 0 {
		ticker := time.NewTicker(l.refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.logger.Info("render loop started", "surfaces", len(l.surfaces), "refresh", l.refresh)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.redraw:
			l.Draw()
		case <-tick:
			l.Draw()
		}
	}
}

// Draw builds one frame and hands it to every surface
func (l *Loop) Draw() Frame {
	frame := BuildFrame(l.src, l.opts)
	frame.Seq = l.seq.Add(1)
	for _, s := range l.surfaces {
		s.Draw(frame)
	}
	l.logger.Debug("frame drawn", "seq", frame.Seq, "series", len(frame.Series), "points", frame.Points())
	return frame
}

// Frames returns how many frames have been drawn
func (l *Loop) Frames() uint64 {
	return l.seq.Load()
}

// Feed is a latest-wins mailbox surface. A slow reader sees the newest
// frame and skips the ones it missed.
type Feed struct {
	ch chan Frame
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{ch: make(chan Frame, 1)}
}

// Draw replaces any unread frame with frame. Only the render loop calls it.
func (f *Feed) Draw(frame Frame) {
	select {
	case f.ch <- frame:
		return
	default:
	}
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- frame:
	default:
	}
}

// Frames is the receive side of the feed
func (f *Feed) Frames() <-chan Frame {
	return f.ch
}
