package render

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/liveview/internal/ingest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSurface struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recordingSurface) Draw(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSurface) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestLoopDrawsOnRedrawSignal(t *testing.T) {
	coord := ingest.NewCoordinator(ingest.Config{
		Capacity:        10,
		RedrawThreshold: 3,
		Logger:          quietLogger(),
	})

	a, b := &recordingSurface{}, &recordingSurface{}
	loop := NewLoop(coord, coord.Redraw(), Options{}, 0, quietLogger(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	for i := 0; i < 3; i++ {
		coord.Ingest(1, float64(i), float64(i))
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.count() == 0 || b.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a frame")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	a.mu.Lock()
	frame := a.frames[0]
	a.mu.Unlock()
	series, ok := frame.Channel(1)
	if !ok || len(series.Samples) != 3 {
		t.Fatalf("expected 3 samples for channel 1, got %+v", frame)
	}
	if frame.Seq != 1 {
		t.Fatalf("expected first frame to have seq 1, got %d", frame.Seq)
	}
}

func TestLoopRefreshTicks(t *testing.T) {
	surface := &recordingSurface{}
	loop := NewLoop(fakeSource{}, nil, Options{}, 5*time.Millisecond, quietLogger(), surface)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for surface.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected periodic frames, got %d", surface.count())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoopFramesAreCopies(t *testing.T) {
	coord := ingest.NewCoordinator(ingest.Config{Capacity: 3, RedrawThreshold: 100, Logger: quietLogger()})
	coord.Ingest(1, 1, 1)

	loop := NewLoop(coord, nil, Options{}, 0, quietLogger())
	frame := loop.Draw()

	coord.Ingest(1, 2, 2)
	series, _ := frame.Channel(1)
	if len(series.Samples) != 1 {
		t.Fatalf("frame changed after a later push: %+v", series.Samples)
	}
	if loop.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", loop.Frames())
	}
}

func TestFeedKeepsLatest(t *testing.T) {
	feed := NewFeed()
	feed.Draw(Frame{Seq: 1})
	feed.Draw(Frame{Seq: 2})
	feed.Draw(Frame{Seq: 3})

	select {
	case f := <-feed.Frames():
		if f.Seq != 3 {
			t.Fatalf("expected latest frame 3, got %d", f.Seq)
		}
	default:
		t.Fatal("expected a pending frame")
	}

	select {
	case f := <-feed.Frames():
		t.Fatalf("expected no further frames, got %d", f.Seq)
	default:
	}
}

func TestSurfaceFunc(t *testing.T) {
	var got uint64
	var s Surface = SurfaceFunc(func(f Frame) { got = f.Seq })
	s.Draw(Frame{Seq: 9})
	if got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}
