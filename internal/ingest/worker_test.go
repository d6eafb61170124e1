package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkerProcessesUnitsInOrder(t *testing.T) {
	coord := newTestCoordinator(10, 100, nil)
	worker := NewWorker(coord, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	units := []Unit{
		{Raw: []byte(`{"timestamp":"2024-05-01T12:00:00","value":1,"id":1}`), Source: "a"},
		{Raw: []byte(`garbage`), Source: "a"},
		{Message: ptr(NewMessage(1, 2, "2024-05-01T12:00:01Z")), Source: "b"},
		{Source: "empty"},
	}
	for _, u := range units {
		if err := worker.Submit(ctx, u); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	waitFor(t, "two ingested samples", func() bool { return coord.Stats().Ingested == 2 })

	got := coord.SnapshotAll(1)
	if len(got) != 2 || got[0].Val != 1 || got[1].Val != 2 {
		t.Fatalf("expected values [1 2] in order, got %v", got)
	}
	// the garbage frame and the empty unit
	waitFor(t, "two dropped units", func() bool { return coord.Stats().Dropped == 2 })
}

func TestWorkerSubmitAfterStop(t *testing.T) {
	coord := newTestCoordinator(10, 100, nil)
	worker := NewWorker(coord, 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)
	cancel()
	<-worker.Done()

	err := worker.Submit(context.Background(), Unit{Raw: []byte(`{}`)})
	if !errors.Is(err, ErrWorkerStopped) {
		t.Fatalf("expected ErrWorkerStopped, got %v", err)
	}
}

func TestWorkerSubmitHonoursContext(t *testing.T) {
	coord := newTestCoordinator(10, 100, nil)
	worker := NewWorker(coord, 1, discardLogger())

	// Nothing is draining the queue: the second submit must block.
	if err := worker.Submit(context.Background(), Unit{Raw: []byte(`{}`)}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := worker.Submit(ctx, Unit{Raw: []byte(`{}`)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
