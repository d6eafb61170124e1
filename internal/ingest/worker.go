package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultQueueSize is the number of inbound units buffered ahead of the worker
const DefaultQueueSize = 1024

// ErrWorkerStopped is returned by Submit once the worker has shut down
var ErrWorkerStopped = errors.New("ingest worker stopped")

// Unit is one inbound item waiting for the ingestion worker. Exactly
// one of Raw or Message is set.
type Unit struct {
	Raw     []byte
	Message *Message
	Source  string
}

// Worker is the single consumer that feeds the coordinator. Transports
// submit units from any goroutine; Ingest is only ever called from Run.
type Worker struct {
	coord  *Coordinator
	queue  chan Unit
	done   chan struct{}
	logger *slog.Logger
}

// NewWorker creates a worker with a queue of the given size
func NewWorker(coord *Coordinator, queueSize int, logger *slog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		coord:  coord,
		queue:  make(chan Unit, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Submit queues a unit, blocking while the queue is full
func (w *Worker) Submit(ctx context.Context, u Unit) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}

	select {
	case w.queue <- u:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued units until ctx is cancelled. Units still queued
// at cancellation are discarded. Run must be called at most once.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("ingest worker started")
	defer w.logger.Info("ingest worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-w.queue:
			w.handle(u)
		}
	}
}

func (w *Worker) handle(u Unit) {
	switch {
	case u.Message != nil:
		w.coord.HandleMessage(*u.Message, u.Source)
	case u.Raw != nil:
		w.coord.HandleRaw(u.Raw, u.Source)
	default:
		w.coord.drop(fmt.Errorf("%w: empty unit", ErrMalformedSample), u.Source, nil)
	}
}

// Done is closed once Run has returned
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
