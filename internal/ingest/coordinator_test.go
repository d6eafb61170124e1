package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/liveview/internal/buffer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingObserver struct {
	mu       sync.Mutex
	ingested map[buffer.ChannelID]int
	dropped  map[string]int
	redraws  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		ingested: make(map[buffer.ChannelID]int),
		dropped:  make(map[string]int),
	}
}

func (o *recordingObserver) SampleIngested(ch buffer.ChannelID) {
	o.mu.Lock()
	o.ingested[ch]++
	o.mu.Unlock()
}

func (o *recordingObserver) SampleDropped(reason string) {
	o.mu.Lock()
	o.dropped[reason]++
	o.mu.Unlock()
}

func (o *recordingObserver) RedrawSignalled() {
	o.mu.Lock()
	o.redraws++
	o.mu.Unlock()
}

func newTestCoordinator(capacity, threshold int, obs Observer) *Coordinator {
	return NewCoordinator(Config{
		Capacity:        capacity,
		RedrawThreshold: threshold,
		Decoder:         Decoder{Location: time.UTC},
		Observer:        obs,
		Logger:          discardLogger(),
	})
}

func pending(c *Coordinator) bool {
	select {
	case <-c.Redraw():
		return true
	default:
		return false
	}
}

func TestCoordinatorRoutesByChannel(t *testing.T) {
	coord := newTestCoordinator(3, 100, nil)

	coord.Ingest(1, 10, 1)
	coord.Ingest(2, 20, 2)
	coord.Ingest(1, 11, 3)

	if want := []buffer.Sample{{Ts: 1, Val: 10}, {Ts: 3, Val: 11}}; !reflect.DeepEqual(coord.SnapshotAll(1), want) {
		t.Fatalf("channel 1: expected %v, got %v", want, coord.SnapshotAll(1))
	}
	if want := []buffer.Sample{{Ts: 2, Val: 20}}; !reflect.DeepEqual(coord.SnapshotAll(2), want) {
		t.Fatalf("channel 2: expected %v, got %v", want, coord.SnapshotAll(2))
	}
	if want := []buffer.ChannelID{1, 2}; !reflect.DeepEqual(coord.Channels(), want) {
		t.Fatalf("expected channels %v, got %v", want, coord.Channels())
	}
}

func TestCoordinatorUnknownChannelGetsOwnStore(t *testing.T) {
	coord := newTestCoordinator(3, 100, nil)

	coord.Ingest(977, 1, 1)

	ring, ok := coord.Store(977)
	if !ok {
		t.Fatal("expected a store for channel 977")
	}
	if ring.Cap() != 3 {
		t.Fatalf("expected capacity 3, got %d", ring.Cap())
	}
}

func TestCoordinatorUnknownChannelSnapshotsAreEmpty(t *testing.T) {
	coord := newTestCoordinator(3, 100, nil)

	if got := coord.SnapshotAll(5); got == nil || len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %#v", got)
	}
	if got := coord.SnapshotRecent(5, 2); got == nil || len(got) != 0 {
		t.Fatalf("expected empty recent snapshot, got %#v", got)
	}
	if _, ok := coord.Latest(5); ok {
		t.Fatal("expected no latest sample")
	}
	if len(coord.Channels()) != 0 {
		t.Fatal("reads must not create channels")
	}
}

func TestCoordinatorThresholdFiresAndResets(t *testing.T) {
	coord := newTestCoordinator(10, 3, nil)

	coord.Ingest(1, 1, 1)
	coord.Ingest(1, 2, 2)
	if pending(coord) {
		t.Fatal("expected no redraw before threshold")
	}
	if coord.SinceRedraw() != 2 {
		t.Fatalf("expected counter 2, got %d", coord.SinceRedraw())
	}

	coord.Ingest(1, 3, 3)
	if coord.SinceRedraw() != 0 {
		t.Fatalf("expected counter reset to 0, got %d", coord.SinceRedraw())
	}
	if !pending(coord) {
		t.Fatal("expected a redraw at threshold")
	}
}

func TestCoordinatorRedrawCoalescing(t *testing.T) {
	const threshold = 50
	obs := newRecordingObserver()
	coord := newTestCoordinator(1000, threshold, obs)

	for i := 0; i < 2*threshold; i++ {
		coord.Ingest(1, float64(i), float64(i))
	}

	if !pending(coord) {
		t.Fatal("expected one pending redraw")
	}
	if pending(coord) {
		t.Fatal("expected threshold crossings to coalesce into one redraw")
	}
	if got := coord.Stats().Redraws; got != 2 {
		t.Fatalf("expected 2 threshold crossings counted, got %d", got)
	}
	if obs.redraws != 2 {
		t.Fatalf("expected observer to see 2 crossings, got %d", obs.redraws)
	}
}

func TestCoordinatorMalformedDropIsolation(t *testing.T) {
	obs := newRecordingObserver()
	coord := newTestCoordinator(10, 100, obs)

	if err := coord.HandleRaw([]byte(`{"timestamp":"2024-05-01T12:00:00","value":1,"id":1}`), "test"); err != nil {
		t.Fatalf("first valid sample: %v", err)
	}
	if err := coord.HandleRaw([]byte(`{"timestamp":"not a date","value":2,"id":1}`), "test"); err == nil {
		t.Fatal("expected malformed sample to be rejected")
	}
	if err := coord.HandleRaw([]byte(`{"timestamp":"2024-05-01T12:00:02","value":3,"id":1}`), "test"); err != nil {
		t.Fatalf("second valid sample: %v", err)
	}

	want := []buffer.Sample{{Ts: 1714564800, Val: 1}, {Ts: 1714564802, Val: 3}}
	if got := coord.SnapshotAll(1); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if coord.SinceRedraw() != 2 {
		t.Fatalf("expected redraw counter 2, got %d", coord.SinceRedraw())
	}

	stats := coord.Stats()
	if stats.Ingested != 2 || stats.Dropped != 1 {
		t.Fatalf("expected 2 ingested and 1 dropped, got %+v", stats)
	}
	if obs.dropped["malformed"] != 1 {
		t.Fatalf("expected observer to see 1 malformed drop, got %v", obs.dropped)
	}
	if obs.ingested[1] != 2 {
		t.Fatalf("expected observer to see 2 ingested samples, got %v", obs.ingested)
	}
}

func TestCoordinatorHandleMessage(t *testing.T) {
	coord := newTestCoordinator(10, 100, nil)

	if err := coord.HandleMessage(NewMessage(4, 2.5, "2024-05-01T12:00:00Z"), "test"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := coord.HandleMessage(Message{}, "test"); err == nil {
		t.Fatal("expected empty message to be rejected")
	}

	latest, ok := coord.Latest(4)
	if !ok || latest != (buffer.Sample{Ts: 1714564800, Val: 2.5}) {
		t.Fatalf("unexpected latest sample %v (ok=%v)", latest, ok)
	}
	if coord.Stats().Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", coord.Stats().Dropped)
	}
}

func TestCoordinatorDropsNonFiniteValues(t *testing.T) {
	obs := newRecordingObserver()
	coord := newTestCoordinator(10, 100, obs)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := coord.HandleMessage(NewMessage(1, v, "2024-05-01T12:00:00Z"), "test"); !errors.Is(err, ErrMalformedSample) {
			t.Fatalf("HandleMessage(%v): expected ErrMalformedSample, got %v", v, err)
		}
	}
	if err := coord.HandleMessage(NewMessage(1, 4, "2024-05-01T12:00:00Z"), "test"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	stats := coord.Stats()
	if stats.Ingested != 1 || stats.Dropped != 3 {
		t.Fatalf("expected 1 ingested and 3 dropped, got %+v", stats)
	}
	if coord.SinceRedraw() != 1 {
		t.Fatalf("expected redraw counter 1, got %d", coord.SinceRedraw())
	}
	if obs.dropped["malformed"] != 3 {
		t.Fatalf("expected observer to see 3 malformed drops, got %v", obs.dropped)
	}
	if _, err := json.Marshal(coord.SnapshotAll(1)); err != nil {
		t.Fatalf("expected stored samples to encode as JSON: %v", err)
	}
}

func TestCoordinatorSnapshotRecent(t *testing.T) {
	coord := newTestCoordinator(3, 100, nil)
	for i := 1; i <= 4; i++ {
		coord.Ingest(1, float64(i*10), float64(i))
	}

	want := []buffer.Sample{{Ts: 3, Val: 30}, {Ts: 4, Val: 40}}
	if got := coord.SnapshotRecent(1, 2); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
