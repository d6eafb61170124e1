package buffer

import (
	"reflect"
	"sync"
	"testing"
)

func pushN(r *Ring, n int) {
	for i := 1; i <= n; i++ {
		r.Push(float64(i*10), float64(i))
	}
}

func TestRingConcreteScenario(t *testing.T) {
	ring := NewRing(3)
	ring.Push(10, 1)
	ring.Push(20, 2)
	ring.Push(30, 3)
	ring.Push(40, 4)

	want := []Sample{{Ts: 2, Val: 20}, {Ts: 3, Val: 30}, {Ts: 4, Val: 40}}
	if got := ring.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	wantRecent := []Sample{{Ts: 3, Val: 30}, {Ts: 4, Val: 40}}
	if got := ring.SnapshotRecent(2); !reflect.DeepEqual(got, wantRecent) {
		t.Fatalf("expected %v, got %v", wantRecent, got)
	}
}

func TestRingEmpty(t *testing.T) {
	ring := NewRing(5)

	all := ring.Snapshot()
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %#v", all)
	}
	recent := ring.SnapshotRecent(3)
	if recent == nil || len(recent) != 0 {
		t.Fatalf("expected empty non-nil recent snapshot, got %#v", recent)
	}
	if _, ok := ring.Latest(); ok {
		t.Fatal("expected no latest sample in an empty ring")
	}
	if ring.Len() != 0 {
		t.Fatalf("expected length 0, got %d", ring.Len())
	}
}

func TestRingNeverExceedsCapacity(t *testing.T) {
	const capacity = 7
	for pushes := 0; pushes <= 3*capacity; pushes++ {
		ring := NewRing(capacity)
		pushN(ring, pushes)

		want := min(pushes, capacity)
		if got := len(ring.Snapshot()); got != want {
			t.Fatalf("pushes=%d: expected %d samples, got %d", pushes, want, got)
		}
		if ring.Len() != want {
			t.Fatalf("pushes=%d: expected Len %d, got %d", pushes, want, ring.Len())
		}
		if ring.Pushed() != uint64(pushes) {
			t.Fatalf("pushes=%d: expected Pushed %d, got %d", pushes, pushes, ring.Pushed())
		}
	}
}

func TestRingOrderAndOverwrite(t *testing.T) {
	const capacity = 4
	for extra := 0; extra <= 9; extra++ {
		ring := NewRing(capacity)
		total := capacity + extra
		pushN(ring, total)

		got := ring.Snapshot()
		if len(got) != capacity {
			t.Fatalf("extra=%d: expected %d samples, got %d", extra, capacity, len(got))
		}
		first := total - capacity + 1
		for i, s := range got {
			want := Sample{Ts: float64(first + i), Val: float64((first + i) * 10)}
			if s != want {
				t.Fatalf("extra=%d index %d: expected %v, got %v", extra, i, want, s)
			}
		}
	}
}

func TestRingKeepsInsertionOrderForUnsortedTimestamps(t *testing.T) {
	ring := NewRing(4)
	ring.Push(1, 30)
	ring.Push(2, 10)
	ring.Push(3, 20)

	want := []Sample{{Ts: 30, Val: 1}, {Ts: 10, Val: 2}, {Ts: 20, Val: 3}}
	if got := ring.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRingZeroValuedSamplesAreOccupied(t *testing.T) {
	ring := NewRing(3)
	ring.Push(0, 0)

	got := ring.Snapshot()
	if len(got) != 1 || got[0] != (Sample{}) {
		t.Fatalf("expected one zero sample, got %v", got)
	}
}

func TestRingRecentMatchesSuffix(t *testing.T) {
	const capacity = 5
	for pushes := 0; pushes <= 12; pushes++ {
		ring := NewRing(capacity)
		pushN(ring, pushes)
		all := ring.Snapshot()

		for n := -1; n <= capacity+3; n++ {
			k := min(max(n, 0), len(all))
			want := all[len(all)-k:]
			got := ring.SnapshotRecent(n)
			if len(got) != len(want) {
				t.Fatalf("pushes=%d n=%d: expected %d samples, got %d", pushes, n, len(want), len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("pushes=%d n=%d index %d: expected %v, got %v", pushes, n, i, want[i], got[i])
				}
			}
		}
	}
}

func TestRingIdempotentRead(t *testing.T) {
	ring := NewRing(3)
	pushN(ring, 5)

	first := ring.Snapshot()
	second := ring.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical snapshots, got %v and %v", first, second)
	}
}

func TestRingSnapshotIsCopy(t *testing.T) {
	ring := NewRing(3)
	pushN(ring, 2)

	snap := ring.Snapshot()
	snap[0].Val = -1
	if got := ring.Snapshot()[0].Val; got != 10 {
		t.Fatalf("expected ring contents unaffected by caller mutation, got %v", got)
	}
}

func TestRingLatest(t *testing.T) {
	ring := NewRing(2)
	pushN(ring, 3)

	latest, ok := ring.Latest()
	if !ok {
		t.Fatal("expected a latest sample")
	}
	if latest != (Sample{Ts: 3, Val: 30}) {
		t.Fatalf("expected (3,30), got %v", latest)
	}
}

func TestNewRingRejectsNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero capacity")
		}
	}()
	NewRing(0)
}

// Run with -race: snapshots taken during pushes must always be a
// contiguous run of what the writer produced.
func TestRingConcurrentPushAndSnapshot(t *testing.T) {
	const capacity = 64
	const pushes = 20000
	ring := NewRing(capacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= pushes; i++ {
			ring.Push(float64(i), float64(i))
		}
	}()

	for i := 0; i < 500; i++ {
		snap := ring.Snapshot()
		for j := 1; j < len(snap); j++ {
			if snap[j].Ts != snap[j-1].Ts+1 {
				t.Fatalf("snapshot not contiguous at %d: %v then %v", j, snap[j-1], snap[j])
			}
		}
		for _, s := range snap {
			if s.Ts != s.Val {
				t.Fatalf("torn sample %v", s)
			}
		}
	}
	wg.Wait()
}
