package buffer

import (
	"reflect"
	"sync"
	"testing"
)

func TestRegistryCreatesRingsLazily(t *testing.T) {
	reg := NewRegistry(10)

	if _, ok := reg.Lookup(1); ok {
		t.Fatal("expected no ring before first use")
	}

	ring := reg.GetRing(1)
	if ring.Cap() != 10 {
		t.Fatalf("expected capacity 10, got %d", ring.Cap())
	}
	if again := reg.GetRing(1); again != ring {
		t.Fatal("expected the same ring on second lookup")
	}
	if got, ok := reg.Lookup(1); !ok || got != ring {
		t.Fatal("expected Lookup to return the created ring")
	}
}

func TestRegistryDefaultCapacity(t *testing.T) {
	if DefaultCapacity != 1000 {
		t.Fatalf("expected default capacity 1000, got %d", DefaultCapacity)
	}
	reg := NewRegistry(0)
	if reg.Capacity() != DefaultCapacity {
		t.Fatalf("expected capacity %d, got %d", DefaultCapacity, reg.Capacity())
	}
	if ring := reg.GetRing(3); ring.Cap() != DefaultCapacity {
		t.Fatalf("expected ring capacity %d, got %d", DefaultCapacity, ring.Cap())
	}
}

func TestRegistryChannelsSorted(t *testing.T) {
	reg := NewRegistry(4)
	for _, ch := range []ChannelID{7, 2, 42, 1} {
		reg.GetRing(ch)
	}

	want := []ChannelID{1, 2, 7, 42}
	if got := reg.Channels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewRegistry(2)
	reg.GetRing(1).Push(10, 1)
	reg.GetRing(2).Push(20, 2)
	reg.GetRing(2).Push(21, 3)
	reg.GetRing(2).Push(22, 4)

	snap := reg.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(snap))
	}
	if want := []Sample{{Ts: 3, Val: 21}, {Ts: 4, Val: 22}}; !reflect.DeepEqual(snap[2], want) {
		t.Fatalf("channel 2: expected %v, got %v", want, snap[2])
	}
}

func TestRegistryConcurrentGetRing(t *testing.T) {
	reg := NewRegistry(8)

	var wg sync.WaitGroup
	rings := make([]*Ring, 16)
	for i := range rings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rings[i] = reg.GetRing(3)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(rings); i++ {
		if rings[i] != rings[0] {
			t.Fatal("expected every caller to receive the same ring")
		}
	}
}
