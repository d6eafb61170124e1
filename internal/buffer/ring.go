package buffer

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the number of samples kept per channel when no
	// capacity is configured
	DefaultCapacity = 1000
)

// Sample represents a single observation: seconds since the epoch and a value
type Sample struct {
	Ts  float64 `json:"ts"`
	Val float64 `json:"val"`
}

// Time returns the sample timestamp as a time.Time
func (s Sample) Time() time.Time {
	sec, frac := math.Modf(s.Ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Ring is a fixed-capacity, overwrite-on-full buffer of samples for one channel.
// Push and every read take the same mutex, so a reader never sees a slot or
// the cursor from two different points in time.
type Ring struct {
	mu     sync.Mutex
	data   []Sample
	cursor int // next slot to be written
	count  int // occupied slots, never more than len(data)
	pushed uint64
}

// NewRing creates a ring buffer holding at most capacity samples
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic(fmt.Sprintf("buffer: capacity must be positive, got %d", capacity))
	}
	return &Ring{
		data: make([]Sample, capacity),
	}
}

// Push writes a sample at the cursor, overwriting the oldest one once full
func (r *Ring) Push(val, ts float64) {
	r.mu.Lock()
	r.data[r.cursor] = Sample{Ts: ts, Val: val}
	r.cursor = (r.cursor + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
	r.pushed++
	r.mu.Unlock()
}

// Snapshot returns a copy of all occupied samples in order (oldest to newest)
func (r *Ring) Snapshot() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLocked(r.count)
}

// SnapshotRecent returns the n most recently pushed samples, oldest first.
// n is clamped to the number of occupied slots.
func (r *Ring) SnapshotRecent(n int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > r.count {
		n = r.count
	}
	return r.lastLocked(n)
}

func (r *Ring) lastLocked(n int) []Sample {
	result := make([]Sample, n)
	size := len(r.data)
	start := (r.cursor - n + size) % size
	for i := 0; i < n; i++ {
		result[i] = r.data[(start+i)%size]
	}
	return result
}

// Latest returns the most recent sample
func (r *Ring) Latest() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return Sample{}, false
	}
	return r.data[(r.cursor-1+len(r.data))%len(r.data)], true
}

// Len returns the current number of occupied slots
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity of the ring
func (r *Ring) Cap() int {
	return len(r.data)
}

// Pushed returns the total number of samples ever pushed
func (r *Ring) Pushed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed
}
