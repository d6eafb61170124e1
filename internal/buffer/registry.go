package buffer

import (
	"slices"
	"strconv"
	"sync"
)

// ChannelID identifies a logical source of samples
type ChannelID int

func (c ChannelID) String() string {
	return strconv.Itoa(int(c))
}

// Registry manages one ring buffer per channel. Channels are created on
// first use, so the set of channels is open-ended.
type Registry struct {
	capacity int
	rings    map[ChannelID]*Ring
	mu       sync.RWMutex
}

// NewRegistry creates a registry whose rings hold capacity samples each
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		rings:    make(map[ChannelID]*Ring),
	}
}

// Capacity returns the per-channel ring size
func (r *Registry) Capacity() int {
	return r.capacity
}

// GetRing returns the ring buffer for a channel, creating if needed
func (r *Registry) GetRing(ch ChannelID) *Ring {
	r.mu.RLock()
	ring, exists := r.rings[ch]
	r.mu.RUnlock()

	if exists {
		return ring
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ring, exists = r.rings[ch]; exists {
		return ring
	}

	ring = NewRing(r.capacity)
	r.rings[ch] = ring
	return ring
}

// Lookup returns the ring for a channel without creating it
func (r *Registry) Lookup(ch ChannelID) (*Ring, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ring, ok := r.rings[ch]
	return ring, ok
}

// Channels returns all known channels in ascending order
func (r *Registry) Channels() []ChannelID {
	r.mu.RLock()
	result := make([]ChannelID, 0, len(r.rings))
	for ch := range r.rings {
		result = append(result, ch)
	}
	r.mu.RUnlock()

	slices.Sort(result)
	return result
}

// Snapshot returns a copy of every channel's history. Each channel is
// copied under its own lock; channels are not captured at one instant.
func (r *Registry) Snapshot() map[ChannelID][]Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[ChannelID][]Sample, len(r.rings))
	for ch, ring := range r.rings {
		snapshot[ch] = ring.Snapshot()
	}
	return snapshot
}
