// Package generator produces synthetic sample streams: a sawtooth and a
// sine wave, each tagged with a fixed channel id. It backs the
// sample-source command used for demos and end-to-end tests.
package generator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yourorg/liveview/internal/ingest"
)

// TimestampLayout is the zone-less local time format sources emit
const TimestampLayout = "2006-01-02T15:04:05.000"

// Control adjusts a running waveform. Field names follow the wire
// format sources have always accepted.
type Control struct {
	ValueMin  *float64 `json:"Value_min,omitempty"`
	ValueMax  *float64 `json:"Value_max,omitempty"`
	Frequency *float64 `json:"Frequency,omitempty"`
}

// Waveform yields successive values
type Waveform interface {
	Next() float64
	Apply(Control) error
	Name() string
}

// Sawtooth counts up by one from Min to Max and wraps back to Min
type Sawtooth struct {
	mu    sync.Mutex
	min   float64
	max   float64
	value float64
}

// NewSawtooth creates a sawtooth over [min, max]
func NewSawtooth(min, max float64) *Sawtooth {
	return &Sawtooth{min: min, max: max, value: min}
}

func (s *Sawtooth) Name() string { return "sawtooth" }

// Next advances the wave and returns the new value
func (s *Sawtooth) Next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value >= s.max {
		s.value = s.min
	} else {
		s.value++
	}
	return s.value
}

// Apply updates the range. Frequency is ignored.
func (s *Sawtooth) Apply(c Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi, err := applyRange(s.min, s.max, c)
	if err != nil {
		return err
	}
	s.min, s.max = lo, hi
	if s.value < lo || s.value > hi {
		s.value = lo
	}
	return nil
}

// Sine oscillates between Min and Max. Each sample advances the argument of
// the sine by frequency*0.01 radians, so frequency is a rate per sample,
// not per second.
type Sine struct {
	mu        sync.Mutex
	min       float64
	max       float64
	frequency float64
	phase     float64
}

// NewSine creates a sine wave over [min, max]
func NewSine(min, max, frequency float64) *Sine {
	return &Sine{min: min, max: max, frequency: frequency}
}

func (s *Sine) Name() string { return "sine" }

// Next returns the current value and advances the phase
func (s *Sine) Next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	amplitude := (s.max - s.min) / 2
	offset := (s.max + s.min) / 2
	v := amplitude*math.Sin(s.frequency*s.phase) + offset
	s.phase += 0.01
	return v
}

// Apply updates frequency and range
func (s *Sine) Apply(c Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi, err := applyRange(s.min, s.max, c)
	if err != nil {
		return err
	}
	if c.Frequency != nil {
		if *c.Frequency <= 0 {
			return fmt.Errorf("frequency must be positive, got %v", *c.Frequency)
		}
		s.frequency = *c.Frequency
	}
	s.min, s.max = lo, hi
	return nil
}

func applyRange(lo, hi float64, c Control) (float64, float64, error) {
	if c.ValueMin != nil {
		lo = *c.ValueMin
	}
	if c.ValueMax != nil {
		hi = *c.ValueMax
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("Value_min %v is greater than Value_max %v", lo, hi)
	}
	return lo, hi, nil
}

// NewWaveform builds a waveform by name
func NewWaveform(name string, min, max, frequency float64) (Waveform, error) {
	switch name {
	case "sawtooth":
		return NewSawtooth(min, max), nil
	case "sine":
		return NewSine(min, max, frequency), nil
	default:
		return nil, fmt.Errorf("unknown waveform %q (want sawtooth or sine)", name)
	}
}

// Generator stamps waveform values with a channel id and local time
type Generator struct {
	ID       int64
	Wave     Waveform
	Location *time.Location
}

// Sample produces the next wire message
func (g *Generator) Sample(now time.Time) ingest.Message {
	loc := g.Location
	if loc == nil {
		loc = time.Local
	}
	return ingest.NewMessage(g.ID, g.Wave.Next(), now.In(loc).Format(TimestampLayout))
}
