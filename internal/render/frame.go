// Package render turns store snapshots into frames and fans them out to
// drawing surfaces whenever the coordinator raises its redraw signal.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yourorg/liveview/internal/buffer"
)

// AxisPolicy selects how the shared x-axis is derived from the series
type AxisPolicy int

const (
	// AxisUnion spans from the earliest to the latest sample of any channel
	AxisUnion AxisPolicy = iota
	// AxisIntersection spans only the interval every non-empty channel covers
	AxisIntersection
)

func (p AxisPolicy) String() string {
	switch p {
	case AxisUnion:
		return "union"
	case AxisIntersection:
		return "intersection"
	default:
		return fmt.Sprintf("AxisPolicy(%d)", int(p))
	}
}

// Next returns the other policy
func (p AxisPolicy) Next() AxisPolicy {
	if p == AxisUnion {
		return AxisIntersection
	}
	return AxisUnion
}

// ParseAxisPolicy accepts "union" or "intersection"
func ParseAxisPolicy(s string) (AxisPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "union":
		return AxisUnion, nil
	case "intersection":
		return AxisIntersection, nil
	default:
		return 0, fmt.Errorf("unknown axis policy %q", s)
	}
}

// Range is a closed interval. The zero value is empty.
type Range struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"-"`
}

func (r Range) include(v float64) Range {
	if !r.Valid {
		return Range{Min: v, Max: v, Valid: true}
	}
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
	return r
}

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool {
	return r.Valid && v >= r.Min && v <= r.Max
}

// Width returns Max-Min, or 0 for an empty range
func (r Range) Width() float64 {
	if !r.Valid {
		return 0
	}
	return r.Max - r.Min
}

// Series is one channel's contribution to a frame
type Series struct {
	Channel buffer.ChannelID `json:"channel"`
	Samples []buffer.Sample  `json:"samples"`

	// Stored is the number of samples the store held before subsampling
	Stored int `json:"stored"`

	// Span covers the timestamps of Samples
	Span Range `json:"-"`
}

// Frame is a point-in-time copy of every channel, ready to draw
type Frame struct {
	Seq    uint64    `json:"seq"`
	Taken  time.Time `json:"taken"`
	Series []Series  `json:"series"`

	Union        Range `json:"-"`
	Intersection Range `json:"-"`
}

// XRange returns the x-axis for the given policy. An empty intersection
// falls back to the union so disjoint channels still render.
func (f Frame) XRange(policy AxisPolicy) Range {
	if policy == AxisIntersection && f.Intersection.Valid {
		return f.Intersection
	}
	return f.Union
}

// Channel finds the series for ch
func (f Frame) Channel(ch buffer.ChannelID) (Series, bool) {
	for _, s := range f.Series {
		if s.Channel == ch {
			return s, true
		}
	}
	return Series{}, false
}

// Points returns the total number of samples in the frame
func (f Frame) Points() int {
	n := 0
	for _, s := range f.Series {
		n += len(s.Samples)
	}
	return n
}

// SnapshotSource is the read side of the ingestion coordinator
type SnapshotSource interface {
	Channels() []buffer.ChannelID
	SnapshotAll(ch buffer.ChannelID) []buffer.Sample
	SnapshotRecent(ch buffer.ChannelID, n int) []buffer.Sample
}

// Options shape how a frame is built
type Options struct {
	// Subsample keeps every k-th sample of a channel, starting with the oldest.
	// Channels without an entry, or with k <= 1, keep every sample.
	Subsample map[buffer.ChannelID]int

	// Window limits each series to its most recent samples. Zero means the
	// whole store.
	Window int
}

// BuildFrame snapshots every channel known to src
func BuildFrame(src SnapshotSource, opts Options) Frame {
	channels := src.Channels()
	frame := Frame{
		Taken:  time.Now(),
		Series: make([]Series, 0, len(channels)),
	}

	nonEmpty := 0
	for _, ch := range channels {
		var samples []buffer.Sample
		if opts.Window > 0 {
			samples = src.SnapshotRecent(ch, opts.Window)
		} else {
			samples = src.SnapshotAll(ch)
		}

		series := Series{
			Channel: ch,
			Stored:  len(samples),
			Samples: Subsample(samples, opts.Subsample[ch]),
		}
		for _, s := range series.Samples {
			series.Span = series.Span.include(s.Ts)
		}
		frame.Series = append(frame.Series, series)

		if !series.Span.Valid {
			continue
		}
		nonEmpty++
		frame.Union = frame.Union.include(series.Span.Min).include(series.Span.Max)
		if nonEmpty == 1 {
			frame.Intersection = series.Span
		} else if frame.Intersection.Valid {
			frame.Intersection.Min = math.Max(frame.Intersection.Min, series.Span.Min)
			frame.Intersection.Max = math.Min(frame.Intersection.Max, series.Span.Max)
			if frame.Intersection.Min > frame.Intersection.Max {
				frame.Intersection = Range{}
			}
		}
	}

	return frame
}

// Subsample returns every k-th sample starting at index 0. The input is
// returned unchanged when k <= 1.
func Subsample(samples []buffer.Sample, k int) []buffer.Sample {
	if k <= 1 {
		return samples
	}
	out := make([]buffer.Sample, 0, (len(samples)+k-1)/k)
	for i := 0; i < len(samples); i += k {
		out = append(out, samples[i])
	}
	return out
}
