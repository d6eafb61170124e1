package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yourorg/liveview/internal/buffer"
)

// ErrMalformedSample marks an inbound unit that could not be turned into a sample
var ErrMalformedSample = errors.New("malformed sample")

// Message is the wire shape of one sample as sent by a source.
// Pointer fields distinguish a missing field from a zero value.
type Message struct {
	Timestamp *string  `json:"timestamp" cbor:"timestamp"`
	Value     *float64 `json:"value" cbor:"value"`
	ID        *int64   `json:"id" cbor:"id"`
}

// Decoded is a validated sample together with its channel
type Decoded struct {
	Channel buffer.ChannelID
	Value   float64
	Ts      float64
}

// Timestamp layouts accepted by ParseTimestamp. Zone-less layouts are
// interpreted in the decoder's location.
var zonedLayouts = []string{
	time.RFC3339Nano,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp converts a date-time string to seconds since the epoch
func ParseTimestamp(s string, loc *time.Location) (float64, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return epochSeconds(t), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return epochSeconds(t), nil
		}
	}
	return 0, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedSample, s)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// Decoder turns raw messages into samples
type Decoder struct {
	Location *time.Location
}

// DecodeJSON parses a JSON text frame and validates it
func (d Decoder) DecodeJSON(raw []byte) (Decoded, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	return d.Validate(msg)
}

// Validate checks that every field is present and well formed
func (d Decoder) Validate(msg Message) (Decoded, error) {
	if msg.Timestamp == nil {
		return Decoded{}, fmt.Errorf("%w: missing timestamp", ErrMalformedSample)
	}
	if msg.Value == nil {
		return Decoded{}, fmt.Errorf("%w: missing value", ErrMalformedSample)
	}
	if math.IsNaN(*msg.Value) || math.IsInf(*msg.Value, 0) {
		return Decoded{}, fmt.Errorf("%w: value %v is not finite", ErrMalformedSample, *msg.Value)
	}
	if msg.ID == nil {
		return Decoded{}, fmt.Errorf("%w: missing id", ErrMalformedSample)
	}
	if *msg.ID <= 0 {
		return Decoded{}, fmt.Errorf("%w: channel id %d is not positive", ErrMalformedSample, *msg.ID)
	}

	ts, err := ParseTimestamp(*msg.Timestamp, d.Location)
	if err != nil {
		return Decoded{}, err
	}

	return Decoded{
		Channel: buffer.ChannelID(*msg.ID),
		Value:   *msg.Value,
		Ts:      ts,
	}, nil
}

// NewMessage builds a wire message, mainly for sources and tests
func NewMessage(id int64, value float64, timestamp string) Message {
	return Message{Timestamp: &timestamp, Value: &value, ID: &id}
}
