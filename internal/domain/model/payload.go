package model

import (
	"time"

	"github.com/google/uuid"
)

// Format identifies which decoder produced a RawPayload.
type Format string

const (
	FormatJSON      Format = "json"
	FormatBinary    Format = "binary"
	FormatSynthetic Format = "synthetic"
)

// RawPayload is a decoded but not yet normalized inhalation record. Pointer
// fields are nil when the source did not carry a number for them.
type RawPayload struct {
	Format        Format   `json:"-"`
	TS            *int64   `json:"ts,omitempty"`
	Strength      *float64 `json:"strength,omitempty"`
	Force         *float64 `json:"force,omitempty"`
	Duration      *float64 `json:"duration,omitempty"`
	InhaleMS      *float64 `json:"inhale_ms,omitempty"`
	ShakeOK       bool     `json:"shakeOk"`
	OrientationOK bool     `json:"orientationOk"`
}

// Float64 returns a pointer to v, for building payloads.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v, for building payloads.
func Int64(v int64) *int64 { return &v }

// Envelope carries one unit of ingestion work through the queue. Exactly one
// of Data and Synthetic is set.
type Envelope struct {
	ID         uuid.UUID
	Source     string
	ReceivedAt time.Time
	Data       []byte
	Synthetic  *RawPayload
}

// NewPayloadEnvelope wraps raw transport bytes.
func NewPayloadEnvelope(source string, data []byte, receivedAt time.Time) Envelope {
	return Envelope{ID: uuid.New(), Source: source, ReceivedAt: receivedAt, Data: data}
}

// NewSyntheticEnvelope wraps a locally produced payload that skips decoding.
func NewSyntheticEnvelope(source string, raw RawPayload, receivedAt time.Time) Envelope {
	raw.Format = FormatSynthetic
	return Envelope{ID: uuid.New(), Source: source, ReceivedAt: receivedAt, Synthetic: &raw}
}
