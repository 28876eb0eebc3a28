// Package codec decodes inhaler payloads. A payload is tried as a UTF-8 JSON
// object first and falls back to a fixed 17-byte big-endian binary record:
//
//	[0:8]   uint64  timestamp, ms since epoch
//	[8:12]  float32 strength
//	[12:16] float32 duration, seconds
//	[16]    flags: bit0 shakeOk, bit1 orientationOk
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/smartinhale/adherence/internal/domain/model"
)

// BinarySize is the length of a binary record. Longer buffers are accepted
// and their trailing bytes ignored.
const BinarySize = 17

const (
	flagShakeOK       = 1 << 0
	flagOrientationOK = 1 << 1
)

// Decode interprets buf as JSON and, failing that, as a binary record.
func Decode(buf []byte) (model.RawPayload, error) {
	if len(buf) == 0 {
		return model.RawPayload{}, fmt.Errorf("%w: %w", ErrUndecodable, ErrEmptyPayload)
	}
	raw, jsonErr := DecodeJSON(buf)
	if jsonErr == nil {
		return raw, nil
	}
	raw, binErr := DecodeBinary(buf)
	if binErr == nil {
		return raw, nil
	}
	return model.RawPayload{}, fmt.Errorf("%w: json: %v; binary: %w", ErrUndecodable, jsonErr, binErr)
}

// DecodeJSON parses buf as a JSON object. Numeric fields that hold anything
// other than a JSON number are left unset; flags use JSON truthiness.
func DecodeJSON(buf []byte) (model.RawPayload, error) {
	if !utf8.Valid(buf) {
		return model.RawPayload{}, ErrInvalidUTF8
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(buf, &fields); err != nil {
		return model.RawPayload{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if fields == nil {
		// literal null
		return model.RawPayload{}, ErrNotObject
	}

	raw := model.RawPayload{Format: model.FormatJSON}
	if v, err := number(fields["ts"]); err == nil && v >= math.MinInt64 && v < math.MaxInt64 {
		ts := int64(v)
		raw.TS = &ts
	}
	raw.Strength = numberPtr(fields["strength"])
	raw.Force = numberPtr(fields["force"])
	raw.Duration = numberPtr(fields["duration"])
	raw.InhaleMS = numberPtr(fields["inhale_ms"])
	raw.ShakeOK = truthy(fields["shakeOk"])
	raw.OrientationOK = truthy(fields["orientationOk"])
	return raw, nil
}

// DecodeBinary reads the fixed binary layout from the first BinarySize bytes.
func DecodeBinary(buf []byte) (model.RawPayload, error) {
	if len(buf) < BinarySize {
		return model.RawPayload{}, fmt.Errorf("%w: got %d", ErrShortPayload, len(buf))
	}
	raw := model.RawPayload{Format: model.FormatBinary}

	if ts := binary.BigEndian.Uint64(buf[0:8]); ts <= math.MaxInt64 {
		v := int64(ts)
		raw.TS = &v
	}
	strength := float64(math.Float32frombits(binary.BigEndian.Uint32(buf[8:12])))
	duration := float64(math.Float32frombits(binary.BigEndian.Uint32(buf[12:16])))
	raw.Strength = &strength
	raw.Duration = &duration

	flags := buf[16]
	raw.ShakeOK = flags&flagShakeOK != 0
	raw.OrientationOK = flags&flagOrientationOK != 0
	return raw, nil
}

// EncodeBinary writes e in the binary layout. Strength and duration lose
// precision to float32.
func EncodeBinary(e model.Event) []byte {
	buf := make([]byte, BinarySize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.TS))
	binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(float32(e.Strength)))
	binary.BigEndian.PutUint32(buf[12:16], math.Float32bits(float32(e.Duration)))
	var flags byte
	if e.ShakeOK {
		flags |= flagShakeOK
	}
	if e.OrientationOK {
		flags |= flagOrientationOK
	}
	buf[16] = flags
	return buf
}

// EncodeJSON writes e as a JSON object accepted by DecodeJSON.
func EncodeJSON(e model.Event) ([]byte, error) {
	return json.Marshal(e)
}

func number(msg json.RawMessage) (float64, error) {
	if len(msg) == 0 {
		return 0, errInvalidNumber
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errInvalidNumber
	}
	return f, nil
}

func numberPtr(msg json.RawMessage) *float64 {
	f, err := number(msg)
	if err != nil {
		return nil
	}
	return &f
}

// truthy follows JavaScript truthiness for a JSON value.
func truthy(msg json.RawMessage) bool {
	if len(msg) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}
