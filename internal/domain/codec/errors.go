package codec

import "errors"

// Sentinel errors for payload decoding.
var (
	ErrInvalidUTF8   = errors.New("payload is not valid UTF-8")
	ErrNotObject     = errors.New("payload is not a JSON object")
	ErrShortPayload  = errors.New("binary payload shorter than 17 bytes")
	ErrUndecodable   = errors.New("payload is neither a JSON object nor a binary record")
	ErrEmptyPayload  = errors.New("payload is empty")
	errInvalidNumber = errors.New("not a finite number")
)

// Reason maps a decode error to a short metrics label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	case errors.Is(err, ErrShortPayload):
		return "short"
	default:
		return "undecodable"
	}
}
