package natsbridge

import "errors"

var (
	// ErrConnect is returned when the bus cannot be reached.
	ErrConnect = errors.New("nats connect failed")

	// ErrSubscribe is returned when a subject subscription fails.
	ErrSubscribe = errors.New("nats subscribe failed")
)
