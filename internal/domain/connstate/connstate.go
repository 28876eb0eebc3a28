// Package connstate holds the transport's connection lifecycle string and
// fans changes out to subscribers. States are stored verbatim; the well-known
// values below are conventions of the transport, not enforced here.
package connstate

import (
	"strings"
	"sync"
	"time"
)

// Well-known lifecycle states.
const (
	Idle         = "idle"
	Requesting   = "requesting"
	Connecting   = "connecting"
	Connected    = "connected"
	Disconnected = "disconnected"

	errorPrefix = "error:"
)

const defaultSubscriberBuffer = 16

// ErrorState builds the "error:<message>" state.
func ErrorState(msg string) string {
	return errorPrefix + msg
}

// IsError reports whether state was built by ErrorState.
func IsError(state string) bool {
	return strings.HasPrefix(state, errorPrefix)
}

// DeviceInfo describes the connected device, when known.
type DeviceInfo struct {
	Name    string `json:"name"`
	Battery *int   `json:"battery,omitempty"` // percent
}

// Status is the current state and when it was entered.
type Status struct {
	State  string      `json:"state"`
	Since  time.Time   `json:"since"`
	Device *DeviceInfo `json:"device"`
}

// Notifier is safe for concurrent use.
type Notifier struct {
	mu     sync.RWMutex
	status Status
	subs   map[uint64]chan Status
	nextID uint64
	buffer int
	now    func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSubscriberBuffer sets each subscriber channel's capacity.
func WithSubscriberBuffer(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.buffer = size
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// New returns a Notifier in the idle state.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		subs:   make(map[uint64]chan Status),
		buffer: defaultSubscriberBuffer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.status = Status{State: Idle, Since: n.now()}
	return n
}

// Publish records state and notifies subscribers. An empty state means idle.
// Subscribers that are not keeping up miss the update.
func (n *Notifier) Publish(state string) Status {
	if state == "" {
		state = Idle
	}
	n.mu.Lock()
	n.status.State = state
	n.status.Since = n.now()
	st := n.snapshotLocked()
	n.broadcastLocked(st)
	n.mu.Unlock()
	return st
}

// SetDevice records device details. A nil info clears them.
func (n *Notifier) SetDevice(info *DeviceInfo) Status {
	n.mu.Lock()
	if info != nil {
		cp := *info
		n.status.Device = &cp
	} else {
		n.status.Device = nil
	}
	st := n.snapshotLocked()
	n.broadcastLocked(st)
	n.mu.Unlock()
	return st
}

// Current returns the latest status.
func (n *Notifier) Current() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snapshotLocked()
}

// Subscribe returns a channel of status updates and a cancel func that
// closes it. The current status is delivered first.
func (n *Notifier) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, n.buffer)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	ch <- n.snapshotLocked()
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			close(ch)
			n.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) snapshotLocked() Status {
	st := n.status
	if st.Device != nil {
		d := *st.Device
		st.Device = &d
	}
	return st
}

func (n *Notifier) broadcastLocked(st Status) {
	for _, ch := range n.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
