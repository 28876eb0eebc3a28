// Package repository holds the rolling event store and the patient registry,
// both persisted as whole snapshots through a blob.Store.
package repository

import (
	"context"
	"time"

	"github.com/smartinhale/adherence/internal/domain/model"
)

// Blob keys.
const (
	EventsKey   = "si_events"
	PatientsKey = "si_patients"
)

// DefaultCapacity is the number of events retained by default.
const DefaultCapacity = 1000

// Snapshot is an immutable, newest-first view of the store. Callers must not
// modify Events.
type Snapshot struct {
	Events    []model.Event
	Version   uint64
	UpdatedAt time.Time
}

// Len returns the number of events in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// Events is the read/write surface the ingestion pipeline depends on.
type Events interface {
	// Ingest prepends e, evicting the oldest event past capacity, and persists.
	Ingest(ctx context.Context, e model.Event) error
	// Clear removes every event and persists the empty list.
	Clear(ctx context.Context) error
	// Snapshot returns the current immutable view.
	Snapshot() *Snapshot
}
