package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type failingBlob struct {
	*blob.Memory
	failSave bool
	failLoad bool
}

var errDown = errors.New("storage unavailable")

func (f *failingBlob) Save(ctx context.Context, key string, value []byte) error {
	if f.failSave {
		return errDown
	}
	return f.Memory.Save(ctx, key, value)
}

func (f *failingBlob) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failLoad {
		return nil, errDown
	}
	return f.Memory.Load(ctx, key)
}

func ev(ts int64) model.Event {
	return model.Event{TS: ts, Strength: 0.8, Duration: 1, ShakeOK: true, OrientationOK: true}
}

func persisted(t *testing.T, b blob.Store) []model.Event {
	t.Helper()
	data, err := b.Load(context.Background(), EventsKey)
	if err != nil {
		t.Fatalf("load persisted events: %v", err)
	}
	var out []model.Event
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode persisted events: %v", err)
	}
	return out
}

func TestEventStore_IngestNewestFirst(t *testing.T) {
	ctx := context.Background()
	b := blob.NewMemory()
	s := NewEventStore(b)

	for ts := int64(1); ts <= 3; ts++ {
		if err := s.Ingest(ctx, ev(ts)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	snap := s.Snapshot()
	if snap.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", snap.Len())
	}
	for i, want := range []int64{3, 2, 1} {
		if snap.Events[i].TS != want {
			t.Errorf("position %d: expected ts %d, got %d", i, want, snap.Events[i].TS)
		}
	}
	if snap.Version != 3 {
		t.Errorf("expected version 3, got %d", snap.Version)
	}

	got := persisted(t, b)
	if len(got) != 3 || got[0].TS != 3 {
		t.Errorf("persisted snapshot does not match memory: %+v", got)
	}
}

func TestEventStore_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore(blob.NewMemory(), WithCapacity(DefaultCapacity))

	for ts := int64(1); ts <= DefaultCapacity+1; ts++ {
		if err := s.Ingest(ctx, ev(ts)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	snap := s.Snapshot()
	if snap.Len() != DefaultCapacity {
		t.Fatalf("expected %d events, got %d", DefaultCapacity, snap.Len())
	}
	if snap.Events[0].TS != DefaultCapacity+1 {
		t.Errorf("newest event should be first, got ts %d", snap.Events[0].TS)
	}
	if last := snap.Events[len(snap.Events)-1].TS; last != 2 {
		t.Errorf("oldest retained event should be ts 2, got %d", last)
	}
}

func TestEventStore_SnapshotsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore(blob.NewMemory(), WithCapacity(2))
	_ = s.Ingest(ctx, ev(1))
	before := s.Snapshot()

	_ = s.Ingest(ctx, ev(2))
	_ = s.Ingest(ctx, ev(3))

	if before.Len() != 1 || before.Events[0].TS != 1 {
		t.Errorf("earlier snapshot changed: %+v", before.Events)
	}
}

func TestEventStore_Clear(t *testing.T) {
	ctx := context.Background()
	b := blob.NewMemory()
	s := NewEventStore(b)
	_ = s.Ingest(ctx, ev(1))

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
	if got := persisted(t, b); len(got) != 0 {
		t.Errorf("expected empty persisted list, got %+v", got)
	}
	if err := s.Clear(ctx); err != nil {
		t.Errorf("clearing an empty store should succeed: %v", err)
	}
}

func TestEventStore_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	b := &failingBlob{Memory: blob.NewMemory(), failSave: true}
	s := NewEventStore(b)

	err := s.Ingest(ctx, ev(1))
	if !errors.Is(err, ErrPersist) || !errors.Is(err, errDown) {
		t.Fatalf("expected wrapped persist error, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("in-memory event should remain after persist failure")
	}
}

func TestEventStore_LoadInitial(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key leaves store empty", func(t *testing.T) {
		s := NewEventStore(blob.NewMemory())
		if err := s.LoadInitial(ctx); err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("expected empty store")
		}
	})

	t.Run("restores and truncates to capacity", func(t *testing.T) {
		b := blob.NewMemory()
		data, _ := json.Marshal([]model.Event{ev(3), ev(2), ev(1)})
		_ = b.Save(ctx, EventsKey, data)

		s := NewEventStore(b, WithCapacity(2))
		if err := s.LoadInitial(ctx); err != nil {
			t.Fatalf("load: %v", err)
		}
		snap := s.Snapshot()
		if snap.Len() != 2 || snap.Events[0].TS != 3 || snap.Events[1].TS != 2 {
			t.Errorf("unexpected restored events: %+v", snap.Events)
		}
	})

	t.Run("corrupt snapshot is ignored", func(t *testing.T) {
		b := blob.NewMemory()
		_ = b.Save(ctx, EventsKey, []byte("{not json"))
		s := NewEventStore(b)
		if err := s.LoadInitial(ctx); err != nil {
			t.Fatalf("corrupt snapshot should not fail load: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("expected empty store")
		}
	})

	t.Run("backend failure is reported", func(t *testing.T) {
		s := NewEventStore(&failingBlob{Memory: blob.NewMemory(), failLoad: true})
		if err := s.LoadInitial(ctx); !errors.Is(err, ErrLoad) {
			t.Errorf("expected ErrLoad, got %v", err)
		}
	})
}

func TestEventStore_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore(blob.NewMemory(), WithCapacity(50))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ts := int64(1); ts <= 200; ts++ {
			_ = s.Ingest(ctx, ev(ts))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := s.Snapshot()
				for j := 1; j < len(snap.Events); j++ {
					if snap.Events[j-1].TS < snap.Events[j].TS {
						t.Errorf("snapshot not newest-first")
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("expected 50 events, got %d", s.Len())
	}
}
