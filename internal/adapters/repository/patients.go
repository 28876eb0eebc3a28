package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// PatientRegistry is the static patient list. It is seeded with a default
// patient when nothing has been persisted.
type PatientRegistry struct {
	mu       sync.RWMutex
	patients []model.Patient
	seed     model.Patient
	blob     blob.Store
	log      logger.Logger
}

// NewPatientRegistry returns a registry holding only seed.
func NewPatientRegistry(b blob.Store, seed model.Patient) *PatientRegistry {
	return &PatientRegistry{
		patients: []model.Patient{seed},
		seed:     seed,
		blob:     b,
		log:      logger.Named("patients"),
	}
}

// Load restores the persisted list. A missing or empty list keeps the seed.
func (r *PatientRegistry) Load(ctx context.Context) error {
	data, err := r.blob.Load(ctx, PatientsKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	var patients []model.Patient
	if err := json.Unmarshal(data, &patients); err != nil {
		r.log.Warn(ctx, "discarding unreadable patient list", logger.Error(err))
		return nil
	}
	if len(patients) == 0 {
		return nil
	}
	r.mu.Lock()
	r.patients = patients
	r.mu.Unlock()
	return nil
}

// List returns a copy of the registered patients.
func (r *PatientRegistry) List() []model.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Patient, len(r.patients))
	copy(out, r.patients)
	return out
}

// Add registers a patient with a generated id and persists the list. The
// patient is kept even when persisting fails.
func (r *PatientRegistry) Add(ctx context.Context, name, deviceID string) (model.Patient, error) {
	name, deviceID = strings.TrimSpace(name), strings.TrimSpace(deviceID)
	if name == "" || deviceID == "" {
		return model.Patient{}, fmt.Errorf("%w: name and deviceId are required", ErrInvalidPatient)
	}
	p := model.Patient{ID: uuid.NewString(), Name: name, DeviceID: deviceID}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients = append(r.patients, p)

	data, err := json.Marshal(r.patients)
	if err == nil {
		err = r.blob.Save(ctx, PatientsKey, data)
	}
	if err != nil {
		metrics.RecordPersistError(PatientsKey)
		r.log.Error(ctx, "persist patients failed", logger.Error(err))
		return p, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return p, nil
}
