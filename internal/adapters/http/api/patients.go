package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/adapters/repository"
	service "github.com/smartinhale/adherence/internal/app"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/logger"
)

type patientRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	DeviceID string `json:"deviceId" validate:"required,max=200"`
}

type patientResponse struct {
	model.Patient
	Warning string `json:"warning,omitempty"`
}

// handleListPatients handles GET /v1/patients.
func (s *Server) handleListPatients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Patients())
}

// handlePostPatient handles POST /v1/patients.
func (s *Server) handlePostPatient(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_patient"
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req patientRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := s.deps.AddPatient(r.Context(), req.Name, req.DeviceID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, patientResponse{Patient: p})
	case errors.Is(err, repository.ErrInvalidPatient):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrPersist):
		s.log.Warn(r.Context(), "patient added but not persisted", logger.Error(err))
		writeJSON(w, http.StatusCreated, patientResponse{Patient: p, Warning: err.Error()})
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		s.log.Error(r.Context(), "add patient failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
	}
}
