package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/domain/connstate"
)

// connectionRequest is the body of PUT /v1/connection. State is stored
// verbatim; Device, when present, replaces the known device details.
type connectionRequest struct {
	State  string                `json:"state"`
	Device *connstate.DeviceInfo `json:"device"`
}

// handleGetConnection handles GET /v1/connection.
func (s *Server) handleGetConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.ConnectionStatus())
}

// handlePutConnection handles PUT /v1/connection.
func (s *Server) handlePutConnection(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_connection"
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req connectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.State == "" && req.Device == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("state or device is required")))
		return
	}

	st := s.deps.ConnectionStatus()
	if req.Device != nil {
		st = s.deps.SetDevice(req.Device)
	}
	if req.State != "" {
		st = s.deps.PublishState(r.Context(), req.State)
	}
	writeJSON(w, http.StatusOK, st)
}
