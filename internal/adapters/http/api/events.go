package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/smartinhale/adherence/internal/adapters/repository"
	service "github.com/smartinhale/adherence/internal/app"
	"github.com/smartinhale/adherence/internal/domain/codec"
	"github.com/smartinhale/adherence/pkg/logger"
)

const (
	defaultEventsLimit   = 50
	defaultSimulateCount = 5
	maxSimulateCount     = 100
)

// handlePostPayload handles POST /v1/payloads. The body is a raw device
// payload in either wire format; decoding happens asynchronously.
func (s *Server) handlePostPayload(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_payload"
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, codec.ErrEmptyPayload))
		return
	}
	if ok := s.deps.SubmitPayload(r.Context(), "http", body); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// handlePostEvent handles POST /v1/events. The body is a JSON payload that is
// validated up front and then injected past the decoder.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	raw, err := codec.DecodeJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if ok := s.deps.InjectEvent(r.Context(), raw); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Count: 1})
}

// handlePostTestEvent handles POST /v1/events/test.
func (s *Server) handlePostTestEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_test_event"
	if ok := s.deps.InjectTestEvent(r.Context()); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Count: 1})
}

// handleSimulate handles POST /v1/events/simulate?count=N.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "api.simulate"
	count, err := intParam(r, "count", defaultSimulateCount, maxSimulateCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	accepted := s.deps.Simulate(r.Context(), count)
	if accepted == 0 {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Count: accepted})
}

// handleClearEvents handles DELETE /v1/events. The events are gone from
// memory even when persisting the empty list fails; the response says so.
func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_events"
	err := s.deps.ClearEvents(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ackResponse{Status: "cleared"})
	case errors.Is(err, repository.ErrPersist):
		s.log.Warn(r.Context(), "events cleared but not persisted", logger.Error(err))
		writeJSON(w, http.StatusOK, ackResponse{Status: "cleared", Warning: err.Error()})
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		s.log.Error(r.Context(), "clear events failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
	}
}

// handleListEvents handles GET /v1/events?limit=N, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	limit, err := intParam(r, "limit", defaultEventsLimit, s.deps.Capacity())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Events(limit))
}

// handleExportCSV handles GET /v1/events/export.csv.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_csv"
	var buf bytes.Buffer
	if _, err := s.deps.ExportCSV(&buf); err != nil {
		s.log.Error(r.Context(), "csv export failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+service.CSVFilename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// intParam parses a positive integer query parameter, falling back to def
// when absent and rejecting values above upper.
func intParam(r *http.Request, name string, def, upper int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return min(def, upper), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	if n < 1 || n > upper {
		return 0, fmt.Errorf("%s must be between 1 and %d", name, upper)
	}
	return n, nil
}
