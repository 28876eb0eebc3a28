// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/smartinhale/adherence/internal/app"
	"github.com/smartinhale/adherence/internal/domain/adherence"
	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestDependencies
	ReadDependencies
	ConnectionDependencies
	PatientDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	validate *validator.Validate
	log      logger.Logger

	corsOrigins []string
	rateLimit   int
	maxBody     int64
	mounts      []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		corsOrigins: []string{"*"},
		maxBody:     defaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.handleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.rateLimit > 0 {
				r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
			}
			r.Post("/payloads", MetricsMiddleware(s.handlePostPayload, "payloads"))
			r.Post("/events", MetricsMiddleware(s.handlePostEvent, "events"))
			r.Post("/events/test", MetricsMiddleware(s.handlePostTestEvent, "events_test"))
			r.Post("/events/simulate", MetricsMiddleware(s.handleSimulate, "events_simulate"))
		})
		r.Get("/events", MetricsMiddleware(s.handleListEvents, "events"))
		r.Delete("/events", MetricsMiddleware(s.handleClearEvents, "events"))
		r.Get("/events/export.csv", MetricsMiddleware(s.handleExportCSV, "events_export"))

		r.Get("/adherence", MetricsMiddleware(s.handleAdherence, "adherence"))
		r.Get("/aggregates/daily", MetricsMiddleware(s.handleDailyAggregate, "aggregates_daily"))
		r.Get("/technique", MetricsMiddleware(s.handleTechnique, "technique"))
		r.Get("/dashboard", MetricsMiddleware(s.handleDashboard, "dashboard"))

		r.Get("/connection", MetricsMiddleware(s.handleGetConnection, "connection"))
		r.Put("/connection", MetricsMiddleware(s.handlePutConnection, "connection"))

		r.Get("/patients", MetricsMiddleware(s.handleListPatients, "patients"))
		r.Post("/patients", MetricsMiddleware(s.handlePostPatient, "patients"))
	})

	for _, m := range s.mounts {
		r.Handle(m.pattern, m.handler)
	}
	return r
}

// IngestDependencies accept new events.
type IngestDependencies interface {
	// SubmitPayload queues raw device bytes. Returns false on backpressure.
	SubmitPayload(ctx context.Context, source string, data []byte) bool
	InjectEvent(ctx context.Context, raw model.RawPayload) bool
	InjectTestEvent(ctx context.Context) bool
	Simulate(ctx context.Context, n int) int
	ClearEvents(ctx context.Context) error
}

// ReadDependencies expose stored events and the metrics derived from them.
type ReadDependencies interface {
	Events(limit int) []adherence.ClassifiedEvent
	Capacity() int
	ExportCSV(w io.Writer) (int, error)
	Adherence() service.AdherenceView
	DailyAggregate() []model.DailyAggregate
	TechniqueIssues() model.TechniqueIssues
	Dashboard() service.Dashboard
}

// ConnectionDependencies read and update the transport lifecycle.
type ConnectionDependencies interface {
	PublishState(ctx context.Context, state string) connstate.Status
	SetDevice(info *connstate.DeviceInfo) connstate.Status
	ConnectionStatus() connstate.Status
}

// PatientDependencies manage the patient registry.
type PatientDependencies interface {
	Patients() []model.Patient
	AddPatient(ctx context.Context, name, deviceID string) (model.Patient, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

type ackResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
