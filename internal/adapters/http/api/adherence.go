package api

import "net/http"

// handleAdherence handles GET /v1/adherence.
func (s *Server) handleAdherence(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Adherence())
}

// handleDailyAggregate handles GET /v1/aggregates/daily.
func (s *Server) handleDailyAggregate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.DailyAggregate())
}

// handleTechnique handles GET /v1/technique.
func (s *Server) handleTechnique(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.TechniqueIssues())
}

// handleDashboard handles GET /v1/dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Dashboard())
}
