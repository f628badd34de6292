package api

import (
	"net/http"

	"github.com/eduflow-ai/eduflow/internal/coordinator"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.coordinator.Health(r.Context())

	status := http.StatusOK
	if report.Status == coordinator.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
