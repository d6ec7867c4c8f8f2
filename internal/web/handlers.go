package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

// handleListEntities returns every entity with the active rule set applied.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	defs, err := s.service.Entities()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Describe(defs))
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string                `json:"status"`
	Database string                `json:"database"`
	Runs     service.LimiterStatus `json:"runs"`
}

// handleHealth pings the store. It answers 503 when the store is down so a
// load balancer stops sending uploads.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Runs: s.service.Limiter().Status()}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
