package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

// handleRun loads an uploaded file for an entity and answers with the run
// report. A run cut short by RUN_TIMEOUT answers 504 with the partial report.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := s.service.Entity(entity); err != nil {
		s.respondError(w, r, err)
		return
	}

	maxFile := s.cfg.Run.MaxFileSize
	cleanup, err := parseUpload(w, r, maxFile)
	defer cleanup()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	src, file, err := uploadedSource(r, maxFile)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	mapping, err := formMapping(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequestLogger(r.Context(), r)
	res, err := s.service.Run(ctx, service.RunRequest{Entity: entity, Source: src, Mapping: mapping})
	switch {
	case err == nil:
		if res.ReportPath != "" {
			w.Header().Set("X-Report-File", res.ReportPath)
		}
		writeJSON(w, http.StatusOK, res.Report)
	case errors.Is(err, context.DeadlineExceeded) && res.Report.RunID != uuid.Nil:
		writeJSON(w, http.StatusGatewayTimeout, res.Report)
	case errors.Is(err, context.Canceled):
		logging.FromContext(ctx).Warn("client went away during run", "run_id", res.Report.RunID)
	default:
		s.respondError(w, r, err)
	}
}
