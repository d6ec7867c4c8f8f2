package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// handleListRuns returns run summaries, newest first. ?limit= caps the list
// (default 50, at most 500).
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.Runs(r.Context(), parseIntParam(r, "limit", 50, 500))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one full report.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleRunPage renders one report as HTML.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := runPage(rep).Render(r.Context(), w); err != nil {
		s.respondError(w, r, fmt.Errorf("render run page: %w", err))
	}
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (core.RunReport, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidRunID, err))
		return core.RunReport{}, false
	}
	rep, err := s.service.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return core.RunReport{}, false
	}
	return rep, true
}
