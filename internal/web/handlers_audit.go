package web

import (
	"net/http"

	"github.com/JonMunkholm/sheet2neon/internal/service"
)

// handleAudit profiles an uploaded file without loading it. The optional
// "entity" form field adds rule violations to the audit.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
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

	a, err := s.service.Audit(withRequestLogger(r.Context(), r), service.AuditRequest{
		Entity:  r.FormValue("entity"),
		Source:  src,
		Mapping: mapping,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
