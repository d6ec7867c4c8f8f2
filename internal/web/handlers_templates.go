package web

import (
	"encoding/csv"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheet2neon/internal/logging"
)

// handleDownloadTemplate returns an empty CSV whose header row the entity
// accepts as is.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	headers, err := s.service.TemplateHeaders(entity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+entity+`_template.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		logging.FromContext(r.Context()).Error("write template", "entity", entity, "error", err)
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("write template", "entity", entity, "error", err)
	}
}
