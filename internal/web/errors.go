package web

// errors.go turns service errors into responses. Every error is logged with
// its technical text and the request id; the client gets the mapped message
// and code from core.MapError. API routes answer JSON, pages plain text.

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/extract"
	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/service"
	"github.com/JonMunkholm/sheet2neon/internal/store"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

var (
	errNoFile          = errors.New("no file provided")
	errUnsupportedFile = errors.New("unsupported file type")
	errInvalidRunID    = errors.New("invalid run id")
	errBadForm         = errors.New("invalid upload form")
)

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var cfgErr *core.ConfigurationError
	var extErr *core.ExtractionError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, service.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, extract.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errUnsupportedFile),
		errors.Is(err, errInvalidRunID), errors.Is(err, errBadForm):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		if strings.HasPrefix(cfgErr.Reason, "unknown entity") {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &extErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	requestID := chimw.GetReqID(r.Context())

	// Fatal run errors come from the caller's file or rule set, not from us.
	level := slog.LevelError
	if core.IsFatal(err) {
		level = slog.LevelWarn
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:     msg.Message,
		Message:   msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: requestID,
	})
}
