package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request id, then
// returned as a core.MapError message in the format the client asked for:
// an HTML alert for browser form posts, JSON for everything else under /api.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/logging"
	"github.com/JonMunkholm/classreg/internal/web/templates"
)

// ErrorResponse is the JSON body of every failed API call. Error is the
// short summary the original clients display; Message, Action and Code come
// from core.MapError.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message. summary, when
// not empty, replaces the mapped message in the Error field.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int, summary string) {
	msg := core.MapError(err)
	if summary == "" {
		summary = msg.Message
	}

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request rejected", args...)
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(summary, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:   summary,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var mbe *core.MalformedBatchError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.As(err, &mbe),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidQuery),
		errors.Is(err, core.ErrConfigKeyNotAllowed),
		errors.Is(err, core.ErrConfigKeyRequired),
		errors.Is(err, core.ErrConfigValueRequired),
		errors.Is(err, core.ErrInvalidDataType),
		errors.Is(err, core.ErrInvalidConfigValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// wantsHTML reports whether the client asked for HTML. API calls default to
// JSON; browser form posts send Accept: text/html.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	if strings.Contains(accept, "text/html") {
		return true
	}
	return !strings.HasPrefix(r.URL.Path, "/api/")
}

// requestID is the chi request id, echoed in the upload page footer.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
