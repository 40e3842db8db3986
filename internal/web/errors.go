package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with full technical detail and the request ID, then
// returned to the client as a user message from submit.MapError: JSON for
// API clients, a bare fragment for HTMX, and a full page otherwise.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/divinahealthcare/site/internal/logging"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/views"
)

// errNotFound is returned for unknown pages and catalog ids.
var errNotFound = errors.New("not found")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// userMessage maps err for display. Lookups miss with NOTFOUND; everything
// else goes through the submission taxonomy.
func userMessage(err error) submit.UserMessage {
	if errors.Is(err, errNotFound) {
		return submit.UserMessage{
			Message: "We couldn't find that page.",
			Action:  "Check the address or head back to the home page.",
			Code:    "NOTFOUND",
		}
	}
	return submit.MapError(err)
}

// respondError logs err and writes a user-friendly response in the format
// the client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := userMessage(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		s.renderFragment(w, r, statusCode, views.ErrorPage(statusCode, msg))
	case wantsJSON(r):
		respondErrorJSON(w, msg, statusCode)
	default:
		s.renderPage(w, r, statusCode, s.page("Error", ""), views.ErrorPage(statusCode, msg))
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg submit.UserMessage, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderPage writes body inside the site layout.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, p views.Page, body templ.Component) {
	s.renderFragment(w, r, status, views.Layout(p, body))
}

// renderFragment writes c without the layout.
func (s *Server) renderFragment(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
