package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted appropriately based on request type (HTMX, JSON, or HTML)
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusFor(err))
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered in appropriate format for the client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/menas/internal/core"
	"github.com/JonMunkholm/menas/internal/logging"
	"github.com/JonMunkholm/menas/internal/web/views"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Fields  []core.ValidationError `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for an error returned by the core package.
func statusFor(err error) int {
	var se *core.SubmitError
	switch {
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEditorNotFound),
		errors.Is(err, core.ErrDatasetNotFound),
		errors.Is(err, core.ErrSchemaNotFound),
		errors.Is(err, core.ErrNoSchemaFile),
		errors.Is(err, core.ErrMappingTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionAlreadyOpen),
		errors.Is(err, core.ErrSessionNotEditing),
		errors.Is(err, core.ErrCommitInProgress),
		errors.Is(err, core.ErrStaleResolution),
		errors.Is(err, core.ErrRuleTypeLocked),
		errors.Is(err, core.ErrOrderOutOfRange),
		errors.Is(err, core.ErrRuleChanged):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownRuleType),
		errors.Is(err, core.ErrNoSchemaField),
		errors.Is(err, core.ErrIndexOutOfRange),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyCommits):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	cause := err
	var se *core.SubmitError
	if errors.As(err, &se) {
		// Field errors travel separately; the code names the cause.
		cause = se.Unwrap()
	}
	userMsg := core.MapError(cause)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	// Return user-friendly error based on request type
	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, statusCode)
	} else if wantsJSON(r) {
		var fields []core.ValidationError
		if se != nil {
			fields = se.Errors
		}
		respondErrorJSON(w, userMsg, statusCode, fields...)
	} else {
		respondErrorHTML(w, cause, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int, fields ...core.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Fields:  fields,
	})
}

// respondErrorHTML writes a plain text error response.
func respondErrorHTML(w http.ResponseWriter, err error, statusCode int) {
	http.Error(w, core.FormatUserError(err), statusCode)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
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
