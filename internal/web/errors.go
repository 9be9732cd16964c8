package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as a {error,message,action,code} JSON body built
// from core.MapError. The HTTP status comes from the error's type; handlers
// pass a fallback for errors the mapping does not know.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Fields  []string `json:"fields,omitempty"` // Missing required field labels
}

// requestError is a malformed request body or parameter.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// respondError logs err and writes the mapped user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := statusFor(err, fallback)

	var msg core.UserMessage
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		msg = core.UserMessage{
			Message: reqErr.msg,
			Action:  "Correct the request and try again",
			Code:    "REQ001",
		}
	} else {
		msg = core.NewUserError(err).User
	}

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var missing *core.MissingRequiredFieldsError
	if errors.As(err, &missing) {
		resp.Fields = missing.Labels
	}
	if id := requestID(r); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error, fallback int) int {
	var (
		maxBytes *http.MaxBytesError
		missing  *core.MissingRequiredFieldsError
		parseErr *core.ParseError
		reqErr   *requestError
	)

	switch {
	case errors.As(err, &maxBytes), core.MapError(err).Code == "FILE001":
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportInProgress),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrPresetExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, core.ErrPresetsDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &parseErr),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrMappingMismatch),
		errors.Is(err, core.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return fallback
}

// requestID returns chi's request id for response bodies.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
