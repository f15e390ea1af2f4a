package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/trace"
)

var errInvalidAsOf = errors.New("invalid as_of date")

// statusClientClosedRequest is recorded when the caller went away before
// the response was ready.
const statusClientClosedRequest = 499

// parseAsOf reads the as_of query parameter (YYYY-MM-DD). It defaults to
// now when absent.
func parseAsOf(r *http.Request, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if v == "" {
		return core.Day(now), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidAsOf, v)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps engine errors onto HTTP statuses and log error types.
// The caller's own cancellation is checked first: upstream sources wrap
// it, but it is not an upstream failure.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, log.ErrorTypeUpstream
	case errors.Is(err, core.ErrProjectNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, fiscal.ErrInvalidYear),
		errors.Is(err, fiscal.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, errInvalidAsOf):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway, log.ErrorTypeUpstream
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	logger := log.FromContext(r.Context())
	switch {
	case status == statusClientClosedRequest:
		logger.DebugContext(r.Context(), "Client went away", log.FieldError, err)
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorType, errType,
			log.FieldStatusCode, status)
	default:
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldError, err,
			log.FieldErrorType, errType,
			log.FieldStatusCode, status)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
