package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/Go-ku/zmapp/internal/auth"
)

// errorResponse is the JSON body of every failed request. Only the fields
// relevant to the failure are present.
type errorResponse struct {
	Error             string   `json:"error"`
	Code              string   `json:"code"`
	Details           []string `json:"details,omitempty"`
	RemainingAttempts *int     `json:"remainingAttempts,omitempty"`
	RetryAfter        *int     `json:"retryAfter,omitempty"`
	ResetTime         *int64   `json:"resetTime,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeUnauthorized  = "unauthorised"
	ErrCodeForbidden     = "forbidden"
	ErrCodeConflict      = "conflict"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeAccountLocked = "account_locked"
	ErrCodeRateLimited   = "rate_limited"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAuthError renders a decision error from the auth package. Each Kind
// maps to exactly one status; causes of internal errors are logged, never sent.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	e := auth.AsError(err)
	resp := errorResponse{Error: e.Message}

	var status int
	switch e.Kind {
	case auth.KindValidation:
		status, resp.Code = http.StatusBadRequest, ErrCodeValidation
		resp.Details = e.Details

	case auth.KindUnauthenticated:
		status, resp.Code = http.StatusUnauthorized, ErrCodeUnauthorized
		if e.Remaining >= 0 {
			remaining := e.Remaining
			resp.RemainingAttempts = &remaining
		}

	case auth.KindForbidden:
		status, resp.Code = http.StatusForbidden, ErrCodeForbidden

	case auth.KindAccountLocked:
		status, resp.Code = http.StatusLocked, ErrCodeAccountLocked
		retry := int(math.Ceil(e.RetryAfter.Seconds()))
		resp.RetryAfter = &retry
		w.Header().Set("Retry-After", strconv.Itoa(retry))

	case auth.KindRateLimited:
		status, resp.Code = http.StatusTooManyRequests, ErrCodeRateLimited
		reset := e.ResetAt.UnixMilli()
		resp.ResetTime = &reset
		if wait := int(math.Ceil(e.ResetAt.Sub(s.now()).Seconds())); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(wait))
		}

	case auth.KindConflict:
		status, resp.Code = http.StatusConflict, ErrCodeConflict

	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", e.Err,
			"request_id", requestIDFromContext(r.Context()),
		)
		status, resp.Code = http.StatusInternalServerError, ErrCodeInternal
		resp.Error = "An unexpected error occurred"
	}

	writeJSON(w, status, resp)
}
