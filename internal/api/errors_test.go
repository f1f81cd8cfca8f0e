package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Go-ku/zmapp/internal/auth"
	"github.com/Go-ku/zmapp/internal/infrastructure/logging"
)

func TestWriteAuthError(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &Server{logger: logging.Discard(), now: func() time.Time { return now }}

	unauth := auth.Unauthenticated(auth.ErrInvalidCredentials)
	unauth.Remaining = 2

	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		message    string
		retryAfter string
		check      func(t *testing.T, body errorResponse)
	}{
		{
			name:    "validation",
			err:     auth.ValidationFailed([]string{"First name must be at least 2 characters long"}),
			status:  http.StatusBadRequest,
			code:    ErrCodeValidation,
			message: "Validation failed",
			check: func(t *testing.T, body errorResponse) {
				if len(body.Details) != 1 {
					t.Errorf("details = %v", body.Details)
				}
			},
		},
		{
			name:    "unauthenticated with remaining",
			err:     unauth,
			status:  http.StatusUnauthorized,
			code:    ErrCodeUnauthorized,
			message: "Invalid email or password",
			check: func(t *testing.T, body errorResponse) {
				if body.RemainingAttempts == nil || *body.RemainingAttempts != 2 {
					t.Errorf("remainingAttempts = %v, want 2", body.RemainingAttempts)
				}
			},
		},
		{
			name:    "unauthenticated without remaining",
			err:     auth.Unauthenticated(auth.ErrUserInactive),
			status:  http.StatusUnauthorized,
			code:    ErrCodeUnauthorized,
			message: "Authentication required",
			check: func(t *testing.T, body errorResponse) {
				if body.RemainingAttempts != nil {
					t.Errorf("remainingAttempts = %d, want absent", *body.RemainingAttempts)
				}
			},
		},
		{
			name:    "forbidden",
			err:     auth.Forbidden(""),
			status:  http.StatusForbidden,
			code:    ErrCodeForbidden,
			message: "Insufficient permissions",
		},
		{
			name:       "locked",
			err:        auth.AccountLocked(now.Add(90*time.Minute+500*time.Millisecond), now),
			status:     http.StatusLocked,
			code:       ErrCodeAccountLocked,
			retryAfter: "5401",
			check: func(t *testing.T, body errorResponse) {
				if body.RetryAfter == nil || *body.RetryAfter != 5401 {
					t.Errorf("retryAfter = %v, want 5401", body.RetryAfter)
				}
			},
		},
		{
			name:       "rate limited",
			err:        auth.RateLimited(now.Add(10 * time.Minute)),
			status:     http.StatusTooManyRequests,
			code:       ErrCodeRateLimited,
			retryAfter: "600",
			check: func(t *testing.T, body errorResponse) {
				if body.ResetTime == nil || *body.ResetTime != now.Add(10*time.Minute).UnixMilli() {
					t.Errorf("resetTime = %v", body.ResetTime)
				}
			},
		},
		{
			name:    "conflict",
			err:     auth.Conflict(auth.ErrEmailExists, "User with this email already exists"),
			status:  http.StatusConflict,
			code:    ErrCodeConflict,
			message: "User with this email already exists",
		},
		{
			name:    "internal hides cause",
			err:     auth.Internal(errors.New("database is locked")),
			status:  http.StatusInternalServerError,
			code:    ErrCodeInternal,
			message: "An unexpected error occurred",
		},
		{
			name:    "plain error",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			s.writeAuthError(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			decodeBody(t, rec, &body)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if tt.message != "" && body.Error != tt.message {
				t.Errorf("error = %q, want %q", body.Error, tt.message)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestAddressField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string", `{"address":"Plot 5, Kabulonga"}`, "Plot 5, Kabulonga"},
		{"object", `{"address":{"street":"12 Cairo Road","area":" ","city":"Lusaka","province":"Lusaka"}}`, "12 Cairo Road, Lusaka, Lusaka"},
		{"null", `{"address":null}`, ""},
		{"missing", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			rec := httptest.NewRecorder()
			var body registerRequest
			if !decodeJSON(rec, req, &body) {
				t.Fatalf("decodeJSON() failed: %s", rec.Body.String())
			}
			if string(body.Address) != tt.want {
				t.Errorf("address = %q, want %q", body.Address, tt.want)
			}
		})
	}
}
