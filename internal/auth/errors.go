package auth

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed decision. The transport maps each kind to one
// status code and response shape.
type Kind int

const (
	// KindInternal is an unexpected failure. Its cause is never shown to callers.
	KindInternal Kind = iota
	// KindValidation is client-correctable input; Details lists every violation.
	KindValidation
	// KindUnauthenticated covers missing, invalid or expired tokens and credential mismatch.
	KindUnauthenticated
	// KindForbidden means the identity is valid but lacks role or ownership.
	KindForbidden
	// KindAccountLocked carries RetryAfter.
	KindAccountLocked
	// KindRateLimited carries ResetAt.
	KindRateLimited
	// KindConflict is a duplicate email or phone at registration.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindAccountLocked:
		return "account_locked"
	case KindRateLimited:
		return "rate_limited"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a typed authentication or authorisation failure.
type Error struct {
	Kind Kind

	// Message is safe to show to the caller.
	Message string

	// Details lists every violated rule for KindValidation.
	Details []string

	// LockedUntil and RetryAfter are set for KindAccountLocked.
	LockedUntil time.Time
	RetryAfter  time.Duration

	// ResetAt is set for KindRateLimited.
	ResetAt time.Time

	// Remaining is the number of login attempts left in the throttle window,
	// or -1 when unknown.
	Remaining int

	// Err is the underlying cause, available through errors.Is/As.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationFailed builds a KindValidation error carrying every violation.
func ValidationFailed(details []string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Details: details}
}

// Unauthenticated builds a KindUnauthenticated error around cause.
func Unauthenticated(cause error) *Error {
	msg := "Authentication required"
	if errors.Is(cause, ErrInvalidCredentials) {
		msg = "Invalid email or password"
	}
	return &Error{Kind: KindUnauthenticated, Message: msg, Remaining: -1, Err: cause}
}

// Forbidden builds a KindForbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &Error{Kind: KindForbidden, Message: message, Err: ErrForbidden}
}

// AccountLocked builds a KindAccountLocked error for a lock ending at until.
func AccountLocked(until, now time.Time) *Error {
	retry := until.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return &Error{
		Kind:        KindAccountLocked,
		Message:     "Account temporarily locked due to too many failed login attempts",
		LockedUntil: until,
		RetryAfter:  retry,
		Err:         ErrAccountLocked,
	}
}

// RateLimited builds a KindRateLimited error whose window resets at resetAt.
func RateLimited(resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: "Too many attempts. Please try again later.",
		ResetAt: resetAt,
		Err:     ErrRateLimited,
	}
}

// Conflict builds a KindConflict error.
func Conflict(cause error, message string) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred", Err: cause}
}

// KindOf returns the Kind of err. Untyped errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError converts err into an *Error, wrapping untyped errors as Internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
