package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// EventType names a security event.
type EventType string

// Security event types.
const (
	EventLoginSuccess            EventType = "LOGIN_SUCCESS"
	EventLoginFailed             EventType = "LOGIN_FAILED"
	EventLoginRateLimited        EventType = "LOGIN_RATE_LIMITED"
	EventLoginLocked             EventType = "LOGIN_LOCKED"
	EventAccountLocked           EventType = "ACCOUNT_LOCKED"
	EventRegistrationSuccess     EventType = "REGISTRATION_SUCCESS"
	EventRegistrationFailed      EventType = "REGISTRATION_FAILED"
	EventRegistrationRateLimited EventType = "REGISTRATION_RATE_LIMITED"
	EventTokenRefreshed          EventType = "TOKEN_REFRESHED"
	EventAuthenticationFailed    EventType = "AUTHENTICATION_FAILED"
	EventLogoutSuccess           EventType = "LOGOUT_SUCCESS"
	EventPasswordChanged         EventType = "PASSWORD_CHANGED"
	EventAuthorizationDenied     EventType = "AUTHORIZATION_DENIED"
	EventAccountUnlocked         EventType = "ACCOUNT_UNLOCKED"
	EventAccountStatusChanged    EventType = "ACCOUNT_STATUS_CHANGED"
	EventStaffPermissionsUpdated EventType = "STAFF_PERMISSIONS_UPDATED"
)

// Outcome is the result recorded with an event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one security-relevant decision. It never carries a plaintext
// password or a complete token.
type Event struct {
	Type       EventType
	ActorID    string
	ActorEmail string
	ActorRole  Role
	TargetID   string // account acted upon, when different from the actor
	SourceIP   string
	UserAgent  string
	Outcome    Outcome
	Reason     string
	OccurredAt time.Time
	Details    map[string]any
}

// EventSink receives recorded events.
type EventSink interface {
	WriteEvent(ctx context.Context, e Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, e Event) error

// WriteEvent calls f.
func (f EventSinkFunc) WriteEvent(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// DefaultEventBuffer is the recorder's channel size. Events beyond it are
// dropped so recording never blocks a request.
const DefaultEventBuffer = 256

// sinkWriteTimeout bounds one sink write.
const sinkWriteTimeout = 5 * time.Second

// Recorder logs every event immediately and delivers it to the sinks from
// a single goroutine started by Run.
type Recorder struct {
	logger *slog.Logger
	sinks  []EventSink
	events chan Event
	now    Clock
}

// NewRecorder creates a recorder. A nil logger discards log output.
func NewRecorder(logger *slog.Logger, buffer int, sinks ...EventSink) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Recorder{
		logger: logger,
		sinks:  sinks,
		events: make(chan Event, buffer),
		now:    time.Now,
	}
}

// Record logs e and queues it for the sinks. A nil Recorder ignores events.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	r.log(e)

	if len(r.sinks) == 0 {
		return
	}
	select {
	case r.events <- e:
	default:
		r.logger.Warn("security event channel full, dropping event",
			"event", string(e.Type),
			"actor_id", e.ActorID,
		)
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// still buffered and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.events:
			r.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.events:
					r.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) deliver(e Event) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		err := sink.WriteEvent(ctx, e)
		cancel()
		if err != nil {
			r.logger.Error("security event write failed",
				"event", string(e.Type),
				"error", err,
			)
		}
	}
}

func (r *Recorder) log(e Event) {
	attrs := []any{
		"event", string(e.Type),
		"outcome", string(e.Outcome),
	}
	if e.ActorID != "" {
		attrs = append(attrs, "actor_id", e.ActorID)
	}
	if e.TargetID != "" {
		attrs = append(attrs, "target_id", e.TargetID)
	}
	if e.SourceIP != "" {
		attrs = append(attrs, "source_ip", e.SourceIP)
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}

	if e.Outcome == OutcomeFailure {
		r.logger.Warn("security event", attrs...)
		return
	}
	r.logger.Info("security event", attrs...)
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []EventSink

// WriteEvent writes e to each sink in order.
func (m MultiSink) WriteEvent(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
