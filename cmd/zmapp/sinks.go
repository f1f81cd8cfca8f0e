package main

import (
	"context"
	"time"

	"github.com/Go-ku/zmapp/internal/auth"
)

// securityEventMessage is the MQTT payload of a security event. The actor
// email and user agent stay in the audit log only.
type securityEventMessage struct {
	Type       string    `json:"type"`
	Outcome    string    `json:"outcome"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorRole  string    `json:"actor_role,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newSecurityEventMessage(e auth.Event) securityEventMessage {
	return securityEventMessage{
		Type:       string(e.Type),
		Outcome:    string(e.Outcome),
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole.String(),
		TargetID:   e.TargetID,
		SourceIP:   e.SourceIP,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
	}
}

type eventPublisher interface {
	PublishSecurityEvent(eventType string, v any) error
}

// mqttSink forwards events to {prefix}/security/{event}.
func mqttSink(p eventPublisher) auth.EventSink {
	return auth.EventSinkFunc(func(_ context.Context, e auth.Event) error {
		return p.PublishSecurityEvent(string(e.Type), newSecurityEventMessage(e))
	})
}

type eventStreamer interface {
	PublishEvent(ctx context.Context, key, eventType string, v any) error
}

// kafkaSink streams events keyed by the account they concern, so one
// user's events stay ordered on one partition.
func kafkaSink(s eventStreamer) auth.EventSink {
	return auth.EventSinkFunc(func(ctx context.Context, e auth.Event) error {
		key := e.TargetID
		if key == "" {
			key = e.ActorID
		}
		return s.PublishEvent(ctx, key, string(e.Type), newSecurityEventMessage(e))
	})
}

type eventPointWriter interface {
	WriteSecurityEvent(eventType, outcome, role string, at time.Time)
}

// influxSink counts events in the security_events measurement. Writes are
// batched by the client, so the sink never fails.
func influxSink(w eventPointWriter) auth.EventSink {
	return auth.EventSinkFunc(func(_ context.Context, e auth.Event) error {
		w.WriteSecurityEvent(string(e.Type), string(e.Outcome), e.ActorRole.String(), e.OccurredAt)
		return nil
	})
}
