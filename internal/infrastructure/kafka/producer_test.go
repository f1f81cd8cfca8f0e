package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Go-ku/zmapp/internal/infrastructure/config"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func TestNewProducer_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.KafkaConfig
		wantErr error
	}{
		{"disabled", config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"}, ErrDisabled},
		{"no brokers", config.KafkaConfig{Enabled: true, Brokers: []string{" ", ""}, Topic: "events"}, ErrNoBrokers},
		{"valid", config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "events"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProducer(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewProducer() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				if p.Topic() != "events" {
					t.Errorf("Topic() = %q", p.Topic())
				}
				if p.timeout != defaultWriteTimeout {
					t.Errorf("timeout = %v, want default", p.timeout)
				}
				p.Close()
			}
		})
	}
}

func TestPublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, "zmapp.security-events", time.Second)

	payload := map[string]string{"type": "LOGIN_FAILED", "outcome": "failure"}
	if err := p.PublishEvent(context.Background(), "usr-1a2b3c4d", "LOGIN_FAILED", payload); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "usr-1a2b3c4d" {
		t.Errorf("key = %q", msg.Key)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "event_type" || string(msg.Headers[0].Value) != "LOGIN_FAILED" {
		t.Errorf("headers = %+v", msg.Headers)
	}
	var got map[string]string
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got["outcome"] != "failure" {
		t.Errorf("value = %s", msg.Value)
	}
}

func TestPublishEvent_Errors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, []string{"localhost:9092"}, "events", time.Second)

	err := p.PublishEvent(context.Background(), "k", "LOGIN_SUCCESS", map[string]string{})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("write failure error = %v, want ErrPublishFailed", err)
	}

	err = p.PublishEvent(context.Background(), "k", "LOGIN_SUCCESS", make(chan int))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("marshal failure error = %v, want ErrPublishFailed", err)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, "events", time.Second)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.closed != 1 {
		t.Errorf("writer closed %d times, want 1", w.closed)
	}

	if err := p.PublishEvent(context.Background(), "k", "LOGIN_SUCCESS", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishEvent() after Close error = %v, want ErrClosed", err)
	}
	if err := p.HealthCheck(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrClosed", err)
	}

	var nilProducer *Producer
	if err := nilProducer.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	p := newProducer(&fakeWriter{}, []string{"127.0.0.1:1"}, "events", time.Second)

	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() error = nil for unreachable broker")
	}
}
