package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Go-ku/zmapp/internal/infrastructure/config"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultBatchTimeout = 10 * time.Millisecond
	dialTimeout         = 3 * time.Second

	eventTypeHeader = "event_type"
)

// messageWriter is the subset of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes JSON messages to one topic.
type Producer struct {
	writer  messageWriter
	brokers []string
	topic   string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewProducer builds a synchronous writer for cfg.Topic. Brokers are
// contacted lazily on the first write; use HealthCheck to check them.
//
// Parameters:
//   - cfg: Kafka configuration (brokers, topic, write timeout in seconds)
//
// Returns:
//   - *Producer: Producer for cfg.Topic
//   - error: ErrDisabled or ErrNoBrokers
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	timeout := time.Duration(cfg.WriteTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           defaultBatchTimeout,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, brokers, cfg.Topic, timeout), nil
}

func newProducer(w messageWriter, brokers []string, topic string, timeout time.Duration) *Producer {
	return &Producer{writer: w, brokers: brokers, topic: topic, timeout: timeout}
}

// Topic returns the configured topic name.
func (p *Producer) Topic() string {
	return p.topic
}

// PublishEvent marshals v and writes it with key and the event type header.
// It blocks until the leader acknowledges or ctx ends.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, v any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshalling payload: %w", ErrPublishFailed, err)
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if eventType != "" {
		msg.Headers = []kafkago.Header{{Key: eventTypeHeader, Value: []byte(eventType)}}
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("%w: topic %s: %w", ErrPublishFailed, p.topic, err)
	}
	return nil
}

// HealthCheck succeeds when at least one broker accepts a connection.
func (p *Producer) HealthCheck(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	var lastErr error
	for _, broker := range p.brokers {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := kafkago.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close() //nolint:errcheck,gosec // dial check only
		return nil
	}
	return fmt.Errorf("kafka health check failed: %w", lastErr)
}

// Close flushes pending messages and releases the writer. Safe to call
// more than once.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
