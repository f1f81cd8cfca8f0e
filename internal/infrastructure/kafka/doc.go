// Package kafka streams zmapp security events to a Kafka topic.
//
// It wraps github.com/segmentio/kafka-go. Each event is one JSON message
// keyed by the account it concerns, so all events of one user land on the
// same partition in order. The event type travels in the "event_type"
// header for consumers that filter without decoding.
//
// # Usage
//
//	producer, err := kafka.NewProducer(cfg.Kafka)
//	if errors.Is(err, kafka.ErrDisabled) {
//	    // the stream is optional
//	}
//	defer producer.Close()
//
//	err = producer.PublishEvent(ctx, "usr-1a2b3c4d", "LOGIN_FAILED", payload)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package kafka
