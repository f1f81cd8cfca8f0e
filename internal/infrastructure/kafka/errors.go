package kafka

import "errors"

// Sentinel errors for Kafka operations.
var (
	// ErrDisabled indicates the Kafka event stream is disabled in config.
	ErrDisabled = errors.New("kafka: disabled in configuration")

	// ErrNoBrokers indicates no broker address was configured.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrPublishFailed indicates a message could not be written.
	ErrPublishFailed = errors.New("kafka: publish failed")

	// ErrClosed indicates the producer was already closed.
	ErrClosed = errors.New("kafka: producer closed")
)
