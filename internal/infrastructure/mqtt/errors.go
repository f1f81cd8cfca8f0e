package mqtt

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps broker timeouts, rejected publishes and
	// payloads that cannot be encoded or exceed the size limit.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
)
