package mqtt

import (
	"encoding/json"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// QoS 0 is at most once, 1 at least once and 2 exactly once. Retained
// messages are kept by the broker for new subscribers; use them for status
// topics, never for events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshalling payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, data, byte(c.cfg.QoS), retained)
}

// PublishSecurityEvent publishes one security event on
// {prefix}/security/{event}. Events are never retained.
//
// Parameters:
//   - eventType: Event name, e.g. "LOGIN_FAILED"; becomes the last topic level
//   - v: Payload, encoded as JSON
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected or ErrPublishFailed
func (c *Client) PublishSecurityEvent(eventType string, v any) error {
	if eventType == "" {
		return ErrInvalidTopic
	}
	return c.PublishJSON(c.topics.SecurityEvent(eventType), v, false)
}
