package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// SecurityEventMeasurement is the measurement security event counters are
// written to. Tags stay low-cardinality: user ids and IPs never become tags.
const SecurityEventMeasurement = "security_events"

// unknownTag fills empty tag values.
const unknownTag = "unknown"

// NewSecurityEventPoint builds the counter point for one security event.
//
// Tags: event, outcome, role. Field: count=1, so a sum over any window
// yields the number of events.
func NewSecurityEventPoint(eventType, outcome, role string, at time.Time) *write.Point {
	return write.NewPoint(
		SecurityEventMeasurement,
		map[string]string{
			"event":   tagValue(strings.ToLower(eventType)),
			"outcome": tagValue(outcome),
			"role":    tagValue(strings.ToLower(role)),
		},
		map[string]interface{}{
			"count": int64(1),
		},
		at,
	)
}

// WriteSecurityEvent records one security event. The write is non-blocking
// and is dropped silently when the client is not connected.
//
// Example:
//
//	client.WriteSecurityEvent("LOGIN_FAILED", "failure", "", time.Now())
func (c *Client) WriteSecurityEvent(eventType, outcome, role string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(NewSecurityEventPoint(eventType, outcome, role, at))
}

func tagValue(v string) string {
	if v == "" {
		return unknownTag
	}
	return v
}
