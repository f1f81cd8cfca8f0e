package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "zmapp"

// Topics builds the MQTT topic names used by zmapp.
//
// All topics live under a single prefix so one broker can serve several
// deployments:
//
//	{prefix}/system/status          retained online/offline status (LWT)
//	{prefix}/security/{event}       one message per security event
//
// Event names are lower-cased, so LOGIN_FAILED is published on
// zmapp/security/login_failed.
type Topics struct {
	Prefix string
}

// NewTopics returns a Topics rooted at prefix.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus returns the retained service status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// SecurityEvent returns the topic for one security event type.
func (t Topics) SecurityEvent(eventType string) string {
	return t.prefix() + "/security/" + strings.ToLower(eventType)
}

// AllSecurityEvents returns a wildcard matching every security event topic.
func (t Topics) AllSecurityEvents() string {
	return t.prefix() + "/security/#"
}
