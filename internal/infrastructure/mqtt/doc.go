// Package mqtt publishes zmapp security events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - JSON publishing of security events on {prefix}/security/{event}
//   - A retained status topic with Last Will and Testament for offline detection
//
// The broker is optional. When mqtt.enabled is false the service never
// connects, and the audit log stays the system of record either way. A
// publish failure is logged by the event recorder and never fails a request.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for any broker off the local host
//   - Payloads carry emails and source IPs, so restrict topic ACLs accordingly
//   - Passwords and tokens are never part of an event payload
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishSecurityEvent("LOGIN_FAILED", payload)
package mqtt
