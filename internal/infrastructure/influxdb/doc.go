// Package influxdb writes zmapp security event counters to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every recorded
// security event becomes one point in the security_events measurement,
// tagged by event type, outcome and actor role, so dashboards can chart
// failed logins and lockouts over time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteSecurityEvent("ACCOUNT_LOCKED", "failure", "TENANT", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are batched according to batch_size and flush_interval.
//
// # Error Handling
//
// Writes are non-blocking and batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
