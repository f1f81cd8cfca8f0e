package influxdb

import "errors"

// Sentinel errors for the security counter client. Check with errors.Is.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed or unhealthy startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close or on a zero Client.
	ErrNotConnected = errors.New("influxdb: not connected")
)
