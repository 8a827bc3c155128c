package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the mirror is switched off
	// in configuration. Callers treat it as "run without a mirror".
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps the cause of a failed initial connection.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
