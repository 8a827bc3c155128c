// Package influxdb mirrors accepted power readings into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with BlueWatt-specific
// patterns for connection management and health monitoring. The mirror is
// optional: SQLite remains the source of truth, and a missing or unhealthy
// InfluxDB never fails an ingestion request.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "bluewatt",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ingestor := telemetry.NewIngestor(devices, readings, events, fanout, client, logger)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors surface via the error
// callback. Connection and health check errors are returned directly.
package influxdb
