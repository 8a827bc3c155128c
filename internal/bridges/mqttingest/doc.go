// Package mqttingest bridges MQTT ingestion topics into the telemetry
// pipeline.
//
// Devices on constrained links publish the same payloads the HTTP API
// accepts, plus an api_key field, to bluewatt/ingest/power and
// bluewatt/ingest/anomaly. The bridge authenticates each message with the
// credential resolver and feeds it to the ingestor.
//
// MQTT has no reply channel for a fire-and-forget publish, so failures are
// logged and the message dropped; devices needing delivery confirmation
// use the HTTP endpoints.
package mqttingest
