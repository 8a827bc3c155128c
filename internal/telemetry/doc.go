// Package telemetry implements the BlueWatt ingestion pipeline: power
// readings and anomaly events flowing from authenticated devices into
// persistence and out to live subscribers.
//
// The pipeline enforces the safety rules around anomalies:
//
//   - relay_tripped implies severity critical, whatever the device said
//   - a trip moves the device relay to tripped (idempotently)
//   - ingestion may only trip a relay, never clear it
//
// Persistence and fanout are deliberately not transactional. A stored
// reading whose notification failed is still stored; subscribers get
// at-most-once delivery.
package telemetry
