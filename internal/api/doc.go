// Package api implements the HTTP API and live-event server for BlueWatt Core.
//
// This package provides:
//   - Device-facing ingestion endpoints (power readings, anomaly events)
//     authenticated by X-API-Key device secrets
//   - Viewer-facing live event endpoints: an SSE stream and a WebSocket
//     endpoint, both fed by the shared fanout registry
//   - Anomaly resolution for authenticated viewers
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Authentication
//
// Two caller identities exist and never mix. Devices present a shared secret
// in the X-API-Key header; the credential resolver maps it to a device row.
// Viewers present a Bearer JWT minted by the account service; this server
// only validates. Every credential failure on the device path surfaces as a
// uniform 401 with no detail on cause.
//
// # Delivery
//
// Event delivery to stream subscribers is best-effort and at-most-once. An
// accepted ingestion request never fails because a subscriber's connection
// is broken.
package api
