// Package device defines the power-monitoring device model and its
// persistence for BlueWatt Core.
//
// A device is an ESP32 sensor/relay unit owned by a user. It carries two
// pieces of operational state:
//
//   - is_active: whether the device may authenticate at all
//   - relay status: on, off, or tripped
//
// Relay status changes go through typed transitions. The ingestion pipeline
// may only trip the relay (TripTransition); clearing a trip or switching
// on/off is an administrative action (AdminTransition). This keeps the
// safety-critical direction one-way: telemetry can cut power, only an
// operator can restore it.
package device
