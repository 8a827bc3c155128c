// Package stream implements live event fanout for BlueWatt Core.
//
// A Registry holds the set of connected viewer subscribers, each scoped to
// the device IDs it may observe. The ingestion pipeline publishes
// device-scoped events into the registry; the registry writes them to every
// matching subscriber's sink.
//
// Delivery semantics:
//
//   - at-most-once, no buffering, no replay
//   - ordered per subscriber, unordered across subscribers
//   - a failed write removes exactly that subscriber
//
// The registry is safe for concurrent use. Its lock is never held across a
// sink write, so one stalled connection cannot block Subscribe or Unsubscribe
// for the rest.
package stream
