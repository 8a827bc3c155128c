package stream

import (
	"encoding/json"
	"sync"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
)

// Sink is the output side of a subscriber: one live viewer connection.
// Send writes a single framed event. A returned error is treated as proof
// the connection is dead.
type Sink interface {
	Send(event string, data []byte) error
}

// subscriber is one registered viewer connection.
type subscriber struct {
	id      string
	userID  string
	devices map[string]struct{}

	sink Sink

	// writeMu serialises writes to the sink so concurrent publishes keep
	// per-subscriber ordering.
	writeMu sync.Mutex
}

func (s *subscriber) observes(deviceID string) bool {
	_, ok := s.devices[deviceID]
	return ok
}

// Registry is an injectable, internally synchronised set of subscribers.
// Tests instantiate independent registries; the process normally runs one.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	logger *logging.Logger
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]*subscriber),
		logger: logger.With("component", "stream.registry"),
	}
}

// Subscribe registers a viewer connection. The permitted device set is
// computed once by the caller and is immutable for the subscriber's
// lifetime; re-subscribing under the same id replaces the old entry.
func (r *Registry) Subscribe(id, userID string, deviceIDs []string, sink Sink) {
	devices := make(map[string]struct{}, len(deviceIDs))
	for _, d := range deviceIDs {
		devices[d] = struct{}{}
	}

	r.mu.Lock()
	r.subs[id] = &subscriber{
		id:      id,
		userID:  userID,
		devices: devices,
		sink:    sink,
	}
	count := len(r.subs)
	r.mu.Unlock()

	r.logger.Debug("subscriber registered", "subscriber_id", id, "user_id", userID, "devices", len(devices), "total", count)
}

// Unsubscribe removes a subscriber. Idempotent: removing an unknown id is a
// no-op, so the transport-close path and the failed-write path can both call
// it safely.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	_, existed := r.subs[id]
	delete(r.subs, id)
	count := len(r.subs)
	r.mu.Unlock()

	if existed {
		r.logger.Debug("subscriber removed", "subscriber_id", id, "total", count)
	}
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Publish delivers an event to every subscriber whose permitted set contains
// deviceID. The payload is marshalled once. A write failure removes that
// subscriber and does not interrupt delivery to the rest. Publish never
// returns an error: delivery is best-effort by contract.
func (r *Registry) Publish(deviceID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("marshalling event payload", "event", event, "error", err)
		return
	}

	r.deliver(event, data, func(s *subscriber) bool { return s.observes(deviceID) })
}

// Broadcast delivers an event to every subscriber regardless of device
// scoping. Used for operator-level notices, not by the ingestion path.
func (r *Registry) Broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("marshalling broadcast payload", "event", event, "error", err)
		return
	}

	r.deliver(event, data, func(*subscriber) bool { return true })
}

// deliver writes a framed event to every matching subscriber. The registry
// lock is released before any sink write; writes happen on a snapshot.
func (r *Registry) deliver(event string, data []byte, match func(*subscriber) bool) {
	r.mu.RLock()
	targets := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		if match(s) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		s.writeMu.Lock()
		err := s.sink.Send(event, data)
		s.writeMu.Unlock()

		if err != nil {
			r.logger.Info("subscriber write failed, removing", "subscriber_id", s.id, "event", event, "error", err)
			r.Unsubscribe(s.id)
		}
	}
}
