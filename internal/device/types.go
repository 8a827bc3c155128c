package device

import (
	"errors"
	"fmt"
	"time"
)

// RelayStatus is the state of a device's load relay.
type RelayStatus string

const (
	// RelayOn means the relay is closed and the load is powered.
	RelayOn RelayStatus = "on"

	// RelayOff means the relay was opened administratively.
	RelayOff RelayStatus = "off"

	// RelayTripped means the relay was opened by an anomaly. A tripped
	// relay stays tripped until an administrative transition clears it.
	RelayTripped RelayStatus = "tripped"
)

// IsValidRelayStatus returns true if s is a known relay status.
func IsValidRelayStatus(s RelayStatus) bool {
	switch s {
	case RelayOn, RelayOff, RelayTripped:
		return true
	}
	return false
}

// Device represents a power-monitoring sensor/relay unit.
type Device struct {
	// ID is the internal identifier (dev- prefixed).
	ID string `json:"id"`

	// DeviceID is the external hardware identifier reported by the unit
	// itself, unique across the fleet.
	DeviceID string `json:"device_id"`

	// OwnerID references the user that owns this device.
	OwnerID string `json:"owner_id"`

	Name string `json:"name"`

	// IsActive gates authentication. An inactive device never resolves,
	// regardless of its secrets.
	IsActive bool `json:"is_active"`

	RelayStatus RelayStatus `json:"relay_status"`

	// LastSeenAt is stamped on every successful authentication.
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition is a relay state change request. Implementations are closed:
// only the two types below exist, and they carry different authority.
type Transition interface {
	// Apply returns the relay status that results from applying the
	// transition to the current status, or an error if the transition
	// is not permitted from that state.
	Apply(current RelayStatus) (RelayStatus, error)
}

// AdminTransition is an operator-driven relay change. It may set any valid
// status, including clearing a trip.
type AdminTransition struct {
	To RelayStatus
}

// Apply validates the target status. Administrative transitions are allowed
// from any current state.
func (t AdminTransition) Apply(_ RelayStatus) (RelayStatus, error) {
	if !IsValidRelayStatus(t.To) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelayStatus, t.To)
	}
	return t.To, nil
}

// TripTransition is the ingestion-driven relay change. It can only move the
// relay to tripped; applying it to an already tripped relay is idempotent.
type TripTransition struct{}

// Apply always results in tripped.
func (TripTransition) Apply(_ RelayStatus) (RelayStatus, error) {
	return RelayTripped, nil
}

// Sentinel errors for device operations.
var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceInactive     = errors.New("device is inactive")
	ErrDeviceIDExists     = errors.New("device id already registered")
	ErrInvalidRelayStatus = errors.New("invalid relay status")
)
