package telemetry

import (
	"errors"
	"time"
)

// Severity grades an anomaly event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValidSeverity returns true if s is a known severity.
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AnomalyType is the closed set of anomaly categories devices can report.
type AnomalyType string

const (
	AnomalyOvercurrent  AnomalyType = "overcurrent"
	AnomalyShortCircuit AnomalyType = "short_circuit"
	AnomalyWireFire     AnomalyType = "wire_fire"
	AnomalyOvervoltage  AnomalyType = "overvoltage"
	AnomalyUndervoltage AnomalyType = "undervoltage"
	AnomalyOverpower    AnomalyType = "overpower"
	AnomalyArcFault     AnomalyType = "arc_fault"
	AnomalyGroundFault  AnomalyType = "ground_fault"
)

// ValidAnomalyTypes lists every accepted anomaly category.
var ValidAnomalyTypes = []AnomalyType{
	AnomalyOvercurrent, AnomalyShortCircuit, AnomalyWireFire,
	AnomalyOvervoltage, AnomalyUndervoltage, AnomalyOverpower,
	AnomalyArcFault, AnomalyGroundFault,
}

// IsValidAnomalyType returns true if t is a known anomaly category.
func IsValidAnomalyType(t AnomalyType) bool {
	for _, v := range ValidAnomalyTypes {
		if t == v {
			return true
		}
	}
	return false
}

// PowerReading is an immutable telemetry fact. There is no update or delete
// path for readings in the core.
type PowerReading struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`

	VoltageRMS    float64 `json:"voltage_rms"`
	CurrentRMS    float64 `json:"current_rms"`
	PowerApparent float64 `json:"power_apparent"`
	PowerReal     float64 `json:"power_real"`
	PowerFactor   float64 `json:"power_factor"`

	// RecordedAt is the device-reported measurement instant, converted
	// from Unix seconds.
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnomalyEvent records a device-detected electrical fault.
type AnomalyEvent struct {
	ID       string      `json:"id"`
	DeviceID string      `json:"device_id"`
	Type     AnomalyType `json:"anomaly_type"`

	// Severity is the persisted (effective) severity: critical when the
	// relay tripped, otherwise the device-supplied value or medium.
	Severity Severity `json:"severity"`

	// Electrical snapshots at the moment of the fault; optional.
	Voltage *float64 `json:"voltage,omitempty"`
	Current *float64 `json:"current,omitempty"`
	Power   *float64 `json:"power,omitempty"`

	RelayTripped bool      `json:"relay_tripped"`
	OccurredAt   time.Time `json:"occurred_at"`

	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for telemetry operations.
var (
	ErrEventNotFound   = errors.New("anomaly event not found")
	ErrReadingNotFound = errors.New("power reading not found")
	ErrAlreadyResolved = errors.New("anomaly event already resolved")
	ErrAccessDenied    = errors.New("event belongs to another owner")
)

// EffectiveSeverity computes the severity to persist for an anomaly.
// A tripped relay forces critical, whatever the device claimed. Without a
// trip, the supplied severity is used as-is (advisory, even critical),
// defaulting to medium when absent.
func EffectiveSeverity(relayTripped bool, supplied Severity) Severity {
	if relayTripped {
		return SeverityCritical
	}
	if supplied == "" {
		return SeverityMedium
	}
	return supplied
}
