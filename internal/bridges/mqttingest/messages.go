package mqttingest

import (
	"github.com/go-playground/validator/v10"

	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

var validate = validator.New()

// powerMessage is the payload published to the power ingest topic. The
// body matches the HTTP endpoint with an added credential field, so a
// device firmware can share one serializer across transports.
type powerMessage struct {
	APIKey        string  `json:"api_key" validate:"required"`
	DeviceID      string  `json:"device_id" validate:"required"`
	Timestamp     int64   `json:"timestamp" validate:"required,gt=0"`
	VoltageRMS    float64 `json:"voltage_rms" validate:"gte=0,lte=500"`
	CurrentRMS    float64 `json:"current_rms" validate:"gte=0,lte=100"`
	PowerApparent float64 `json:"power_apparent" validate:"gte=0"`
	PowerReal     float64 `json:"power_real" validate:"gte=0"`
	PowerFactor   float64 `json:"power_factor" validate:"gte=0,lte=1"`
}

func (m powerMessage) submission() telemetry.ReadingSubmission {
	return telemetry.ReadingSubmission{
		DeviceID:      m.DeviceID,
		Timestamp:     m.Timestamp,
		VoltageRMS:    m.VoltageRMS,
		CurrentRMS:    m.CurrentRMS,
		PowerApparent: m.PowerApparent,
		PowerReal:     m.PowerReal,
		PowerFactor:   m.PowerFactor,
	}
}

// anomalyMessage is the payload published to the anomaly ingest topic.
type anomalyMessage struct {
	APIKey       string   `json:"api_key" validate:"required"`
	DeviceID     string   `json:"device_id" validate:"required"`
	Timestamp    int64    `json:"timestamp" validate:"required,gt=0"`
	AnomalyType  string   `json:"anomaly_type" validate:"required"`
	Voltage      *float64 `json:"voltage,omitempty" validate:"omitempty,gte=0"`
	Current      *float64 `json:"current,omitempty" validate:"omitempty,gte=0"`
	Power        *float64 `json:"power,omitempty" validate:"omitempty,gte=0"`
	RelayTripped bool     `json:"relay_tripped"`
	Severity     string   `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
}

func (m anomalyMessage) submission() telemetry.AnomalySubmission {
	return telemetry.AnomalySubmission{
		DeviceID:     m.DeviceID,
		Timestamp:    m.Timestamp,
		Type:         telemetry.AnomalyType(m.AnomalyType),
		Severity:     telemetry.Severity(m.Severity),
		Voltage:      m.Voltage,
		Current:      m.Current,
		Power:        m.Power,
		RelayTripped: m.RelayTripped,
	}
}
