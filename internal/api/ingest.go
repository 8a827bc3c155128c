package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// validate checks request payload shapes and ranges before anything reaches
// the ingestion pipeline. The pipeline assumes structurally valid input.
var validate = validator.New()

// powerDataRequest is the request body for POST /power-data.
// Electrical ranges follow the device firmware contract: mains voltage
// tops out well under 500 V and per-circuit current under 100 A.
type powerDataRequest struct {
	DeviceID      string  `json:"device_id" validate:"required"`
	Timestamp     int64   `json:"timestamp" validate:"required,gt=0"`
	VoltageRMS    float64 `json:"voltage_rms" validate:"gte=0,lte=500"`
	CurrentRMS    float64 `json:"current_rms" validate:"gte=0,lte=100"`
	PowerApparent float64 `json:"power_apparent" validate:"gte=0"`
	PowerReal     float64 `json:"power_real" validate:"gte=0"`
	PowerFactor   float64 `json:"power_factor" validate:"gte=0,lte=1"`
}

// anomalyEventRequest is the request body for POST /anomaly-events.
// Severity is optional; the pipeline applies the trip override and the
// medium default.
type anomalyEventRequest struct {
	DeviceID     string   `json:"device_id" validate:"required"`
	Timestamp    int64    `json:"timestamp" validate:"required,gt=0"`
	AnomalyType  string   `json:"anomaly_type" validate:"required"`
	Voltage      *float64 `json:"voltage" validate:"omitempty,gte=0"`
	Current      *float64 `json:"current" validate:"omitempty,gte=0"`
	Power        *float64 `json:"power" validate:"omitempty,gte=0"`
	RelayTripped bool     `json:"relay_tripped"`
	Severity     string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// handleIngestReading accepts a telemetry reading from an authenticated device.
func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	var req powerDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	s.noteCrossDeviceSubmission(r, req.DeviceID)

	reading, err := s.ingestor.IngestReading(r.Context(), telemetry.ReadingSubmission{
		DeviceID:      req.DeviceID,
		Timestamp:     req.Timestamp,
		VoltageRMS:    req.VoltageRMS,
		CurrentRMS:    req.CurrentRMS,
		PowerApparent: req.PowerApparent,
		PowerReal:     req.PowerReal,
		PowerFactor:   req.PowerFactor,
	})
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": reading.ID})
}

// handleIngestAnomaly accepts an anomaly event from an authenticated device.
func (s *Server) handleIngestAnomaly(w http.ResponseWriter, r *http.Request) {
	var req anomalyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if !telemetry.IsValidAnomalyType(telemetry.AnomalyType(req.AnomalyType)) {
		writeValidationError(w, "unknown anomaly_type: "+req.AnomalyType)
		return
	}
	s.noteCrossDeviceSubmission(r, req.DeviceID)

	event, err := s.ingestor.IngestAnomaly(r.Context(), telemetry.AnomalySubmission{
		DeviceID:     req.DeviceID,
		Timestamp:    req.Timestamp,
		Type:         telemetry.AnomalyType(req.AnomalyType),
		Severity:     telemetry.Severity(req.Severity),
		Voltage:      req.Voltage,
		Current:      req.Current,
		Power:        req.Power,
		RelayTripped: req.RelayTripped,
	})
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": event.ID})
}

// noteCrossDeviceSubmission logs when the body device differs from the one
// the presented secret resolved to. The submission is still accepted; the
// pipeline resolves the device from the body independently of the credential.
func (s *Server) noteCrossDeviceSubmission(r *http.Request, bodyDeviceID string) {
	dev := deviceFromContext(r.Context())
	if dev == nil || dev.DeviceID == bodyDeviceID {
		return
	}
	s.logger.Debug("submission for a device other than the authenticated one",
		"authenticated_device", dev.DeviceID,
		"submitted_device", bodyDeviceID,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
}

// writeIngestError maps ingestion pipeline errors to HTTP responses.
// Device lookup failures get distinct codes since they occur after the
// secret already authenticated.
func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeDeviceNotFound, "device not found")
	case errors.Is(err, device.ErrDeviceInactive):
		writeForbidden(w, ErrCodeDeviceInactive, "device is inactive")
	default:
		s.logger.Error("ingestion failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "failed to persist submission")
	}
}
