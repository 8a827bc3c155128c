package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/relaylog"
)

// Notification event names emitted by the pipeline.
const (
	EventAnomaly         = "anomaly"
	EventAnomalyResolved = "anomaly_resolved"
)

// Publisher delivers a device-scoped notification to live subscribers.
// Implementations must never block ingestion on a slow subscriber and must
// never return delivery failures as errors (they handle cleanup internally).
type Publisher interface {
	Publish(deviceID, event string, payload any)
}

// MetricsWriter mirrors accepted readings into a time-series store.
// Implementations must be non-blocking; mirror failures never affect
// ingestion.
type MetricsWriter interface {
	WriteReading(r *PowerReading)
}

// RelayChangeRecorder logs relay status transitions. Recording is best
// effort: a failure never fails the ingestion that caused the transition.
type RelayChangeRecorder interface {
	Create(ctx context.Context, c *relaylog.Change) error
}

// ReadingSubmission is a validated telemetry payload entering the pipeline.
// Shape and range validation happen at the transport layer; the pipeline
// assumes a structurally valid payload.
type ReadingSubmission struct {
	DeviceID      string  // external hardware identifier
	Timestamp     int64   // Unix seconds, device-reported
	VoltageRMS    float64
	CurrentRMS    float64
	PowerApparent float64
	PowerReal     float64
	PowerFactor   float64
}

// AnomalySubmission is a validated anomaly payload entering the pipeline.
type AnomalySubmission struct {
	DeviceID     string // external hardware identifier
	Timestamp    int64  // Unix seconds, device-reported
	Type         AnomalyType
	Severity     Severity // optional; empty means unspecified
	Voltage      *float64
	Current      *float64
	Power        *float64
	RelayTripped bool
}

// Ingestor is the ingestion pipeline: it turns validated submissions into
// persisted state, relay transitions, and best-effort notifications.
type Ingestor struct {
	devices  device.Repository
	readings ReadingRepository
	events   EventRepository
	fanout   Publisher
	metrics  MetricsWriter       // optional
	relayLog RelayChangeRecorder // optional
	logger   *logging.Logger
}

// NewIngestor creates an ingestion pipeline. metrics may be nil when no
// time-series mirror is configured.
func NewIngestor(devices device.Repository, readings ReadingRepository, events EventRepository, fanout Publisher, metrics MetricsWriter, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		devices:  devices,
		readings: readings,
		events:   events,
		fanout:   fanout,
		metrics:  metrics,
		logger:   logger.With("component", "telemetry.ingestor"),
	}
}

// SetRelayLog installs a relay change recorder. Optional; without one,
// trips are applied but not logged to the change history.
func (in *Ingestor) SetRelayLog(rl RelayChangeRecorder) {
	in.relayLog = rl
}

// IngestReading persists a telemetry reading for the device named in the
// submission and stamps the device's liveness. Readings produce no fanout
// notification.
func (in *Ingestor) IngestReading(ctx context.Context, sub ReadingSubmission) (*PowerReading, error) {
	dev, err := in.resolveDevice(ctx, sub.DeviceID)
	if err != nil {
		return nil, err
	}

	reading := &PowerReading{
		DeviceID:      dev.ID,
		VoltageRMS:    sub.VoltageRMS,
		CurrentRMS:    sub.CurrentRMS,
		PowerApparent: sub.PowerApparent,
		PowerReal:     sub.PowerReal,
		PowerFactor:   sub.PowerFactor,
		RecordedAt:    time.Unix(sub.Timestamp, 0).UTC(),
	}

	if err := in.readings.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("persisting reading: %w", err)
	}

	in.stampLiveness(ctx, dev.ID)

	if in.metrics != nil {
		in.metrics.WriteReading(reading)
	}

	return reading, nil
}

// IngestAnomaly persists an anomaly event, applies the severity override and
// relay trip rules, stamps liveness, and notifies subscribers scoped to the
// device. Notification failure never fails the call.
func (in *Ingestor) IngestAnomaly(ctx context.Context, sub AnomalySubmission) (*AnomalyEvent, error) {
	dev, err := in.resolveDevice(ctx, sub.DeviceID)
	if err != nil {
		return nil, err
	}

	event := &AnomalyEvent{
		DeviceID:     dev.ID,
		Type:         sub.Type,
		Severity:     EffectiveSeverity(sub.RelayTripped, sub.Severity),
		Voltage:      sub.Voltage,
		Current:      sub.Current,
		Power:        sub.Power,
		RelayTripped: sub.RelayTripped,
		OccurredAt:   time.Unix(sub.Timestamp, 0).UTC(),
	}

	if err := in.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("persisting anomaly event: %w", err)
	}

	if sub.RelayTripped {
		// Re-tripping an already tripped relay is a no-op at the data
		// level but the notification below still goes out.
		newStatus, err := in.devices.ApplyRelayTransition(ctx, dev.ID, device.TripTransition{})
		if err != nil {
			return nil, fmt.Errorf("tripping relay: %w", err)
		}
		if in.relayLog != nil && newStatus != dev.RelayStatus {
			in.recordTrip(ctx, dev.ID, dev.RelayStatus, newStatus, event.ID)
		}
	}

	in.stampLiveness(ctx, dev.ID)

	in.fanout.Publish(dev.ID, EventAnomaly, event)

	return event, nil
}

// ResolveAnomaly marks an event resolved on behalf of the device's owner and
// notifies subscribers. Only the owner of the event's device may resolve it.
func (in *Ingestor) ResolveAnomaly(ctx context.Context, eventID, userID string) (*AnomalyEvent, error) {
	event, err := in.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	dev, err := in.devices.GetByID(ctx, event.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("loading event device: %w", err)
	}
	if dev.OwnerID != userID {
		return nil, ErrAccessDenied
	}

	if err := in.events.MarkResolved(ctx, event.ID, userID); err != nil {
		return nil, err
	}

	resolved, err := in.events.GetByID(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	in.fanout.Publish(dev.ID, EventAnomalyResolved, resolved)

	return resolved, nil
}

// resolveDevice resolves a submission's external identity to a device and
// enforces the activity gate.
func (in *Ingestor) resolveDevice(ctx context.Context, hardwareID string) (*device.Device, error) {
	dev, err := in.devices.GetByDeviceID(ctx, hardwareID)
	if err != nil {
		return nil, err
	}
	if !dev.IsActive {
		return nil, device.ErrDeviceInactive
	}
	return dev, nil
}

// recordTrip writes a relay change log entry for a safety trip.
func (in *Ingestor) recordTrip(ctx context.Context, deviceID string, from, to device.RelayStatus, eventID string) {
	change := &relaylog.Change{
		DeviceID: deviceID,
		From:     from,
		To:       to,
		Cause:    relaylog.CauseTrip,
		EventID:  eventID,
	}
	if err := in.relayLog.Create(ctx, change); err != nil {
		in.logger.Warn("recording relay change failed", "device_id", deviceID, "error", err)
	}
}

// stampLiveness updates the device's last-seen time. Best effort: an
// ingestion that stored its payload still succeeds if the stamp fails.
func (in *Ingestor) stampLiveness(ctx context.Context, deviceID string) {
	if err := in.devices.UpdateLastSeen(ctx, deviceID); err != nil {
		in.logger.Warn("stamping device liveness failed", "device_id", deviceID, "error", err)
	}
}
