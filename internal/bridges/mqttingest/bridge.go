package mqttingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluewatt/bluewatt-core/internal/auth"
	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/mqtt"
	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// ingestTimeout bounds pipeline work for a single message so a stalled
// database write cannot back up the paho router.
const ingestTimeout = 10 * time.Second

// Subscriber is the broker surface the bridge needs. Satisfied by
// *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Resolver authenticates a device credential. Satisfied by *auth.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, secret string) (*device.Device, error)
}

// Pipeline accepts authenticated submissions. Satisfied by
// *telemetry.Ingestor.
type Pipeline interface {
	IngestReading(ctx context.Context, sub telemetry.ReadingSubmission) (*telemetry.PowerReading, error)
	IngestAnomaly(ctx context.Context, sub telemetry.AnomalySubmission) (*telemetry.AnomalyEvent, error)
}

// Bridge subscribes to the ingest topics and forwards authenticated
// payloads into the telemetry pipeline.
type Bridge struct {
	client   Subscriber
	resolver Resolver
	pipeline Pipeline
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an ingest bridge. All dependencies are required.
func New(client Subscriber, resolver Resolver, pipeline Pipeline, logger *logging.Logger) (*Bridge, error) {
	if client == nil {
		return nil, errors.New("mqttingest: client is required")
	}
	if resolver == nil {
		return nil, errors.New("mqttingest: resolver is required")
	}
	if pipeline == nil {
		return nil, errors.New("mqttingest: pipeline is required")
	}
	if logger == nil {
		return nil, errors.New("mqttingest: logger is required")
	}
	return &Bridge{
		client:   client,
		resolver: resolver,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Start subscribes to the ingest topics. The bridge stops accepting work
// when ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	var topics mqtt.Topics
	qos := b.client.QoS()

	if err := b.client.Subscribe(topics.IngestPower(), qos, b.handlePower); err != nil {
		return fmt.Errorf("subscribe %s: %w", topics.IngestPower(), err)
	}
	if err := b.client.Subscribe(topics.IngestAnomaly(), qos, b.handleAnomaly); err != nil {
		return fmt.Errorf("subscribe %s: %w", topics.IngestAnomaly(), err)
	}

	b.logger.Info("MQTT ingest bridge started",
		"power_topic", topics.IngestPower(),
		"anomaly_topic", topics.IngestAnomaly())
	return nil
}

// Stop halts message processing. Broker-side unsubscription happens when
// the MQTT client closes.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bridge) handlePower(topic string, payload []byte) error {
	if b.stopped() {
		return nil
	}

	var msg powerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("dropping malformed power payload", "topic", topic, "error", err)
		return nil
	}
	if err := validate.Struct(msg); err != nil {
		b.logger.Warn("dropping power payload failing validation", "topic", topic, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, ingestTimeout)
	defer cancel()

	if _, err := b.authenticate(ctx, topic, msg.APIKey); err != nil {
		return nil
	}

	reading, err := b.pipeline.IngestReading(ctx, msg.submission())
	if err != nil {
		b.logIngestFailure(topic, msg.DeviceID, err)
		return nil
	}

	b.logger.Debug("ingested power reading from MQTT",
		"reading_id", reading.ID, "device_id", msg.DeviceID)
	return nil
}

func (b *Bridge) handleAnomaly(topic string, payload []byte) error {
	if b.stopped() {
		return nil
	}

	var msg anomalyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("dropping malformed anomaly payload", "topic", topic, "error", err)
		return nil
	}
	if err := validate.Struct(msg); err != nil {
		b.logger.Warn("dropping anomaly payload failing validation", "topic", topic, "error", err)
		return nil
	}
	if !telemetry.IsValidAnomalyType(telemetry.AnomalyType(msg.AnomalyType)) {
		b.logger.Warn("dropping anomaly payload with unknown type",
			"topic", topic, "anomaly_type", msg.AnomalyType)
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, ingestTimeout)
	defer cancel()

	if _, err := b.authenticate(ctx, topic, msg.APIKey); err != nil {
		return nil
	}

	event, err := b.pipeline.IngestAnomaly(ctx, msg.submission())
	if err != nil {
		b.logIngestFailure(topic, msg.DeviceID, err)
		return nil
	}

	b.logger.Info("ingested anomaly event from MQTT",
		"event_id", event.ID, "device_id", msg.DeviceID,
		"anomaly_type", msg.AnomalyType, "relay_tripped", msg.RelayTripped)
	return nil
}

// authenticate resolves the embedded credential. The raw key never
// reaches the log.
func (b *Bridge) authenticate(ctx context.Context, topic, apiKey string) (*device.Device, error) {
	dev, err := b.resolver.Resolve(ctx, apiKey)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			b.logger.Warn("dropping payload with invalid credentials", "topic", topic)
		} else {
			b.logger.Error("credential resolution failed", "topic", topic, "error", err)
		}
		return nil, err
	}
	return dev, nil
}

func (b *Bridge) logIngestFailure(topic, deviceID string, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		b.logger.Warn("dropping payload for unknown device", "topic", topic, "device_id", deviceID)
	case errors.Is(err, device.ErrDeviceInactive):
		b.logger.Warn("dropping payload for inactive device", "topic", topic, "device_id", deviceID)
	default:
		b.logger.Error("pipeline rejected payload", "topic", topic, "device_id", deviceID, "error", err)
	}
}

func (b *Bridge) stopped() bool {
	if b.ctx == nil {
		return false
	}
	select {
	case <-b.ctx.Done():
		return true
	default:
		return false
	}
}
