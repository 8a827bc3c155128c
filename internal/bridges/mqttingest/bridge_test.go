package mqttingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bluewatt/bluewatt-core/internal/auth"
	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/mqtt"
	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

const testAPIKey = "bw_0000000000000000000000000000000000000000000000000000000000000000"

// ─── Fakes ───

type fakeSubscriber struct {
	handlers map[string]mqtt.MessageHandler
	failOn   string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if topic == f.failOn {
		return mqtt.ErrSubscribeFailed
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) QoS() byte { return 1 }

// deliver invokes the registered handler as the paho router would.
func (f *fakeSubscriber) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	handler, ok := f.handlers[topic]
	if !ok {
		t.Fatalf("no handler registered for %s", topic)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
}

type fakeResolver struct {
	dev *device.Device
}

func (f *fakeResolver) Resolve(_ context.Context, secret string) (*device.Device, error) {
	if f.dev != nil && secret == testAPIKey {
		return f.dev, nil
	}
	return nil, auth.ErrUnauthenticated
}

type fakePipeline struct {
	readings  []telemetry.ReadingSubmission
	anomalies []telemetry.AnomalySubmission
	err       error
}

func (f *fakePipeline) IngestReading(_ context.Context, sub telemetry.ReadingSubmission) (*telemetry.PowerReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.readings = append(f.readings, sub)
	return &telemetry.PowerReading{ID: "rdg-test1", DeviceID: "dev-test1"}, nil
}

func (f *fakePipeline) IngestAnomaly(_ context.Context, sub telemetry.AnomalySubmission) (*telemetry.AnomalyEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.anomalies = append(f.anomalies, sub)
	return &telemetry.AnomalyEvent{ID: "evt-test1", DeviceID: "dev-test1"}, nil
}

func testBridge(t *testing.T) (*Bridge, *fakeSubscriber, *fakePipeline) {
	t.Helper()

	sub := newFakeSubscriber()
	pipeline := &fakePipeline{}
	resolver := &fakeResolver{dev: &device.Device{ID: "dev-test1", DeviceID: "esp32-bridge-001", IsActive: true}}
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")

	b, err := New(sub, resolver, pipeline, log)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	return b, sub, pipeline
}

func powerPayload(t *testing.T, mutate func(*powerMessage)) []byte {
	t.Helper()
	msg := powerMessage{
		APIKey:        testAPIKey,
		DeviceID:      "esp32-bridge-001",
		Timestamp:     1700000000,
		VoltageRMS:    230.1,
		CurrentRMS:    4.2,
		PowerApparent: 966.4,
		PowerReal:     950.0,
		PowerFactor:   0.98,
	}
	if mutate != nil {
		mutate(&msg)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func anomalyPayload(t *testing.T, mutate func(*anomalyMessage)) []byte {
	t.Helper()
	msg := anomalyMessage{
		APIKey:       testAPIKey,
		DeviceID:     "esp32-bridge-001",
		Timestamp:    1700000000,
		AnomalyType:  "overcurrent",
		RelayTripped: true,
	}
	if mutate != nil {
		mutate(&msg)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

// ─── Startup ───

func TestStart_SubscribesIngestTopics(t *testing.T) {
	_, sub, _ := testBridge(t)

	var topics mqtt.Topics
	for _, topic := range []string{topics.IngestPower(), topics.IngestAnomaly()} {
		if _, ok := sub.handlers[topic]; !ok {
			t.Errorf("no subscription for %s", topic)
		}
	}
}

func TestStart_SubscribeFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failOn = mqtt.Topics{}.IngestPower()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")

	b, err := New(sub, &fakeResolver{}, &fakePipeline{}, log)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when subscribe fails")
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	if _, err := New(nil, &fakeResolver{}, &fakePipeline{}, log); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := New(newFakeSubscriber(), nil, &fakePipeline{}, log); err == nil {
		t.Error("expected error for nil resolver")
	}
}

// ─── Power ingestion ───

func TestHandlePower_Success(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	sub.deliver(t, mqtt.Topics{}.IngestPower(), powerPayload(t, nil))

	if len(pipeline.readings) != 1 {
		t.Fatalf("readings = %d, want 1", len(pipeline.readings))
	}
	got := pipeline.readings[0]
	if got.DeviceID != "esp32-bridge-001" {
		t.Errorf("DeviceID = %q", got.DeviceID)
	}
	if got.VoltageRMS != 230.1 || got.PowerFactor != 0.98 {
		t.Errorf("submission fields not carried: %+v", got)
	}
}

func TestHandlePower_InvalidCredentials(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	payload := powerPayload(t, func(m *powerMessage) { m.APIKey = "bw_wrong" })
	sub.deliver(t, mqtt.Topics{}.IngestPower(), payload)

	if len(pipeline.readings) != 0 {
		t.Error("unauthenticated payload reached the pipeline")
	}
}

func TestHandlePower_RangeViolation(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	payload := powerPayload(t, func(m *powerMessage) { m.VoltageRMS = 600 })
	sub.deliver(t, mqtt.Topics{}.IngestPower(), payload)

	if len(pipeline.readings) != 0 {
		t.Error("out-of-range payload reached the pipeline")
	}
}

func TestHandlePower_MalformedJSON(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	sub.deliver(t, mqtt.Topics{}.IngestPower(), []byte("{not json"))

	if len(pipeline.readings) != 0 {
		t.Error("malformed payload reached the pipeline")
	}
}

func TestHandlePower_PipelineFailureIsDropped(t *testing.T) {
	_, sub, pipeline := testBridge(t)
	pipeline.err = device.ErrDeviceNotFound

	// The handler must swallow pipeline errors: there is no reply channel.
	sub.deliver(t, mqtt.Topics{}.IngestPower(), powerPayload(t, nil))
}

// ─── Anomaly ingestion ───

func TestHandleAnomaly_Success(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	sub.deliver(t, mqtt.Topics{}.IngestAnomaly(), anomalyPayload(t, nil))

	if len(pipeline.anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(pipeline.anomalies))
	}
	got := pipeline.anomalies[0]
	if got.Type != telemetry.AnomalyOvercurrent {
		t.Errorf("Type = %q", got.Type)
	}
	if !got.RelayTripped {
		t.Error("RelayTripped not carried")
	}
}

func TestHandleAnomaly_UnknownType(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	payload := anomalyPayload(t, func(m *anomalyMessage) { m.AnomalyType = "gremlins" })
	sub.deliver(t, mqtt.Topics{}.IngestAnomaly(), payload)

	if len(pipeline.anomalies) != 0 {
		t.Error("unknown anomaly type reached the pipeline")
	}
}

func TestHandleAnomaly_MissingCredential(t *testing.T) {
	_, sub, pipeline := testBridge(t)

	payload := anomalyPayload(t, func(m *anomalyMessage) { m.APIKey = "" })
	sub.deliver(t, mqtt.Topics{}.IngestAnomaly(), payload)

	if len(pipeline.anomalies) != 0 {
		t.Error("credential-less payload reached the pipeline")
	}
}

// ─── Shutdown ───

func TestStop_DropsSubsequentMessages(t *testing.T) {
	b, sub, pipeline := testBridge(t)

	b.Stop()
	sub.deliver(t, mqtt.Topics{}.IngestPower(), powerPayload(t, nil))

	if len(pipeline.readings) != 0 {
		t.Error("message processed after Stop")
	}
}
