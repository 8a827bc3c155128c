package telemetry

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/relaylog"
)

// testDB creates a temporary SQLite database with the core schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "telemetry-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE devices (
			id           TEXT PRIMARY KEY,
			device_id    TEXT NOT NULL UNIQUE,
			owner_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name         TEXT NOT NULL DEFAULT '',
			is_active    INTEGER NOT NULL DEFAULT 1,
			relay_status TEXT NOT NULL DEFAULT 'on'
			             CHECK (relay_status IN ('on', 'off', 'tripped')),
			last_seen_at TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE power_readings (
			id             TEXT PRIMARY KEY,
			device_id      TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			voltage_rms    REAL NOT NULL,
			current_rms    REAL NOT NULL,
			power_apparent REAL NOT NULL,
			power_real     REAL NOT NULL,
			power_factor   REAL NOT NULL,
			recorded_at    TEXT NOT NULL,
			created_at     TEXT NOT NULL
		);

		CREATE TABLE anomaly_events (
			id            TEXT PRIMARY KEY,
			device_id     TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			anomaly_type  TEXT NOT NULL,
			severity      TEXT NOT NULL,
			voltage       REAL,
			current       REAL,
			power         REAL,
			relay_tripped INTEGER NOT NULL DEFAULT 0,
			occurred_at   TEXT NOT NULL,
			resolved      INTEGER NOT NULL DEFAULT 0,
			resolved_by   TEXT,
			resolved_at   TEXT,
			created_at    TEXT NOT NULL
		);

		INSERT INTO users (id, email, name, created_at)
		VALUES ('usr-owner1', 'owner1@example.com', 'Owner One', '2026-01-01T00:00:00Z'),
		       ('usr-owner2', 'owner2@example.com', 'Owner Two', '2026-01-01T00:00:00Z');
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

// testLogger creates a quiet text logger for tests.
func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// seedDevice inserts a device and returns it.
func seedDevice(t *testing.T, db *sql.DB, hardwareID, ownerID string, active bool) *device.Device {
	t.Helper()

	repo := device.NewRepository(db)
	dev := &device.Device{
		DeviceID: hardwareID,
		OwnerID:  ownerID,
		IsActive: active,
	}
	if err := repo.Create(context.Background(), dev); err != nil {
		t.Fatalf("creating test device %s: %v", hardwareID, err)
	}
	return dev
}

// published records one Publish call on the capture publisher.
type published struct {
	DeviceID string
	Event    string
	Payload  any
}

// capturePublisher records notifications instead of delivering them.
type capturePublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *capturePublisher) Publish(deviceID, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{DeviceID: deviceID, Event: event, Payload: payload})
}

func (p *capturePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.calls...)
}

// captureMetrics records mirrored readings.
type captureMetrics struct {
	mu       sync.Mutex
	readings []*PowerReading
}

func (m *captureMetrics) WriteReading(r *PowerReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
}

func (m *captureMetrics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings)
}

// captureRelayLog records relay change entries.
type captureRelayLog struct {
	mu      sync.Mutex
	changes []*relaylog.Change
}

func (l *captureRelayLog) Create(_ context.Context, c *relaylog.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
	return nil
}

func (l *captureRelayLog) all() []*relaylog.Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*relaylog.Change(nil), l.changes...)
}

func floatPtr(f float64) *float64 { return &f }
