package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the core schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
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

		CREATE TABLE device_secrets (
			id           TEXT PRIMARY KEY,
			device_id    TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			secret_hash  TEXT NOT NULL,
			is_active    INTEGER NOT NULL DEFAULT 1,
			last_used_at TEXT,
			created_at   TEXT NOT NULL
		);
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

// seedTestUser inserts a test user and returns it.
func seedTestUser(t *testing.T, db *sql.DB, email string) *User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &User{Email: email, Name: "Test User"}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

// seedTestDevice inserts a test device owned by ownerID and returns it.
func seedTestDevice(t *testing.T, db *sql.DB, ownerID, hardwareID string, active bool) *device.Device {
	t.Helper()

	repo := device.NewRepository(db)
	dev := &device.Device{
		DeviceID: hardwareID,
		OwnerID:  ownerID,
		Name:     "Test Device",
		IsActive: active,
	}
	if err := repo.Create(context.Background(), dev); err != nil {
		t.Fatalf("creating test device %s: %v", hardwareID, err)
	}
	return dev
}

// seedTestSecret generates, hashes, and stores a secret for a device.
// Returns the raw secret and its stored row.
func seedTestSecret(t *testing.T, db *sql.DB, deviceID string, active bool) (string, *DeviceSecret) {
	t.Helper()

	raw, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generating test secret: %v", err)
	}
	hash, err := HashSecret(raw)
	if err != nil {
		t.Fatalf("hashing test secret: %v", err)
	}

	repo := NewSecretRepository(db)
	secret := &DeviceSecret{
		DeviceID:   deviceID,
		SecretHash: hash,
		IsActive:   active,
	}
	if err := repo.Create(context.Background(), secret); err != nil {
		t.Fatalf("creating test secret: %v", err)
	}
	return raw, secret
}
