package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SecretRepository defines the interface for device credential persistence.
type SecretRepository interface {
	Create(ctx context.Context, secret *DeviceSecret) error
	GetByID(ctx context.Context, id string) (*DeviceSecret, error)
	ListActive(ctx context.Context) ([]DeviceSecret, error)
	ListByDevice(ctx context.Context, deviceID string) ([]DeviceSecret, error)
	TouchLastUsed(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

// SQLiteSecretRepository implements SecretRepository using SQLite.
type SQLiteSecretRepository struct {
	db *sql.DB
}

// NewSecretRepository creates a new SQLite-backed secret repository.
func NewSecretRepository(db *sql.DB) *SQLiteSecretRepository {
	return &SQLiteSecretRepository{db: db}
}

// Create inserts a new device secret. The ID is generated if empty.
func (r *SQLiteSecretRepository) Create(ctx context.Context, secret *DeviceSecret) error {
	if secret.ID == "" {
		secret.ID = "sec-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	secret.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_secrets (id, device_id, secret_hash, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		secret.ID, secret.DeviceID, secret.SecretHash, boolToInt(secret.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("creating device secret: %w", err)
	}

	return nil
}

// GetByID retrieves a secret by its unique ID.
func (r *SQLiteSecretRepository) GetByID(ctx context.Context, id string) (*DeviceSecret, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, device_id, secret_hash, is_active, last_used_at, created_at FROM device_secrets WHERE id = ?", id)
	return scanSecretFrom(row)
}

// ListActive returns all active secrets across all devices. The credential
// resolver scans this set on every authentication attempt.
func (r *SQLiteSecretRepository) ListActive(ctx context.Context) ([]DeviceSecret, error) {
	return r.listSecrets(ctx,
		"SELECT id, device_id, secret_hash, is_active, last_used_at, created_at FROM device_secrets WHERE is_active = 1 ORDER BY created_at ASC")
}

// ListByDevice returns all secrets (active and revoked) for a device.
func (r *SQLiteSecretRepository) ListByDevice(ctx context.Context, deviceID string) ([]DeviceSecret, error) {
	return r.listSecrets(ctx,
		"SELECT id, device_id, secret_hash, is_active, last_used_at, created_at FROM device_secrets WHERE device_id = ? ORDER BY created_at ASC",
		deviceID)
}

// TouchLastUsed stamps a secret's last_used_at with the current time.
func (r *SQLiteSecretRepository) TouchLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE device_secrets SET last_used_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("touching secret: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// Deactivate revokes a secret. Revoked secrets never authenticate again.
func (r *SQLiteSecretRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE device_secrets SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivating secret: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// listSecrets executes a query and scans all secret results.
func (r *SQLiteSecretRepository) listSecrets(ctx context.Context, query string, args ...any) ([]DeviceSecret, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing device secrets: %w", err)
	}
	defer rows.Close()

	var secrets []DeviceSecret
	for rows.Next() {
		s, err := scanSecretFrom(rows)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device secrets: %w", err)
	}

	if secrets == nil {
		secrets = []DeviceSecret{}
	}
	return secrets, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanSecretFrom scans a device secret from any scanner (Row or Rows).
func scanSecretFrom(s scanner) (*DeviceSecret, error) {
	var ds DeviceSecret
	var isActive int
	var lastUsedAt sql.NullString
	var createdAt string

	err := s.Scan(&ds.ID, &ds.DeviceID, &ds.SecretHash, &isActive, &lastUsedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("scanning device secret: %w", err)
	}

	ds.IsActive = isActive != 0
	if lastUsedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastUsedAt.String) //nolint:errcheck // format is controlled
		ds.LastUsedAt = &t
	}
	ds.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &ds, nil
}

// Helper functions.

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "UNIQUE constraint failed") ||
		contains(err.Error(), "unique constraint"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
