package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	UpdateLastSeen(ctx context.Context, id string) error
	ApplyRelayTransition(ctx context.Context, id string, t Transition) (RelayStatus, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed device repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, device_id, owner_id, name, is_active, relay_status, last_seen_at, created_at, updated_at"

// Create inserts a new device. The internal ID is generated if empty; the
// relay starts on and the device starts active unless set otherwise.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()[:8]
	}
	if d.RelayStatus == "" {
		d.RelayStatus = RelayOn
	}
	if !IsValidRelayStatus(d.RelayStatus) {
		return fmt.Errorf("%w: %q", ErrInvalidRelayStatus, d.RelayStatus)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	d.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	d.UpdatedAt = d.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, device_id, owner_id, name, is_active, relay_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DeviceID, d.OwnerID, d.Name, boolToInt(d.IsActive), string(d.RelayStatus), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceIDExists
		}
		return fmt.Errorf("creating device: %w", err)
	}

	return nil
}

// GetByID retrieves a device by its internal ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	return scanDeviceFrom(row)
}

// GetByDeviceID retrieves a device by its external hardware identifier.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", deviceID)
	return scanDeviceFrom(row)
}

// ListIDsByOwner returns the internal IDs of all devices owned by a user,
// ordered by creation date. This is the permitted device set computed once
// when a viewer connects to the event stream.
func (r *SQLiteRepository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM devices WHERE owner_id = ? ORDER BY created_at ASC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing devices by owner: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// UpdateLastSeen stamps the device's last_seen_at with the current time.
func (r *SQLiteRepository) UpdateLastSeen(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET last_seen_at = ?, updated_at = ? WHERE id = ?", now, now, id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ApplyRelayTransition loads the current relay status, applies the
// transition, and persists the result. Returns the resulting status.
func (r *SQLiteRepository) ApplyRelayTransition(ctx context.Context, id string, t Transition) (RelayStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT relay_status FROM devices WHERE id = ?", id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDeviceNotFound
		}
		return "", fmt.Errorf("reading relay status: %w", err)
	}

	next, err := t.Apply(RelayStatus(current))
	if err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		"UPDATE devices SET relay_status = ?, updated_at = ? WHERE id = ?",
		string(next), now, id,
	); err != nil {
		return "", fmt.Errorf("updating relay status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing relay transition: %w", err)
	}
	return next, nil
}

// SetActive enables or disables a device's ability to authenticate.
func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), now, id)
	if err != nil {
		return fmt.Errorf("setting device active: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDeviceFrom scans a device from any scanner (Row or Rows).
func scanDeviceFrom(s scanner) (*Device, error) {
	var d Device
	var isActive int
	var relayStatus string
	var lastSeenAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.DeviceID, &d.OwnerID, &d.Name, &isActive,
		&relayStatus, &lastSeenAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.IsActive = isActive != 0
	d.RelayStatus = RelayStatus(relayStatus)
	if lastSeenAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSeenAt.String) //nolint:errcheck // format is controlled
		d.LastSeenAt = &t
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
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
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
