package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReadingRepository defines the interface for power reading persistence.
type ReadingRepository interface {
	Create(ctx context.Context, r *PowerReading) error
	GetByID(ctx context.Context, id string) (*PowerReading, error)
	CountByDevice(ctx context.Context, deviceID string) (int, error)
}

// SQLiteReadingRepository implements ReadingRepository using SQLite.
type SQLiteReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository creates a new SQLite-backed reading repository.
func NewReadingRepository(db *sql.DB) *SQLiteReadingRepository {
	return &SQLiteReadingRepository{db: db}
}

// Create inserts a power reading. The ID is generated if empty.
func (r *SQLiteReadingRepository) Create(ctx context.Context, reading *PowerReading) error {
	if reading.ID == "" {
		reading.ID = "rdg-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	reading.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO power_readings (id, device_id, voltage_rms, current_rms, power_apparent, power_real, power_factor, recorded_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.ID, reading.DeviceID,
		reading.VoltageRMS, reading.CurrentRMS,
		reading.PowerApparent, reading.PowerReal, reading.PowerFactor,
		reading.RecordedAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("creating power reading: %w", err)
	}

	return nil
}

// GetByID retrieves a reading by its unique ID.
func (r *SQLiteReadingRepository) GetByID(ctx context.Context, id string) (*PowerReading, error) {
	var reading PowerReading
	var recordedAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, voltage_rms, current_rms, power_apparent, power_real, power_factor, recorded_at, created_at
		 FROM power_readings WHERE id = ?`, id,
	).Scan(&reading.ID, &reading.DeviceID,
		&reading.VoltageRMS, &reading.CurrentRMS,
		&reading.PowerApparent, &reading.PowerReal, &reading.PowerFactor,
		&recordedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("scanning power reading: %w", err)
	}

	reading.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // format is controlled
	reading.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)   //nolint:errcheck // format is controlled

	return &reading, nil
}

// CountByDevice returns the number of stored readings for a device.
func (r *SQLiteReadingRepository) CountByDevice(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM power_readings WHERE device_id = ?", deviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting power readings: %w", err)
	}
	return count, nil
}
