package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventRepository defines the interface for anomaly event persistence.
type EventRepository interface {
	Create(ctx context.Context, e *AnomalyEvent) error
	GetByID(ctx context.Context, id string) (*AnomalyEvent, error)
	MarkResolved(ctx context.Context, id, resolvedBy string) error
}

// SQLiteEventRepository implements EventRepository using SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite-backed event repository.
func NewEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

const eventColumns = "id, device_id, anomaly_type, severity, voltage, current, power, relay_tripped, occurred_at, resolved, resolved_by, resolved_at, created_at"

// Create inserts an anomaly event. The ID is generated if empty.
func (r *SQLiteEventRepository) Create(ctx context.Context, e *AnomalyEvent) error {
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	e.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO anomaly_events (id, device_id, anomaly_type, severity, voltage, current, power, relay_tripped, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, string(e.Type), string(e.Severity),
		nullFloat(e.Voltage), nullFloat(e.Current), nullFloat(e.Power),
		boolToInt(e.RelayTripped),
		e.OccurredAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("creating anomaly event: %w", err)
	}

	return nil
}

// GetByID retrieves an anomaly event by its unique ID.
func (r *SQLiteEventRepository) GetByID(ctx context.Context, id string) (*AnomalyEvent, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM anomaly_events WHERE id = ?", id)
	return scanEventFrom(row)
}

// MarkResolved flips an unresolved event to resolved, recording who resolved
// it and when. Resolving an already-resolved event is an error.
func (r *SQLiteEventRepository) MarkResolved(ctx context.Context, id, resolvedBy string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE anomaly_events SET resolved = 1, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND resolved = 0`,
		resolvedBy, now, id,
	)
	if err != nil {
		return fmt.Errorf("resolving anomaly event: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		// Distinguish missing from already resolved for the caller.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanEventFrom scans an anomaly event from any scanner (Row or Rows).
func scanEventFrom(s scanner) (*AnomalyEvent, error) {
	var e AnomalyEvent
	var anomalyType, severity string
	var voltage, current, power sql.NullFloat64
	var relayTripped, resolved int
	var resolvedBy, resolvedAt sql.NullString
	var occurredAt, createdAt string

	err := s.Scan(&e.ID, &e.DeviceID, &anomalyType, &severity,
		&voltage, &current, &power, &relayTripped,
		&occurredAt, &resolved, &resolvedBy, &resolvedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scanning anomaly event: %w", err)
	}

	e.Type = AnomalyType(anomalyType)
	e.Severity = Severity(severity)
	if voltage.Valid {
		e.Voltage = &voltage.Float64
	}
	if current.Valid {
		e.Current = &current.Float64
	}
	if power.Valid {
		e.Power = &power.Float64
	}
	e.RelayTripped = relayTripped != 0
	e.Resolved = resolved != 0
	if resolvedBy.Valid {
		e.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String) //nolint:errcheck // format is controlled
		e.ResolvedAt = &t
	}
	e.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt) //nolint:errcheck // format is controlled
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)   //nolint:errcheck // format is controlled

	return &e, nil
}

// Helper functions.

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
