// Package relaylog records relay status transitions in the relay_changes
// table. Trips are written by the ingestion pipeline with the anomaly
// event that caused them; administrative changes carry the acting user.
package relaylog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bluewatt/bluewatt-core/internal/device"
)

// Cause classifies who initiated a relay transition.
type Cause string

const (
	// CauseTrip is an ingestion-driven safety trip.
	CauseTrip Cause = "trip"

	// CauseAdmin is an operator-driven change.
	CauseAdmin Cause = "admin"
)

// Change is a single relay status transition.
type Change struct {
	ID       string             `json:"id"`
	DeviceID string             `json:"device_id"`
	From     device.RelayStatus `json:"from"`
	To       device.RelayStatus `json:"to"`
	Cause    Cause              `json:"cause"`

	// EventID references the anomaly event behind a trip. Empty for
	// administrative changes.
	EventID string `json:"event_id,omitempty"`

	// UserID is the operator behind an administrative change. Empty for
	// trips.
	UserID string `json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which changes List returns.
type Filter struct {
	DeviceID string // optional: restrict to one device
	Cause    Cause  // optional: restrict to trip or admin changes
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains paginated relay change results.
type ListResult struct {
	Changes []Change `json:"changes"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines relay change log operations.
type Repository interface {
	Create(ctx context.Context, c *Change) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a SQLite-backed relay change repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a relay change. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, c *Change) error {
	if c.ID == "" {
		c.ID = "rlc-" + uuid.NewString()[:8]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if !device.IsValidRelayStatus(c.From) || !device.IsValidRelayStatus(c.To) {
		return fmt.Errorf("%w: %q -> %q", device.ErrInvalidRelayStatus, c.From, c.To)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relay_changes (id, device_id, from_status, to_status, cause, event_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DeviceID, string(c.From), string(c.To), string(c.Cause),
		nullableString(c.EventID), nullableString(c.UserID),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting relay change: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings. Used for nullable TEXT
// columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns changes matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Cause != "" {
		conditions = append(conditions, "cause = ?")
		args = append(args, string(filter.Cause))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM relay_changes %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting relay changes: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device_id, from_status, to_status, cause, event_id, user_id, created_at FROM relay_changes %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relay changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		var from, to, cause, createdAt string
		var eventID, userID sql.NullString

		if err := rows.Scan(&c.ID, &c.DeviceID, &from, &to, &cause,
			&eventID, &userID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning relay change: %w", err)
		}

		c.From = device.RelayStatus(from)
		c.To = device.RelayStatus(to)
		c.Cause = Cause(cause)
		if eventID.Valid {
			c.EventID = eventID.String
		}
		if userID.Valid {
			c.UserID = userID.String
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing relay change timestamp %q: %w", createdAt, err)
		}
		c.CreatedAt = t

		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relay changes: %w", err)
	}

	if changes == nil {
		changes = []Change{}
	}

	return &ListResult{
		Changes: changes,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
