package relaylog

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bluewatt/bluewatt-core/internal/device"
)

// testDB creates a temporary SQLite database with the relay change schema
// applied. Foreign keys to devices and anomaly_events are omitted so the
// tests exercise only this repository.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "relaylog-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE relay_changes (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL,
			from_status TEXT NOT NULL CHECK (from_status IN ('on', 'off', 'tripped')),
			to_status   TEXT NOT NULL CHECK (to_status IN ('on', 'off', 'tripped')),
			cause       TEXT NOT NULL CHECK (cause IN ('trip', 'admin')),
			event_id    TEXT,
			user_id     TEXT,
			created_at  TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	change := &Change{
		DeviceID: "dev-aaa11111",
		From:     device.RelayOn,
		To:       device.RelayTripped,
		Cause:    CauseTrip,
		EventID:  "evt-bbb22222",
	}
	if err := repo.Create(ctx, change); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(change.ID) != len("rlc-")+8 || change.ID[:4] != "rlc-" {
		t.Errorf("ID = %q, want rlc- prefix", change.ID)
	}
	if change.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestCreate_RejectsInvalidStatus(t *testing.T) {
	repo := NewRepository(testDB(t))

	change := &Change{
		DeviceID: "dev-aaa11111",
		From:     device.RelayStatus("exploded"),
		To:       device.RelayOff,
		Cause:    CauseAdmin,
	}
	if err := repo.Create(context.Background(), change); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestList_FiltersAndPaginates(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []Change{
		{DeviceID: "dev-aaa11111", From: device.RelayOn, To: device.RelayTripped, Cause: CauseTrip, EventID: "evt-1", CreatedAt: base},
		{DeviceID: "dev-aaa11111", From: device.RelayTripped, To: device.RelayOn, Cause: CauseAdmin, UserID: "usr-owner1", CreatedAt: base.Add(time.Minute)},
		{DeviceID: "dev-bbb22222", From: device.RelayOn, To: device.RelayTripped, Cause: CauseTrip, EventID: "evt-2", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding change %d: %v", i, err)
		}
	}

	t.Run("by device", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{DeviceID: "dev-aaa11111"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 2 || len(res.Changes) != 2 {
			t.Fatalf("total = %d, len = %d, want 2", res.Total, len(res.Changes))
		}
		// Most recent first.
		if res.Changes[0].Cause != CauseAdmin {
			t.Errorf("first change cause = %q, want admin", res.Changes[0].Cause)
		}
	})

	t.Run("by cause", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Cause: CauseTrip})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 2 {
			t.Fatalf("total = %d, want 2", res.Total)
		}
		for _, c := range res.Changes {
			if c.EventID == "" {
				t.Error("trip change missing event reference")
			}
		}
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := repo.List(ctx, Filter{Limit: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(res.Changes) != 2 || res.Total != 3 {
			t.Fatalf("len = %d, total = %d", len(res.Changes), res.Total)
		}

		rest, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(rest.Changes) != 1 {
			t.Fatalf("offset page len = %d, want 1", len(rest.Changes))
		}
	})
}

func TestList_EmptyReturnsEmptySlice(t *testing.T) {
	repo := NewRepository(testDB(t))

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Changes == nil {
		t.Error("Changes is nil, want empty slice")
	}
	if res.Limit != 50 {
		t.Errorf("default limit = %d, want 50", res.Limit)
	}
}
