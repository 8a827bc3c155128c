package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/bluewatt/bluewatt-core/internal/device"
)

func TestResolver_Resolve_Success(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	raw, secret := seedTestSecret(t, db, dev.ID, true)

	secrets := NewSecretRepository(db)
	devices := device.NewRepository(db)
	resolver := NewResolver(secrets, devices, testLogger())

	got, err := resolver.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != dev.ID {
		t.Errorf("resolved device ID = %q, want %q", got.ID, dev.ID)
	}

	// Success stamps last_used on the secret and last_seen on the device
	s, err := secrets.GetByID(ctx, secret.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if s.LastUsedAt == nil {
		t.Error("secret LastUsedAt should be stamped after successful resolve")
	}

	d, err := devices.GetByID(ctx, dev.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.LastSeenAt == nil {
		t.Error("device LastSeenAt should be stamped after successful resolve")
	}
}

func TestResolver_Resolve_BadFormat(t *testing.T) {
	db := testDB(t)
	resolver := NewResolver(NewSecretRepository(db), device.NewRepository(db), testLogger())

	tests := []string{"", "bw_", "not-a-key", "bw_short"}
	for _, key := range tests {
		if _, err := resolver.Resolve(context.Background(), key); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnauthenticated", key, err)
		}
	}
}

func TestResolver_Resolve_UnknownSecret(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	seedTestSecret(t, db, dev.ID, true)

	resolver := NewResolver(NewSecretRepository(db), device.NewRepository(db), testLogger())

	// Well-formed but unknown
	stranger, _ := GenerateSecret()
	if _, err := resolver.Resolve(ctx, stranger); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve() error = %v, want ErrUnauthenticated", err)
	}
}

func TestResolver_Resolve_RevokedSecret(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	raw, _ := seedTestSecret(t, db, dev.ID, false)

	resolver := NewResolver(NewSecretRepository(db), device.NewRepository(db), testLogger())

	if _, err := resolver.Resolve(ctx, raw); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve() with revoked secret error = %v, want ErrUnauthenticated", err)
	}
}

func TestResolver_Resolve_InactiveDevice(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", false)
	raw, _ := seedTestSecret(t, db, dev.ID, true)

	resolver := NewResolver(NewSecretRepository(db), device.NewRepository(db), testLogger())

	// An inactive device with a valid secret is indistinguishable from an
	// unknown secret.
	if _, err := resolver.Resolve(ctx, raw); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve() with inactive device error = %v, want ErrUnauthenticated", err)
	}
}

func TestResolver_Resolve_MultipleActiveSecrets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	devA := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	devB := seedTestDevice(t, db, owner.ID, "esp32-002", true)

	rawA1, _ := seedTestSecret(t, db, devA.ID, true)
	rawA2, _ := seedTestSecret(t, db, devA.ID, true)
	rawB, _ := seedTestSecret(t, db, devB.ID, true)

	resolver := NewResolver(NewSecretRepository(db), device.NewRepository(db), testLogger())

	for _, tc := range []struct {
		raw  string
		want string
	}{
		{rawA1, devA.ID},
		{rawA2, devA.ID},
		{rawB, devB.ID},
	} {
		got, err := resolver.Resolve(ctx, tc.raw)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.ID != tc.want {
			t.Errorf("resolved device = %q, want %q", got.ID, tc.want)
		}
	}
}

func TestResolver_Resolve_SkipsCorruptHash(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)

	// A corrupt hash row must not abort the scan
	secrets := NewSecretRepository(db)
	if err := secrets.Create(ctx, &DeviceSecret{
		DeviceID:   dev.ID,
		SecretHash: "not-a-phc-hash",
		IsActive:   true,
	}); err != nil {
		t.Fatalf("creating corrupt secret: %v", err)
	}

	raw, _ := seedTestSecret(t, db, dev.ID, true)

	resolver := NewResolver(secrets, device.NewRepository(db), testLogger())
	got, err := resolver.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != dev.ID {
		t.Errorf("resolved device = %q, want %q", got.ID, dev.ID)
	}
}
