package auth

import (
	"context"
	"errors"
	"testing"
)

func TestSecretRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)

	repo := NewSecretRepository(db)
	hash, _ := HashSecret("bw_test")
	secret := &DeviceSecret{
		DeviceID:   dev.ID,
		SecretHash: hash,
		IsActive:   true,
	}

	if err := repo.Create(ctx, secret); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if secret.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByID(ctx, secret.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DeviceID != dev.ID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, dev.ID)
	}
	if got.SecretHash != hash {
		t.Error("SecretHash should round-trip unchanged")
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if got.LastUsedAt != nil {
		t.Error("LastUsedAt should start nil")
	}
}

func TestSecretRepository_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSecretRepository(db)

	_, err := repo.GetByID(context.Background(), "sec-missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetByID() error = %v, want ErrSecretNotFound", err)
	}
}

func TestSecretRepository_ListActive(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)

	_, active := seedTestSecret(t, db, dev.ID, true)
	_, _ = seedTestSecret(t, db, dev.ID, false)

	repo := NewSecretRepository(db)
	secrets, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}

	if len(secrets) != 1 {
		t.Fatalf("ListActive() returned %d secrets, want 1", len(secrets))
	}
	if secrets[0].ID != active.ID {
		t.Errorf("ListActive()[0].ID = %q, want %q", secrets[0].ID, active.ID)
	}
}

func TestSecretRepository_ListActive_Empty(t *testing.T) {
	db := testDB(t)
	repo := NewSecretRepository(db)

	secrets, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if secrets == nil {
		t.Error("ListActive() should return empty slice, not nil")
	}
	if len(secrets) != 0 {
		t.Errorf("ListActive() returned %d secrets, want 0", len(secrets))
	}
}

func TestSecretRepository_ListByDevice(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	devA := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	devB := seedTestDevice(t, db, owner.ID, "esp32-002", true)

	seedTestSecret(t, db, devA.ID, true)
	seedTestSecret(t, db, devA.ID, false)
	seedTestSecret(t, db, devB.ID, true)

	repo := NewSecretRepository(db)
	secrets, err := repo.ListByDevice(ctx, devA.ID)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}

	if len(secrets) != 2 {
		t.Fatalf("ListByDevice() returned %d secrets, want 2", len(secrets))
	}
	for _, s := range secrets {
		if s.DeviceID != devA.ID {
			t.Errorf("secret %s belongs to %q, want %q", s.ID, s.DeviceID, devA.ID)
		}
	}
}

func TestSecretRepository_TouchLastUsed(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	_, secret := seedTestSecret(t, db, dev.ID, true)

	repo := NewSecretRepository(db)
	if err := repo.TouchLastUsed(ctx, secret.ID); err != nil {
		t.Fatalf("TouchLastUsed() error = %v", err)
	}

	got, err := repo.GetByID(ctx, secret.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastUsedAt == nil {
		t.Error("LastUsedAt should be set after TouchLastUsed")
	}
}

func TestSecretRepository_TouchLastUsed_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSecretRepository(db)

	err := repo.TouchLastUsed(context.Background(), "sec-missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("TouchLastUsed() error = %v, want ErrSecretNotFound", err)
	}
}

func TestSecretRepository_Deactivate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := seedTestUser(t, db, "owner@example.com")
	dev := seedTestDevice(t, db, owner.ID, "esp32-001", true)
	_, secret := seedTestSecret(t, db, dev.ID, true)

	repo := NewSecretRepository(db)
	if err := repo.Deactivate(ctx, secret.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	got, err := repo.GetByID(ctx, secret.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Error("secret should be inactive after Deactivate")
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() returned %d secrets after deactivation, want 0", len(active))
	}
}
