package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluewatt/bluewatt-core/internal/device"
)

// SeedDemo provisions a first owner, device, and device secret on an empty
// database. The raw secret is logged once and cannot be recovered later.
// Returns the generated secret (empty string if seeding was skipped).
//
// This exists for development and first-boot smoke testing; production
// fleets are provisioned by the account service.
func SeedDemo(ctx context.Context, users UserRepository, devices device.Repository, secrets SecretRepository, logger *slog.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping demo seed")
		return "", nil
	}

	owner := &User{
		Email: "owner@example.com",
		Name:  "Demo Owner",
	}
	if err := users.Create(ctx, owner); err != nil {
		return "", fmt.Errorf("creating seed owner: %w", err)
	}

	dev := &device.Device{
		DeviceID: "esp32-demo-001",
		OwnerID:  owner.ID,
		Name:     "Demo Unit",
		IsActive: true,
	}
	if err := devices.Create(ctx, dev); err != nil {
		return "", fmt.Errorf("creating seed device: %w", err)
	}

	raw, err := GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("generating seed secret: %w", err)
	}
	hash, err := HashSecret(raw)
	if err != nil {
		return "", fmt.Errorf("hashing seed secret: %w", err)
	}

	if err := secrets.Create(ctx, &DeviceSecret{
		DeviceID:   dev.ID,
		SecretHash: hash,
		IsActive:   true,
	}); err != nil {
		return "", fmt.Errorf("creating seed secret: %w", err)
	}

	logger.Warn("demo owner and device seeded",
		"owner_id", owner.ID,
		"device_id", dev.ID,
		"api_key", raw,
		"action_required", "rotate this secret before production use",
	)

	return raw, nil
}
