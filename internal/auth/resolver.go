package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
)

// Resolver turns a presented device secret into a device identity.
//
// Resolution is a linear scan over all active secret hashes with an Argon2id
// comparison per candidate. The fleet sizes this core targets keep the scan
// small; the structural format check rejects junk before any hashing.
type Resolver struct {
	secrets SecretRepository
	devices device.Repository
	logger  *logging.Logger
}

// NewResolver creates a credential resolver.
func NewResolver(secrets SecretRepository, devices device.Repository, logger *logging.Logger) *Resolver {
	return &Resolver{
		secrets: secrets,
		devices: devices,
		logger:  logger.With("component", "auth.resolver"),
	}
}

// Resolve authenticates a presented secret and returns the device it
// belongs to. On success it stamps the secret's last_used_at and the
// device's last_seen_at.
//
// Every failure mode surfaces as ErrUnauthenticated: bad format, no
// matching hash, revoked secret, or inactive device. Callers must not be
// able to distinguish them.
func (r *Resolver) Resolve(ctx context.Context, secret string) (*device.Device, error) {
	if !IsValidSecretFormat(secret) {
		return nil, ErrUnauthenticated
	}

	candidates, err := r.secrets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active secrets: %w", err)
	}

	for i := range candidates {
		match, err := VerifySecret(secret, candidates[i].SecretHash)
		if err != nil {
			// A malformed stored hash should not block the rest of the scan.
			r.logger.Warn("skipping unparseable secret hash", "secret_id", candidates[i].ID, "error", err)
			continue
		}
		if !match {
			continue
		}

		return r.resolveMatched(ctx, &candidates[i])
	}

	return nil, ErrUnauthenticated
}

// resolveMatched loads and checks the device behind a matched secret, then
// stamps usage times.
func (r *Resolver) resolveMatched(ctx context.Context, secret *DeviceSecret) (*device.Device, error) {
	dev, err := r.devices.GetByID(ctx, secret.DeviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("loading device for secret: %w", err)
	}

	if !dev.IsActive {
		return nil, ErrUnauthenticated
	}

	// Usage stamps are best effort: a failed stamp must not fail an
	// otherwise valid authentication.
	if err := r.secrets.TouchLastUsed(ctx, secret.ID); err != nil {
		r.logger.Warn("stamping secret last_used failed", "secret_id", secret.ID, "error", err)
	}
	if err := r.devices.UpdateLastSeen(ctx, dev.ID); err != nil {
		r.logger.Warn("stamping device last_seen failed", "device_id", dev.ID, "error", err)
	}

	return dev, nil
}
