package auth

import (
	"errors"
	"time"
)

// User represents a dashboard account that owns devices. Registration and
// login live in the account service; the core only stores the identity row
// that device ownership references.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceSecret is a stored device credential. Only the Argon2id hash of the
// secret is persisted; the raw secret is shown once at generation time.
// A device may hold several active secrets at once (rotation).
type DeviceSecret struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	SecretHash string     `json:"-"` // never serialised
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	// ErrUnauthenticated is returned for every credential failure: bad
	// format, unknown secret, revoked secret, or inactive device. Callers
	// must not be able to distinguish these cases.
	ErrUnauthenticated = errors.New("invalid device credentials")

	ErrSecretNotFound = errors.New("device secret not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already registered")
	ErrTokenInvalid   = errors.New("invalid token")
)
