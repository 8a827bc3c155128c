package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ViewerClaims are the JWT claims carried by dashboard viewer tokens.
// The subject is the user ID that device ownership rows reference.
type ViewerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ParseToken validates and parses a viewer JWT, returning its claims.
// It checks the signature, expiry, and required fields. Tokens are issued
// by the account service with the same shared secret.
func ParseToken(tokenString, secret string) (*ViewerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ViewerClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*ViewerClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// MintToken creates a signed viewer JWT for a user. The account service is
// the normal issuer; this helper exists for development seeding and tests.
func MintToken(userID, email, secret string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now()
	claims := ViewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing viewer token: %w", err)
	}
	return signed, nil
}
