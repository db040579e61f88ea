package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig controls tokens minted for operators and tests.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
}

// IssueToken signs an HS256 token for p that JWTMiddleware accepts.
func IssueToken(cfg TokenConfig, p Principal, now time.Time) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", errors.New("signing key is required")
	}
	if p.UserID == "" {
		return "", errors.New("subject is required")
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		return "", fmt.Errorf("unknown role %q", p.Role)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(p.Role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
