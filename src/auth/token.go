package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "relay"

type accessClaims struct {
	jwt.RegisteredClaims
}

// Tokens issues and verifies HMAC-signed access tokens. Revoked token IDs
// are remembered until the token would have expired anyway.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewTokens creates a token service. ttl <= 0 means 30 days.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue mints a token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	now := t.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken implements TokenVerifier.
func (t *Tokens) VerifyToken(_ context.Context, token string) (string, error) {
	claims, err := t.parse(token)
	if err != nil {
		return "", err
	}
	if t.isRevoked(claims.ID) {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Revoke invalidates token for the rest of its lifetime.
func (t *Tokens) Revoke(token string) error {
	claims, err := t.parse(token)
	if err != nil {
		return err
	}
	expiry := t.now().Add(t.ttl)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[claims.ID] = expiry
	t.pruneLocked()
	return nil
}

func (t *Tokens) parse(token string) (*accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (t *Tokens) isRevoked(jti string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.revoked[jti]
	return ok
}

func (t *Tokens) pruneLocked() {
	now := t.now()
	for jti, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, jti)
		}
	}
}
