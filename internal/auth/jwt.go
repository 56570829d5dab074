// Package auth issues and verifies the signed bearer credentials carried by
// API requests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coursehub/internal/domain"
)

// Claims are the registered claims plus the subject's id and role. The role
// is fixed at issuance; a role change only shows up after a new login.
type Claims struct {
	UserID string      `json:"id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified subject of a request.
type Identity struct {
	UserID string
	Role   domain.Role
}

// Tokens signs and verifies HS256 credentials with a process-wide secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens. A zero ttl issues credentials without expiry.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(userID string, role domain.Role) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of credential and returns the
// embedded identity. Every failure wraps domain.ErrUnauthenticated.
func (t *Tokens) Verify(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, fmt.Errorf("empty credential: %w", domain.ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("credential expired: %w", domain.ErrUnauthenticated)
		}
		return Identity{}, fmt.Errorf("parse credential: %v: %w", err, domain.ErrUnauthenticated)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, fmt.Errorf("invalid credential: %w", domain.ErrUnauthenticated)
	}
	if _, err := domain.ParseRole(string(claims.Role)); err != nil {
		return Identity{}, fmt.Errorf("credential role %q: %w", claims.Role, domain.ErrUnauthenticated)
	}

	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// Authorize allows the call only when actual equals required. Roles have no
// hierarchy.
func Authorize(actual, required domain.Role) error {
	if actual != required {
		return fmt.Errorf("role %s required: %w", required, domain.ErrForbidden)
	}
	return nil
}
