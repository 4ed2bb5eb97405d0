// Package auth issues and verifies the HS256 tokens that carry caller
// identity. The booking core trusts the Identity it is handed.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// Claims is the token payload.
type Claims struct {
	Sub   string `json:"sub"`
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   model.Role
	Email  string
}

// Privileged reports whether the caller may act on other users' bookings.
func (i Identity) Privileged() bool {
	return i.Role == model.RoleAdmin || i.Role == model.RoleSiteManager
}

// Issuer signs and parses tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Sign creates an access token for id valid for ttl.
func (is *Issuer) Sign(id Identity, ttl time.Duration) (string, error) {
	now := is.now()
	claims := Claims{
		Sub:   id.UserID,
		Role:  string(id.Role),
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(is.secret)
}

// Parse validates a token and returns its identity.
func (is *Issuer) Parse(tokenStr string) (Identity, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return is.secret, nil
	}, jwt.WithTimeFunc(is.now))
	if err != nil {
		return Identity{}, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if c.Sub == "" {
		return Identity{}, errors.New("token has no subject")
	}
	role := model.Role(c.Role)
	if role == "" {
		role = model.RoleUser
	}
	return Identity{UserID: c.Sub, Role: role, Email: c.Email}, nil
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
