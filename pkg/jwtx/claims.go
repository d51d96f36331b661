// Package jwtx is the token codec for the simulator: it builds, signs, and
// verifies the compact HS256 JWTs used as access and refresh tokens. Both
// token kinds carry the owning session id so the service layer can check
// session liveness on every use.
package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim. A refresh token presented where
// an access token is expected (or vice versa) is rejected outright.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the signed payload of both token kinds. Additive changes only,
// so older clients keep decoding.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session this token is bound to.
	SID string `json:"sid,omitempty"`

	// Kind distinguishes access from refresh tokens.
	Kind string `json:"kind,omitempty"`

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// Roles granted to the user, e.g. ["admin", "user"].
	Roles []string `json:"roles,omitempty"`

	// Permissions granted to the user, e.g. ["sessions:list"].
	Permissions []string `json:"permissions,omitempty"`
}

// NewAccessClaims builds claims for a short-lived access token.
func NewAccessClaims(
	subject, email string,
	roles, permissions []string,
	sid, issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return newClaims(KindAccess, subject, email, roles, permissions, sid, issuer, ttl, now)
}

// NewRefreshClaims builds claims for a long-lived refresh token. Roles and
// permissions are deliberately omitted; a refresh token only proves session
// ownership.
func NewRefreshClaims(subject, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(KindRefresh, subject, "", nil, nil, sid, issuer, ttl, now)
}

func newClaims(
	kind, subject, email string,
	roles, permissions []string,
	sid, issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		SID:         sid,
		Kind:        kind,
		Email:       email,
		Roles:       roles,
		Permissions: permissions,
	}
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
