package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the minimum accepted HMAC secret length in bytes. A
// shorter secret is a misconfiguration, not something to limp along with.
const MinSecretLen = 32

var (
	ErrSecretTooShort = errors.New("jwtx: signing secret shorter than 32 bytes")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrKind        = errors.New("jwtx: wrong token kind")
)

// Signer mints signed tokens from claims.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier checks a compact token and returns its claims if it is legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// Codec signs and verifies HS256 tokens with a single shared secret. It is
// safe for concurrent use once wired. Verification is pure computation;
// there is no I/O on the hot path.
type Codec struct {
	key    []byte
	issuer string

	// Now is the clock used for exp/nbf checks, overridable in tests.
	// Defaults to time.Now.
	Now func() time.Time
}

var (
	_ Signer   = (*Codec)(nil)
	_ Verifier = (*Codec)(nil)
)

// NewCodec builds a Codec from the shared secret. It fails when the secret
// is shorter than MinSecretLen; callers treat that as fatal at startup.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{key: key, issuer: issuer}, nil
}

// Issuer returns the issuer baked into signed claims.
func (c *Codec) Issuer() string {
	return c.issuer
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Sign produces the compact serialized form of claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact token. Attacker-supplied garbage
// never panics; every failure maps onto one of the package sentinel errors.
func (c *Codec) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, mapParseError(parsed, err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrIssuer
	}
	return claims, nil
}

// VerifyKind is Verify plus a check that the token is of the expected kind.
func (c *Codec) VerifyKind(token, kind string) (Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Kind != kind {
		return Claims{}, ErrKind
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrAlgMismatch
	}
	return c.key, nil
}

// mapParseError folds jwt/v5's error chains onto the package sentinels.
// A disallowed signing method surfaces as ErrTokenSignatureInvalid with the
// offending method on the partially parsed token, so that case is told
// apart from a genuine bad signature by inspecting the method.
func mapParseError(t *jwt.Token, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if t != nil && t.Method != nil && t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return ErrAlgMismatch
		}
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	default:
		return ErrMalformed
	}
}

// RemainingValidity returns how long the claims stay valid from now,
// clamped at zero. Handy for expires_in style responses.
func RemainingValidity(c Claims, now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
