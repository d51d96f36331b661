package jwtx

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "authsim-test")
	require.NoError(t, err)
	return c
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec([]byte("too-short"), "authsim-test")
	require.ErrorIs(t, err, ErrSecretTooShort)

	_, err = NewCodec(nil, "authsim-test")
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	now := time.Now()

	claims := NewAccessClaims(
		"user-1", "user@example.com",
		[]string{"admin"}, []string{"sessions:list"},
		"sess-1", "authsim-test",
		time.Hour, now,
	)

	token, err := codec.Sign(claims)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	got, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "user@example.com", got.Email)
	require.Equal(t, []string{"admin"}, got.Roles)
	require.Equal(t, []string{"sessions:list"}, got.Permissions)
	require.Equal(t, "sess-1", got.SID)
	require.Equal(t, KindAccess, got.Kind)
	require.NotEmpty(t, got.ID, "jti must be set")
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	issued := time.Now().Add(-2 * time.Hour)

	token, err := codec.Sign(NewAccessClaims(
		"user-1", "", nil, nil, "sess-1", "authsim-test", time.Hour, issued))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyHonorsInjectedClock(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	issued := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	codec.Now = func() time.Time { return issued }

	token, err := codec.Sign(NewAccessClaims(
		"user-1", "", nil, nil, "sess-1", "authsim-test", time.Hour, issued))
	require.NoError(t, err)

	// Valid at issue time and right up to the expiry boundary, no matter
	// what the wall clock says.
	_, err = codec.Verify(token)
	require.NoError(t, err)

	codec.Now = func() time.Time { return issued.Add(time.Hour - time.Second) }
	_, err = codec.Verify(token)
	require.NoError(t, err)

	codec.Now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	token, err := codec.Sign(NewAccessClaims(
		"user-1", "", nil, nil, "sess-1", "authsim-test", time.Hour, time.Now()))
	require.NoError(t, err)

	t.Run("modified payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		payload := []byte(`{"sub":"someone-else","kind":"access","exp":9999999999}`)
		parts[1] = base64.RawURLEncoding.EncodeToString(payload)
		_, err := codec.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, ErrInvalidSig)
	})

	t.Run("truncated token", func(t *testing.T) {
		// Cutting into the signature leaves base64 that no longer decodes,
		// so this reads as malformed rather than a failed comparison.
		_, err := codec.Verify(token[:len(token)-10])
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "authsim-test")
		require.NoError(t, err)
		_, err = other.Verify(token)
		require.ErrorIs(t, err, ErrInvalidSig)
	})
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	for _, input := range []string{
		"",
		"garbage",
		"a.b",
		"a.b.c",
		strings.Repeat(".", 50),
		"\x00\x01\x02",
	} {
		_, err := codec.Verify(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestVerifyRejectsAlgConfusion(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)

	// alg=none with a valid-looking payload must not be accepted.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user-1","kind":"access","exp":9999999999}`))
	_, err := codec.Verify(header + "." + payload + ".")
	require.Error(t, err)

	// Same story for an HS384-signed token.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	_, err = codec.Verify(signed)
	require.ErrorIs(t, err, ErrAlgMismatch)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	other, err := NewCodec(testSecret, "different-issuer")
	require.NoError(t, err)

	token, err := other.Sign(NewAccessClaims(
		"user-1", "", nil, nil, "sess-1", "different-issuer", time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyKind(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	now := time.Now()

	access, err := codec.Sign(NewAccessClaims("user-1", "", nil, nil, "sess-1", "authsim-test", time.Hour, now))
	require.NoError(t, err)
	refresh, err := codec.Sign(NewRefreshClaims("user-1", "sess-1", "authsim-test", time.Hour, now))
	require.NoError(t, err)

	_, err = codec.VerifyKind(access, KindAccess)
	require.NoError(t, err)
	_, err = codec.VerifyKind(refresh, KindRefresh)
	require.NoError(t, err)

	_, err = codec.VerifyKind(access, KindRefresh)
	require.ErrorIs(t, err, ErrKind)
	_, err = codec.VerifyKind(refresh, KindAccess)
	require.ErrorIs(t, err, ErrKind)
}

func TestRemainingValidity(t *testing.T) {
	t.Parallel()

	// exp is stored at whole-second precision, so compare from a
	// truncated instant.
	now := time.Now().Truncate(time.Second)
	claims := NewAccessClaims("u", "", nil, nil, "s", "i", time.Hour, now)

	require.Equal(t, time.Hour, RemainingValidity(claims, now))
	require.Equal(t, time.Duration(0), RemainingValidity(claims, now.Add(2*time.Hour)))
	require.Equal(t, time.Duration(0), RemainingValidity(Claims{}, now))
}
