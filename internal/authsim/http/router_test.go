package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/internal/authsim/store/drivers/memory"
	"github.com/devharness/authsim/pkg/cryptox"
	"github.com/devharness/authsim/pkg/httpx"
	"github.com/devharness/authsim/pkg/idx"
	"github.com/devharness/authsim/pkg/jwtx"
)

func buildRouter(t *testing.T, st *memory.Store, now *time.Time) *Router {
	t.Helper()

	clock := func() time.Time { return *now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "authsim-test")
	require.NoError(t, err)
	codec.Now = clock

	lockout := &service.LockoutService{
		Lockouts:    st.Lockouts(),
		MaxAttempts: 3,
		LockFor:     15 * time.Minute,
		Enabled:     true,
		Now:         clock,
	}
	mfa := &service.MFAService{
		Users:       st.Users(),
		BackupCodes: st.BackupCodes(),
		Issuer:      "authsim-test",
		Now:         clock,
	}
	sessions := &service.SessionService{
		Sessions: st.Sessions(),
		TTL:      7 * 24 * time.Hour,
		Now:      clock,
	}
	auth := &service.AuthService{
		Users:      st.Users(),
		Codec:      codec,
		Lockout:    lockout,
		MFA:        mfa,
		Sessions:   sessions,
		Audit:      service.NewAuditDispatcher(service.NoOpSink{}, 16),
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock,
	}

	r := NewRouter("test", st, logger)
	r.AuthService = auth
	r.MFAService = mfa
	r.LockoutService = lockout
	r.SessionService = sessions
	r.ApplyRoutes()
	return r
}

func createUser(t *testing.T, st *memory.Store, email, password string, roles ...string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.10:51000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "alice@example.com", "correct-pass1", "user")

	t.Run("success returns tokens", func(t *testing.T) {
		rec := doJSON(t, router, "POST", "/v1/auth/login", "",
			loginRequest{Email: "alice@example.com", Password: "correct-pass1", Device: "cli"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		body := decodeBody[loginResponse](t, rec)
		require.NotEmpty(t, body.AccessToken)
		require.NotEmpty(t, body.RefreshToken)
		require.Equal(t, "Bearer", body.TokenType)
		require.Equal(t, "alice@example.com", body.User.Email)
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rec := doJSON(t, router, "POST", "/v1/auth/login", "",
			loginRequest{Email: "alice@example.com", Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decodeBody[httpx.ErrorBody](t, rec)
		require.Equal(t, "invalid_credentials", body.Error)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		rec := doJSON(t, router, "POST", "/v1/auth/login", "",
			loginRequest{Email: "alice@example.com"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json is 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/auth/login", bytes.NewReader([]byte("{not json")))
		req.RemoteAddr = "203.0.113.10:51000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginLockoutEndpoint(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "bob@example.com", "right-pass-1")

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, "POST", "/v1/auth/login", "",
			loginRequest{Email: "bob@example.com", Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "bob@example.com", Password: "wrong"})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Locked even with the right password.
	rec = doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "bob@example.com", Password: "right-pass-1"})
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "carol@example.com", "refresh-pass")

	rec := doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "carol@example.com", Password: "refresh-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[loginResponse](t, rec)

	rec = doJSON(t, router, "POST", "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decodeBody[loginResponse](t, rec)
	require.Equal(t, login.SessionID, refreshed.SessionID)

	rec = doJSON(t, router, "GET", "/v1/auth/verify", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verify := decodeBody[verifyResponse](t, rec)
	require.True(t, verify.Valid)
	require.Equal(t, login.SessionID, verify.SessionID)

	rec = doJSON(t, router, "POST", "/v1/auth/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The whole session is dead after logout.
	rec = doJSON(t, router, "GET", "/v1/auth/verify", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, "POST", "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout twice is fine.
	rec = doJSON(t, router, "POST", "/v1/auth/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyEndpointRejectsBadTokens(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)

	rec := doJSON(t, router, "GET", "/v1/auth/verify", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, "GET", "/v1/auth/verify", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[httpx.ErrorBody](t, rec)
	require.Equal(t, "invalid_token", body.Error)
}

func TestMFAEndpoints(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "dora@example.com", "mfa-pass-123")

	rec := doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "dora@example.com", Password: "mfa-pass-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[loginResponse](t, rec)

	// Enroll requires auth.
	rec = doJSON(t, router, "POST", "/v1/mfa/enroll", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, "POST", "/v1/mfa/enroll", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	enrollment := decodeBody[mfaEnrollResponse](t, rec)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.QRCode, "data:image/png;base64,")

	// Activation with a wrong code fails.
	rec = doJSON(t, router, "POST", "/v1/mfa/activate", login.AccessToken,
		mfaCodeRequest{Code: "000000"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)
	rec = doJSON(t, router, "POST", "/v1/mfa/activate", login.AccessToken,
		mfaCodeRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	activated := decodeBody[mfaActivateResponse](t, rec)
	require.Len(t, activated.BackupCodes, service.BackupCodeCount)

	// Password alone no longer logs in.
	rec = doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "dora@example.com", Password: "mfa-pass-123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[httpx.ErrorBody](t, rec)
	require.Equal(t, "mfa_required", body.Error)

	// Password plus a backup code does.
	rec = doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "dora@example.com", Password: "mfa-pass-123", OTP: activated.BackupCodes[0]})
	require.Equal(t, http.StatusOK, rec.Code)

	// Disable with a TOTP code.
	code, err = totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)
	rec = doJSON(t, router, "POST", "/v1/mfa/disable", login.AccessToken,
		mfaCodeRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "dora@example.com", Password: "mfa-pass-123"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnlockEndpoint(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "admin@example.com", "admin-pass-1", "admin")
	createUser(t, st, "victim@example.com", "victim-pass1")

	for i := 0; i < 3; i++ {
		doJSON(t, router, "POST", "/v1/auth/login", "",
			loginRequest{Email: "victim@example.com", Password: "wrong"})
	}
	rec := doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "victim@example.com", Password: "victim-pass1"})
	require.Equal(t, http.StatusLocked, rec.Code)

	adminLogin := decodeBody[loginResponse](t, doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "admin@example.com", Password: "admin-pass-1"}))

	// A non-admin cannot unlock.
	createUser(t, st, "plain@example.com", "plain-pass-1")
	plainLogin := decodeBody[loginResponse](t, doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "plain@example.com", Password: "plain-pass-1"}))
	rec = doJSON(t, router, "POST", "/v1/lockout/unlock", plainLogin.AccessToken,
		unlockRequest{Identifier: "victim@example.com"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, "POST", "/v1/lockout/unlock", adminLogin.AccessToken,
		unlockRequest{Identifier: "victim@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeBody[unlockResponse](t, rec).Unlocked)

	rec = doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "victim@example.com", Password: "victim-pass1"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := memory.NewStore()
	router := buildRouter(t, st, &now)
	createUser(t, st, "eve@example.com", "stats-pass-1")

	rec := doJSON(t, router, "GET", "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody[healthResponse](t, rec).Status)

	rec = doJSON(t, router, "GET", "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "eve@example.com", Password: "stats-pass-1"})
	doJSON(t, router, "POST", "/v1/auth/login", "",
		loginRequest{Email: "eve@example.com", Password: "wrong"})

	rec = doJSON(t, router, "GET", "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[statsResponse](t, rec)
	require.Equal(t, 1, stats.Sessions.Active)
	require.Equal(t, 1, stats.Lockouts.TotalAttempts)
}
