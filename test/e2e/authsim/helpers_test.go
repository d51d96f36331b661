package authsim_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devharness/authsim/internal/authsim/domain"
	httpapi "github.com/devharness/authsim/internal/authsim/http"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/internal/authsim/store/drivers/sqlite"
	"github.com/devharness/authsim/pkg/cryptox"
	"github.com/devharness/authsim/pkg/idx"
	"github.com/devharness/authsim/pkg/jwtx"
)

/*
 * End-to-end tests exercising the full stack: HTTP routing, services, and
 * the SQLite store, against a real in-process server.
 */

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Admin123!secret"
	userEmail     = "user@example.com"
	userPassword  = "User123!secret"
)

// setupServer boots a complete simulator on an httptest server backed by a
// throwaway SQLite file.
func setupServer(t *testing.T) (baseURL string) {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "e2e.db")
	st, err := sqlite.NewStore("file:" + dbFile + "?_busy_timeout=5000&_journal_mode=WAL")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewCodec([]byte("e2e-secret-0123456789abcdef012345"), "authsim-e2e")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	lockout := &service.LockoutService{
		Lockouts:    st.Lockouts(),
		MaxAttempts: 5,
		LockFor:     15 * time.Minute,
		Enabled:     true,
	}
	mfa := &service.MFAService{
		Users:       st.Users(),
		BackupCodes: st.BackupCodes(),
		Issuer:      "authsim-e2e",
	}
	sessions := &service.SessionService{
		Sessions: st.Sessions(),
		TTL:      7 * 24 * time.Hour,
	}
	auth := &service.AuthService{
		Users:      st.Users(),
		Codec:      codec,
		Lockout:    lockout,
		MFA:        mfa,
		Sessions:   sessions,
		Audit:      service.NewAuditDispatcher(service.NoOpSink{}, 64),
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	router := httpapi.NewRouter("e2e", st, logger)
	router.AuthService = auth
	router.MFAService = mfa
	router.LockoutService = lockout
	router.SessionService = sessions
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	seedUser(t, st, adminEmail, adminPassword, "admin")
	seedUser(t, st, userEmail, userPassword, "user")

	return srv.URL
}

func seedUser(t *testing.T, st *sqlite.Store, email, password string, roles ...string) {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, st.Users().CreateUser(context.Background(), domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

// postJSON sends a JSON POST and decodes the response into out when it is
// non-nil, returning the status code.
func postJSON(t *testing.T, url, bearer string, body, out any) int {
	t.Helper()
	return doRequest(t, http.MethodPost, url, bearer, body, out)
}

func getJSON(t *testing.T, url, bearer string, out any) int {
	t.Helper()
	return doRequest(t, http.MethodGet, url, bearer, nil, out)
}

func doRequest(t *testing.T, method, url, bearer string, body, out any) int {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type tokenResponse struct {
	User struct {
		ID         string   `json:"id"`
		Email      string   `json:"email"`
		Roles      []string `json:"roles"`
		MFAEnabled bool     `json:"mfa_enabled"`
	} `json:"user"`
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func login(t *testing.T, baseURL, email, password, otp string) (tokenResponse, int) {
	t.Helper()

	var tok tokenResponse
	code := postJSON(t, baseURL+"/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
		"otp":      otp,
	}, &tok)
	return tok, code
}
