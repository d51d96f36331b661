package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/pkg/httpx"
	"github.com/devharness/authsim/pkg/slogx"
)

// writeServiceError maps service-layer failures onto HTTP statuses. Lockouts
// get 423 with a Retry-After so clients know when to come back; everything
// credential-shaped collapses to 401.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *service.AccountLockedError
	switch {
	case errors.As(err, &locked):
		retry := time.Until(locked.Until)
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		}
		httpx.WriteError(w, http.StatusLocked, "account_locked",
			"account is temporarily locked, retry later")

	case errors.Is(err, service.ErrMFARequired):
		httpx.WriteError(w, http.StatusUnauthorized, "mfa_required",
			"an MFA code is required to complete this login")

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidMFACode):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
			"invalid email, password, or MFA code")

	case errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrInvalidRefreshToken):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
			"the supplied token is invalid")

	case errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, service.ErrSessionNotFound):
		httpx.WriteError(w, http.StatusUnauthorized, "session_expired",
			"the session has expired or been revoked")

	case errors.Is(err, service.ErrMFAAlreadyActive):
		httpx.WriteError(w, http.StatusConflict, "mfa_already_active",
			"MFA is already active for this user")

	case errors.Is(err, service.ErrMFANotEnrolled):
		httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enrolled",
			"MFA enrollment has not been completed")

	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found")

	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"an internal error occurred")
	}
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields.
// On failure it writes the 400 itself and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"request body must be valid JSON")
		return false
	}
	return true
}

// bearerToken extracts the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// authenticate verifies the bearer token on the request. On failure it
// writes the 401 itself and reports false.
func authenticate(w http.ResponseWriter, r *http.Request, auth *service.AuthService) (service.VerifyResult, bool) {
	token := bearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
			"a bearer access token is required")
		return service.VerifyResult{}, false
	}
	v, err := auth.Verify(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return service.VerifyResult{}, false
	}
	return v, true
}
