package http

import (
	"net/http"

	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/pkg/httpx"
)

// LogoutHandler serves POST /v1/auth/logout. Logout is idempotent: an
// invalid or already-revoked token still gets a 200.
type LogoutHandler struct {
	AuthService *service.AuthService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
			"a bearer access token is required")
		return
	}

	if err := h.AuthService.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
