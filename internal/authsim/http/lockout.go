package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/pkg/httpx"
	"github.com/devharness/authsim/pkg/slogx"
)

// UnlockHandler serves POST /v1/lockout/unlock. Clearing another account's
// lockout is an administrative action and requires the admin role.
type UnlockHandler struct {
	AuthService    *service.AuthService
	LockoutService *service.LockoutService
}

type unlockRequest struct {
	Identifier string `json:"identifier"`
}

type unlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

func (h *UnlockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	v, ok := authenticate(w, r, h.AuthService)
	if !ok {
		return
	}
	if !slices.Contains(v.User.Roles, "admin") {
		httpx.WriteError(w, http.StatusForbidden, "forbidden",
			"the admin role is required")
		return
	}

	var req unlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"identifier is required")
		return
	}

	existed, err := h.AuthService.Unlock(ctx, req.Identifier, v.User.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("lockout cleared", "identifier", req.Identifier, "actor", v.User.ID, "existed", existed)
	httpx.WriteJSON(w, http.StatusOK, unlockResponse{Unlocked: existed})
}
