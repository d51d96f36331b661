package http

import (
	"net/http"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/pkg/httpx"
)

// VerifyHandler serves GET /v1/auth/verify.
type VerifyHandler struct {
	AuthService *service.AuthService
}

type verifyResponse struct {
	Valid     bool              `json:"valid"`
	User      domain.PublicUser `json:"user"`
	SessionID string            `json:"session_id"`
	ExpiresIn int64             `json:"expires_in"`
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v, ok := authenticate(w, r, h.AuthService)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyResponse{
		Valid:     true,
		User:      v.User,
		SessionID: v.SessionID,
		ExpiresIn: v.ExpiresIn,
	})
}
