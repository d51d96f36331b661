package http

import (
	"net"
	"net/http"
	"strings"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/pkg/httpx"
	"github.com/devharness/authsim/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	AuthService *service.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
	Device   string `json:"device,omitempty"`
}

type loginResponse struct {
	User         domain.PublicUser `json:"user"`
	SessionID    string            `json:"session_id"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	TokenType    string            `json:"token_type"`
	ExpiresIn    int64             `json:"expires_in"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"email and password are required")
		return
	}

	res, err := h.AuthService.Login(ctx, service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		OTP:      req.OTP,
		Meta: service.SessionMeta{
			Device:    req.Device,
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		},
	})
	if err != nil {
		log.Info("login rejected", "email", req.Email, "err", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:         res.User,
		SessionID:    res.Session.ID,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
	})
}

// clientIP prefers proxy headers over the socket address, matching the
// rate limiter's notion of the caller.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
