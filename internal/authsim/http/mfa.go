package http

import (
	"net/http"

	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/pkg/httpx"
	"github.com/devharness/authsim/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints. Every endpoint requires a
// valid bearer access token; the target user is always the caller.
type MFAHandler struct {
	AuthService *service.AuthService
	MFAService  *service.MFAService
}

type mfaEnrollResponse struct {
	Secret  string `json:"secret"`
	QRCode  string `json:"qr_code"`
	URL     string `json:"url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

type mfaActivateResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// HandleEnroll handles POST /v1/mfa/enroll.
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	v, ok := authenticate(w, r, h.AuthService)
	if !ok {
		return
	}

	enrollment, err := h.MFAService.Enroll(ctx, v.User.ID)
	if err != nil {
		log.Warn("mfa enrollment failed", "user_id", v.User.ID, "err", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfaEnrollResponse{
		Secret:  enrollment.Secret,
		QRCode:  enrollment.QRCode,
		URL:     enrollment.URL,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleActivate handles POST /v1/mfa/activate. The backup codes in the
// response are shown exactly once.
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, ok := authenticate(w, r, h.AuthService)
	if !ok {
		return
	}

	var req mfaCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	codes, err := h.MFAService.Activate(ctx, v.User.ID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfaActivateResponse{BackupCodes: codes})
}

// HandleDisable handles POST /v1/mfa/disable.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, ok := authenticate(w, r, h.AuthService)
	if !ok {
		return
	}

	var req mfaCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.MFAService.Disable(ctx, v.User.ID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "mfa_disabled"})
}
