package http

import (
	"net/http"

	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/pkg/httpx"
)

// TwoFactorEnrollHandler serves POST /v1/2fa/enroll. The response carries
// the raw secret and a provisioning URI for the authenticator app; the
// secret is pending until confirmed and evaporates after its TTL.
type TwoFactorEnrollHandler struct {
	TwoFactorService *service.TwoFactorService
}

func (h *TwoFactorEnrollHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	// The body is optional: label overrides the email shown in the
	// authenticator app.
	var req struct {
		Label string `json:"label"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	enrollment, err := h.TwoFactorService.BeginEnrollment(r.Context(), accountID, req.Label)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"secret":           enrollment.Secret,
		"provisioning_uri": enrollment.ProvisioningURI,
	})
}

// TwoFactorConfirmHandler serves POST /v1/2fa/confirm.
type TwoFactorConfirmHandler struct {
	TwoFactorService *service.TwoFactorService
}

func (h *TwoFactorConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.TwoFactorService.ConfirmEnrollment(r.Context(), accountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// TwoFactorDisableHandler serves POST /v1/2fa/disable. A current code is
// required; holding a valid access token alone is not enough to weaken the
// account.
type TwoFactorDisableHandler struct {
	TwoFactorService *service.TwoFactorService
}

func (h *TwoFactorDisableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.TwoFactorService.Disable(r.Context(), accountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
