package http

import (
	"net/http"

	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/pkg/httpx"
	"github.com/mooncress/authcore/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh. The refresh value comes back
// unchanged in the response; only a new access token is minted.
type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.TokenService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// LogoutHandler serves POST /v1/auth/logout. Revocation is idempotent, so
// unknown or already-revoked tokens still come back 200; anything else
// would let a caller scan for live tokens.
type LogoutHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.TokenService.Revoke(r.Context(), req.RefreshToken); err != nil {
		slogx.FromContext(r.Context()).Warn("revoke failed", "err", err)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogoutAllHandler serves POST /v1/auth/logout_all for the authenticated
// account.
type LogoutAllHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	if err := h.TokenService.RevokeAll(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SessionsHandler serves GET /v1/auth/sessions, listing the caller's live
// sessions newest first.
type SessionsHandler struct {
	TokenService *service.TokenService
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	sessions, err := h.TokenService.Sessions(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": newSessionResponses(sessions),
	})
}

// RevokeSessionHandler serves DELETE /v1/auth/sessions/{id}, killing one of
// the caller's sessions by the id returned from the listing. Unknown or
// foreign ids come back 404.
type RevokeSessionHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}

	if err := h.TokenService.RevokeSession(r.Context(), accountID, sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
