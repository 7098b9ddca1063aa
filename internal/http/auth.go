package http

import (
	"net/http"
	"strings"

	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/pkg/httpx"
)

// RegisterHandler serves POST /v1/auth/register. The new account starts
// unverified; a verification token goes out through the dispatcher and the
// raw token never appears in the response.
type RegisterHandler struct {
	AccountService *service.AccountService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"email and password are required")
		return
	}
	if len(req.Password) < 8 {
		httpx.WriteError(w, http.StatusBadRequest, "weak_password",
			"password must be at least 8 characters")
		return
	}

	account, err := h.AccountService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, newAccountResponse(account))
}

// VerifyEmailHandler serves POST /v1/auth/verify.
type VerifyEmailHandler struct {
	AccountService *service.AccountService
}

func (h *VerifyEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	if err := h.AccountService.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// LoginHandler serves POST /v1/auth/login. Accounts with a second factor
// get a challenge token back instead of a pair; the client finishes at
// /v1/auth/2fa.
type LoginHandler struct {
	TokenService *service.TokenService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"email and password are required")
		return
	}

	result, err := h.TokenService.PasswordGrant(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.TwoFactorRequired {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"two_factor_required": true,
			"challenge_token":     result.ChallengeToken,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(result.Tokens))
}

// TwoFactorLoginHandler serves POST /v1/auth/2fa, completing a login parked
// behind a challenge.
type TwoFactorLoginHandler struct {
	TokenService *service.TokenService
}

func (h *TwoFactorLoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengeToken string `json:"challenge_token"`
		Code           string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"challenge_token and code are required")
		return
	}

	pair, err := h.TokenService.TwoFactorGrant(r.Context(), req.ChallengeToken, req.Code, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// ForgotPasswordHandler serves POST /v1/auth/password/forgot. It always
// returns 200 so the endpoint cannot confirm which emails exist.
type ForgotPasswordHandler struct {
	AccountService *service.AccountService
}

func (h *ForgotPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.AccountService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetPasswordHandler serves POST /v1/auth/password/reset.
type ResetPasswordHandler struct {
	AccountService *service.AccountService
}

func (h *ResetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"token and password are required")
		return
	}
	if len(req.Password) < 8 {
		httpx.WriteError(w, http.StatusBadRequest, "weak_password",
			"password must be at least 8 characters")
		return
	}

	if err := h.AccountService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
