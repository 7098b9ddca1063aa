package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/pkg/httpx"
)

// FederatedLoginHandler serves POST /v1/auth/federated/{provider}. The
// OAuth handshake itself happens upstream; this endpoint receives the
// provider's verified user-info payload and resolves it to a local session.
type FederatedLoginHandler struct {
	TokenService *service.TokenService
}

func (h *FederatedLoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	var profile domain.FederatedProfile
	var ok bool
	switch provider {
	case domain.ProviderGoogle:
		profile, ok = decodeGoogleProfile(w, r)
	case domain.ProviderGitHub:
		profile, ok = decodeGitHubProfile(w, r)
	default:
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider",
			"unsupported federation provider")
		return
	}
	if !ok {
		return
	}

	pair, err := h.TokenService.FederatedGrant(r.Context(), profile, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// decodeGoogleProfile maps Google's OpenID Connect userinfo shape. Google
// always sends structured names and a verified email.
func decodeGoogleProfile(w http.ResponseWriter, r *http.Request) (domain.FederatedProfile, bool) {
	var req struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Name       string `json:"name"`
	}
	if !decodeJSONLenient(w, r, &req) {
		return domain.FederatedProfile{}, false
	}
	if req.Sub == "" || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"sub and email are required")
		return domain.FederatedProfile{}, false
	}

	first, last := req.GivenName, req.FamilyName
	if first == "" && last == "" {
		first, last = splitDisplayName(req.Name, req.Sub)
	}

	return domain.FederatedProfile{
		Provider:  domain.ProviderGoogle,
		SubjectID: req.Sub,
		Email:     req.Email,
		FirstName: first,
		LastName:  last,
	}, true
}

// decodeGitHubProfile maps GitHub's user payload. GitHub may withhold the
// email and sends a single display name, so both need fallbacks: the email
// falls back to a synthetic address off the login handle, the name splits
// on whitespace.
func decodeGitHubProfile(w http.ResponseWriter, r *http.Request) (domain.FederatedProfile, bool) {
	var req struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeJSONLenient(w, r, &req) {
		return domain.FederatedProfile{}, false
	}
	if req.ID == 0 || req.Login == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"id and login are required")
		return domain.FederatedProfile{}, false
	}

	email := req.Email
	if email == "" {
		email = req.Login + "@github.local"
	}
	first, last := splitDisplayName(req.Name, req.Login)

	return domain.FederatedProfile{
		Provider:  domain.ProviderGitHub,
		SubjectID: strconv.FormatInt(req.ID, 10),
		Email:     email,
		FirstName: first,
		LastName:  last,
	}, true
}

// splitDisplayName breaks an unstructured display name into first/last on
// the first whitespace run. An empty display name falls back to the
// provider handle.
func splitDisplayName(name, handle string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return handle, ""
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
