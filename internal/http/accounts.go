package http

import (
	"net/http"

	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/httpx"
)

// MeHandler serves GET /v1/accounts/me for the authenticated account.
type MeHandler struct {
	Store store.Store
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	account, err := h.Store.Accounts().FindByID(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newAccountResponse(account))
}
