package http

import (
	"errors"
	"net/http"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/pkg/httpx"
	"github.com/mooncress/authcore/pkg/slogx"
)

type errorMapping struct {
	status      int
	description string
}

// Every caller-actionable failure the services produce, with its HTTP shape.
// Anything not listed is an infrastructure fault and must not leak detail.
var errorMappings = map[error]errorMapping{
	domain.ErrInvalidCredentials:    {http.StatusUnauthorized, "email or password is incorrect"},
	domain.ErrAccountLocked:         {http.StatusLocked, "account temporarily locked after repeated failures"},
	domain.ErrEmailUnverified:       {http.StatusForbidden, "email address has not been verified"},
	domain.ErrInvalidOrExpiredToken: {http.StatusUnauthorized, "token is invalid or expired"},
	domain.ErrSessionNotFound:       {http.StatusNotFound, "no such session for this account"},
	domain.ErrInvalidChallenge:      {http.StatusUnauthorized, "challenge is invalid or expired"},
	domain.ErrInvalidCode:           {http.StatusUnauthorized, "verification code is incorrect"},
	domain.ErrNoPendingEnrollment:   {http.StatusBadRequest, "no enrollment in progress"},
	domain.ErrTwoFactorEnabled:      {http.StatusConflict, "two-factor authentication is already enabled"},
	domain.ErrTwoFactorNotEnabled:   {http.StatusConflict, "two-factor authentication is not enabled"},
	domain.ErrEmailConflict:         {http.StatusConflict, "email already belongs to another account"},
	domain.ErrEmailTaken:            {http.StatusConflict, "email is already registered"},
	domain.ErrInvalidResetToken:     {http.StatusBadRequest, "reset token is invalid or expired"},
	domain.ErrDeliveryFailed:        {http.StatusBadGateway, "notification could not be delivered"},
}

// writeServiceError translates a service failure into the error envelope.
// Unmapped errors come out as a generic 503 so storage faults never read as
// authentication results.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for sentinel, m := range errorMappings {
		if errors.Is(err, sentinel) {
			httpx.WriteError(w, m.status, sentinel.Error(), m.description)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteError(w, http.StatusServiceUnavailable, domain.ErrUnavailable.Error(),
		"service temporarily unavailable")
}
