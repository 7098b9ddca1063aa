package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mooncress/authcore/internal/cache"
	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/httpx"
	"github.com/mooncress/authcore/pkg/jwtx"
	"github.com/mooncress/authcore/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.Signer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.Cache

	TokenService     *service.TokenService
	AccountService   *service.AccountService
	TwoFactorService *service.TwoFactorService
}

func NewRouter(
	signer *jwtx.Signer,
	buildVersion string,
	st store.Store,
	c cache.Cache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        c,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerTwoFactor()
	r.registerAccounts()
	r.registerSystem()
}

func (r *Router) registerAuth() {
	// Registration and credential endpoints take the strict limit: they
	// are the brute-force and enumeration surface.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify",
		httpx.Chain(&VerifyEmailHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa",
		httpx.Chain(&TwoFactorLoginHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/federated/{provider}",
		httpx.Chain(&FederatedLoginHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(&ForgotPasswordHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(&ResetPasswordHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout_all",
		httpx.Chain(&LogoutAllHandler{TokenService: r.TokenService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(&SessionsHandler{TokenService: r.TokenService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/sessions/{id}",
		httpx.Chain(&RevokeSessionHandler{TokenService: r.TokenService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	r.Mux.Handle("POST /v1/2fa/enroll",
		httpx.Chain(&TwoFactorEnrollHandler{TwoFactorService: r.TwoFactorService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/2fa/confirm",
		httpx.Chain(&TwoFactorConfirmHandler{TwoFactorService: r.TwoFactorService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/2fa/disable",
		httpx.Chain(&TwoFactorDisableHandler{TwoFactorService: r.TwoFactorService},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	r.Mux.Handle("GET /v1/accounts/me",
		httpx.Chain(&MeHandler{Store: r.store},
			httpx.AuthnMiddleware(r.signer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache))
}
