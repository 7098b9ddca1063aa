package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mooncress/authcore/internal/cache/rediscache"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/notify"
	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/internal/store/sqlite"
	"github.com/mooncress/authcore/pkg/cryptox"
	"github.com/mooncress/authcore/pkg/httpx"
	"github.com/mooncress/authcore/pkg/jwtx"
	"github.com/mooncress/authcore/pkg/slogx"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// capturingDispatcher records tokens that would be emailed.
type capturingDispatcher struct {
	verifications map[string]string
	resets        map[string]string
}

func (d *capturingDispatcher) VerificationNotice(_ context.Context, email, token string) error {
	d.verifications[email] = token
	return nil
}

func (d *capturingDispatcher) PasswordResetNotice(_ context.Context, email, token string) error {
	d.resets[email] = token
	return nil
}

func (d *capturingDispatcher) WelcomeNotice(context.Context, string, string) error { return nil }

var _ notify.Dispatcher = (*capturingDispatcher)(nil)

type testServer struct {
	Router     *Router
	Dispatcher *capturingDispatcher
	Redis      *miniredis.Miniredis

	nextIP int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "http_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	c := rediscache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner(key, "authcore-test")
	require.NoError(t, err)

	dispatcher := &capturingDispatcher{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
	emitter := event.NopEmitter{}

	creds := &service.CredentialService{
		Store:        st,
		Threshold:    service.DefaultLockoutThreshold,
		LockDuration: service.DefaultLockoutDuration,
		Events:       emitter,
	}
	twofactor := &service.TwoFactorService{
		Store:        st,
		Cache:        c,
		Signer:       signer,
		Events:       emitter,
		IssuerName:   "authcore-test",
		ChallengeTTL: jwtx.DefaultChallengeTTL,
		EnrollTTL:    service.DefaultEnrollmentTTL,
	}
	federation := &service.FederationService{Store: st, Events: emitter}
	tokens := &service.TokenService{
		Store:       st,
		Signer:      signer,
		Credentials: creds,
		TwoFactor:   twofactor,
		Federation:  federation,
		Events:      emitter,
		AccessTTL:   jwtx.DefaultAccessTTL,
		RefreshTTL:  service.DefaultRefreshTTL,
	}
	accounts := &service.AccountService{
		Store:      st,
		Dispatcher: dispatcher,
		Events:     emitter,
		BcryptCost: cryptox.MinCost,
		ResetTTL:   service.DefaultResetTTL,
	}

	logger := slogx.New(slogx.Config{Level: "error"})
	router := NewRouter(signer, "test", st, c, logger)
	router.TokenService = tokens
	router.AccountService = accounts
	router.TwoFactorService = twofactor
	router.ApplyRoutes()

	return &testServer{Router: router, Dispatcher: dispatcher, Redis: mr}
}

// do sends a JSON request through the router. Each call gets a distinct
// forwarded IP so the per-IP limiter never interferes with what a test is
// actually exercising.
func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	ts.nextIP++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", ts.nextIP%250+1))

	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	return rec
}

func decodeTestBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// registerAndVerify runs the registration flow and returns nothing; the
// account is ready to log in afterwards.
func (ts *testServer) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": password, "first_name": "Test", "last_name": "User",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	token, ok := ts.Dispatcher.verifications[email]
	require.True(t, ok)

	rec = ts.do(t, http.MethodPost, "/v1/auth/verify", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code)
}

func (ts *testServer) login(t *testing.T, email, password string) map[string]any {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeTestBody(t, rec)
}

func TestRegisterLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "alice@example.com", "Str0ng!Pass")
	body := ts.login(t, "alice@example.com", "Str0ng!Pass")

	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])
	require.Equal(t, float64(15*60), body["expires_in"])
}

func TestLoginBeforeVerification(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "pending@example.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "pending@example.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "email_unverified", decodeTestBody(t, rec)["error"])
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "bob@example.com", "Str0ng!Pass")

	rec := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown email reads identically.
	rec = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_credentials", decodeTestBody(t, rec)["error"])
}

func TestLockoutScenario(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "victim@example.com", "Str0ng!Pass")

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		rec := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "victim@example.com", "password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Correct password now answers 423.
	rec := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "victim@example.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, "account_locked", decodeTestBody(t, rec)["error"])
}

func TestRefreshAndLogout(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "carol@example.com", "Str0ng!Pass")
	body := ts.login(t, "carol@example.com", "Str0ng!Pass")
	refresh := body["refresh_token"].(string)

	rec := ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decodeTestBody(t, rec)
	require.NotEmpty(t, refreshed["access_token"])
	require.Equal(t, refresh, refreshed["refresh_token"])

	// Logout, twice; both 200.
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_or_expired_token", decodeTestBody(t, rec)["error"])
}

func TestRevokeSingleSession(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "erin@example.com", "Str0ng!Pass")
	first := ts.login(t, "erin@example.com", "Str0ng!Pass")
	second := ts.login(t, "erin@example.com", "Str0ng!Pass")
	access := first["access_token"].(string)

	rec := ts.do(t, http.MethodGet, "/v1/auth/sessions", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeTestBody(t, rec)["sessions"].([]any)
	require.Len(t, sessions, 2)

	// Newest first, so index 0 is the second login.
	newest := sessions[0].(map[string]any)["id"].(string)
	rec = ts.do(t, http.MethodDelete, "/v1/auth/sessions/"+newest, access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The revoked session's refresh is dead, the other still works.
	rec = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": second["refresh_token"].(string),
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": first["refresh_token"].(string),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Repeat deletion reads as gone.
	rec = ts.do(t, http.MethodDelete, "/v1/auth/sessions/"+newest, access, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "session_not_found", decodeTestBody(t, rec)["error"])
}

func TestRevokeSessionOwnedByAnotherAccount(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "frank@example.com", "Str0ng!Pass")
	ts.registerAndVerify(t, "mallory@example.com", "Str0ng!Pass")
	victim := ts.login(t, "frank@example.com", "Str0ng!Pass")
	attacker := ts.login(t, "mallory@example.com", "Str0ng!Pass")

	rec := ts.do(t, http.MethodGet, "/v1/auth/sessions", victim["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeTestBody(t, rec)["sessions"].([]any)
	require.Len(t, sessions, 1)
	target := sessions[0].(map[string]any)["id"].(string)

	rec = ts.do(t, http.MethodDelete, "/v1/auth/sessions/"+target, attacker["access_token"].(string), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The victim's session is untouched.
	rec = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": victim["refresh_token"].(string),
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsAndLogoutAll(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "dave@example.com", "Str0ng!Pass")
	first := ts.login(t, "dave@example.com", "Str0ng!Pass")
	second := ts.login(t, "dave@example.com", "Str0ng!Pass")
	access := first["access_token"].(string)

	rec := ts.do(t, http.MethodGet, "/v1/auth/sessions", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeTestBody(t, rec)["sessions"].([]any)
	require.Len(t, sessions, 2)

	rec = ts.do(t, http.MethodPost, "/v1/auth/logout_all", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []map[string]any{first, second} {
		rec = ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": body["refresh_token"].(string),
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestSessionsRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/auth/sessions", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/auth/sessions", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "eve@example.com", "Str0ng!Pass")
	body := ts.login(t, "eve@example.com", "Str0ng!Pass")
	access := body["access_token"].(string)

	// Enroll.
	rec := ts.do(t, http.MethodPost, "/v1/2fa/enroll", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	secret := decodeTestBody(t, rec)["secret"].(string)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/v1/2fa/confirm", access, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code)

	// Password alone now parks the login behind a challenge.
	challengeBody := ts.login(t, "eve@example.com", "Str0ng!Pass")
	require.Equal(t, true, challengeBody["two_factor_required"])
	challenge := challengeBody["challenge_token"].(string)
	require.NotEmpty(t, challenge)

	// Wrong code rejected, challenge still usable.
	rec = ts.do(t, http.MethodPost, "/v1/auth/2fa", "", map[string]string{
		"challenge_token": challenge, "code": "000000",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/v1/auth/2fa", "", map[string]string{
		"challenge_token": challenge, "code": code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeTestBody(t, rec)["access_token"])

	// An access token is not a challenge token.
	rec = ts.do(t, http.MethodPost, "/v1/auth/2fa", "", map[string]string{
		"challenge_token": access, "code": code,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_challenge", decodeTestBody(t, rec)["error"])
}

func TestFederatedAcceptsFullProviderPayloads(t *testing.T) {
	ts := newTestServer(t)

	// Real userinfo responses carry fields well beyond the mapped subset;
	// the endpoint must not reject them.
	google := map[string]any{
		"sub": "goog-full", "email": "full@example.com",
		"email_verified": true, "given_name": "Ada", "family_name": "Lovelace",
		"name": "Ada Lovelace", "picture": "https://lh3.example/photo.jpg",
		"locale": "en-GB", "hd": "example.com",
	}
	rec := ts.do(t, http.MethodPost, "/v1/auth/federated/google", "", google)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeTestBody(t, rec)["access_token"])

	github := map[string]any{
		"id": 54321, "login": "adal", "name": "Ada Lovelace",
		"email": "adal@example.com", "avatar_url": "https://avatars.example/u/54321",
		"html_url": "https://github.com/adal", "type": "User",
		"public_repos": 12, "followers": 99, "site_admin": false,
	}
	rec = ts.do(t, http.MethodPost, "/v1/auth/federated/github", "", github)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeTestBody(t, rec)["access_token"])
}

func TestFederatedGoogleLogin(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]any{
		"sub": "goog-123", "email": "grace@example.com",
		"given_name": "Grace", "family_name": "Hopper",
	}

	rec := ts.do(t, http.MethodPost, "/v1/auth/federated/google", "", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeTestBody(t, rec)
	require.NotEmpty(t, first["access_token"])

	// Idempotent re-login.
	rec = ts.do(t, http.MethodPost, "/v1/auth/federated/google", "", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	// Profile endpoint reflects the federated account.
	rec = ts.do(t, http.MethodGet, "/v1/accounts/me", first["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeTestBody(t, rec)
	require.Equal(t, "grace@example.com", me["email"])
	require.Equal(t, "google", me["provider"])
	require.Equal(t, true, me["verified"])
}

func TestFederatedGitHubFallbacks(t *testing.T) {
	ts := newTestServer(t)

	// No email, single display name.
	rec := ts.do(t, http.MethodPost, "/v1/auth/federated/github", "", map[string]any{
		"id": 4242, "login": "octocat", "name": "Mona Lisa Octocat",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := decodeTestBody(t, rec)["access_token"].(string)

	rec = ts.do(t, http.MethodGet, "/v1/accounts/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeTestBody(t, rec)
	require.Equal(t, "octocat@github.local", me["email"])
	require.Equal(t, "Mona", me["first_name"])
	require.Equal(t, "Lisa Octocat", me["last_name"])
}

func TestFederatedEmailConflict(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "taken@example.com", "Str0ng!Pass")

	rec := ts.do(t, http.MethodPost, "/v1/auth/federated/google", "", map[string]any{
		"sub": "goog-999", "email": "taken@example.com",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "email_conflict", decodeTestBody(t, rec)["error"])
}

func TestFederatedUnknownProvider(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/auth/federated/myspace", "", map[string]any{"sub": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordResetEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "frank@example.com", "Old!Pass123")

	rec := ts.do(t, http.MethodPost, "/v1/auth/password/forgot", "", map[string]string{
		"email": "frank@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token := ts.Dispatcher.resets["frank@example.com"]
	require.NotEmpty(t, token)

	rec = ts.do(t, http.MethodPost, "/v1/auth/password/reset", "", map[string]string{
		"token": token, "password": "New!Pass456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ts.login(t, "frank@example.com", "New!Pass456")

	// Unknown email answers 200 all the same.
	rec = ts.do(t, http.MethodPost, "/v1/auth/password/forgot", "", map[string]string{
		"email": "ghost@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeTestBody(t, rec)["status"])

	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A dead cache degrades readiness.
	ts.Redis.Close()
	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitOnLogin(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndVerify(t, "limited@example.com", "Str0ng!Pass")

	// Same IP hammering login gets cut off at the strict burst.
	var last int
	for i := 0; i <= httpx.StrictLimit.Burst; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			bytes.NewBufferString(`{"email":"limited@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "198.51.100.200")
		rec := httptest.NewRecorder()
		ts.Router.ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
