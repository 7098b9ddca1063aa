package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/mooncress/authcore/internal/cache"
	"github.com/mooncress/authcore/internal/cache/rediscache"
	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/internal/store/sqlite"
	"github.com/mooncress/authcore/pkg/cryptox"
	"github.com/mooncress/authcore/pkg/idx"
	"github.com/mooncress/authcore/pkg/jwtx"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher captures dispatched notices instead of sending them.
type recordingDispatcher struct {
	verifications map[string]string // email -> token
	resets        map[string]string
	welcomes      []string
	fail          bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
}

func (d *recordingDispatcher) VerificationNotice(_ context.Context, email, token string) error {
	if d.fail {
		return context.DeadlineExceeded
	}
	d.verifications[email] = token
	return nil
}

func (d *recordingDispatcher) PasswordResetNotice(_ context.Context, email, token string) error {
	if d.fail {
		return context.DeadlineExceeded
	}
	d.resets[email] = token
	return nil
}

func (d *recordingDispatcher) WelcomeNotice(_ context.Context, email, _ string) error {
	d.welcomes = append(d.welcomes, email)
	return nil
}

type testEnv struct {
	Store      store.Store
	Cache      cache.Cache
	Redis      *miniredis.Miniredis
	Signer     *jwtx.Signer
	Dispatcher *recordingDispatcher

	Credentials *CredentialService
	TwoFactor   *TwoFactorService
	Federation  *FederationService
	Tokens      *TokenService
	Accounts    *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "service_test.db"))
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

	dispatcher := newRecordingDispatcher()
	emitter := event.NopEmitter{}

	creds := &CredentialService{
		Store:        st,
		Threshold:    DefaultLockoutThreshold,
		LockDuration: DefaultLockoutDuration,
		Events:       emitter,
	}
	twofactor := &TwoFactorService{
		Store:        st,
		Cache:        c,
		Signer:       signer,
		Events:       emitter,
		IssuerName:   "authcore-test",
		ChallengeTTL: jwtx.DefaultChallengeTTL,
		EnrollTTL:    DefaultEnrollmentTTL,
	}
	federation := &FederationService{Store: st, Events: emitter}
	tokens := &TokenService{
		Store:       st,
		Signer:      signer,
		Credentials: creds,
		TwoFactor:   twofactor,
		Federation:  federation,
		Events:      emitter,
		AccessTTL:   jwtx.DefaultAccessTTL,
		RefreshTTL:  DefaultRefreshTTL,
	}
	accounts := &AccountService{
		Store:      st,
		Dispatcher: dispatcher,
		Events:     emitter,
		BcryptCost: cryptox.MinCost,
		ResetTTL:   DefaultResetTTL,
	}

	return &testEnv{
		Store:       st,
		Cache:       c,
		Redis:       mr,
		Signer:      signer,
		Dispatcher:  dispatcher,
		Credentials: creds,
		TwoFactor:   twofactor,
		Federation:  federation,
		Tokens:      tokens,
		Accounts:    accounts,
	}
}

// seedVerifiedAccount creates a verified local account with the given
// password, bypassing the registration flow.
func (e *testEnv) seedVerifiedAccount(t *testing.T, email, password string) domain.Account {
	t.Helper()

	hash, err := cryptox.HashPassword(password, cryptox.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	a := domain.Account{
		ID:           idx.New().String(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: &hash,
		FirstName:    "Test",
		LastName:     "User",
		Verified:     true,
		Provider:     domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.Store.Accounts().Create(context.Background(), a))
	return a
}

// enableTwoFactor runs the real enrollment flow and returns the confirmed
// secret.
func (e *testEnv) enableTwoFactor(t *testing.T, accountID string) string {
	t.Helper()
	ctx := context.Background()

	enrollment, err := e.TwoFactor.BeginEnrollment(ctx, accountID, "")
	require.NoError(t, err)

	code := totpCodeAt(t, enrollment.Secret, time.Now())
	require.NoError(t, e.TwoFactor.ConfirmEnrollment(ctx, accountID, code))
	return enrollment.Secret
}

var testClient = domain.ClientInfo{IP: "198.51.100.7", UserAgent: "service-test"}
