package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/cryptox"
	"github.com/mooncress/authcore/pkg/slogx"
)

const (
	// DefaultLockoutThreshold is how many consecutive password failures
	// suspend the account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long the suspension lasts.
	DefaultLockoutDuration = 30 * time.Minute
)

// dummyHash is a real bcrypt hash of a throwaway value. Verification against
// it burns the same work as a genuine comparison, so a login probe cannot
// time-measure whether the email exists or carries a password.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// CredentialService verifies email/password pairs and owns every mutation
// of the brute-force lockout state.
type CredentialService struct {
	Store        store.Store
	Threshold    int
	LockDuration time.Duration
	Events       event.Emitter
}

// Verify checks the password for the account behind email.
//
// The failure discriminants are deliberately coarse: unknown email, missing
// password credential, and wrong password all surface as
// domain.ErrInvalidCredentials. A locked account fails fast with
// domain.ErrAccountLocked without touching the attempt counter. A correct
// password on an unverified account fails with domain.ErrEmailUnverified.
//
// Verify never clears the failure counter; the caller finishes the login
// (including any second-factor step) and then calls CompleteLogin.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (domain.Account, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	account, err := s.Store.Accounts().FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a comparison so unknown emails cost the same as known ones.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.Account{}, domain.ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	if account.Locked(now) {
		l.Info("login rejected, account locked", slog.String("account_id", account.ID))
		return domain.Account{}, domain.ErrAccountLocked
	}

	if !account.HasPassword() {
		_ = cryptox.VerifyPassword(password, dummyHash)
		return domain.Account{}, domain.ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, *account.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Account{}, err
		}
		return domain.Account{}, s.registerFailure(ctx, account)
	}

	if !account.Verified {
		return domain.Account{}, domain.ErrEmailUnverified
	}

	return account, nil
}

// CompleteLogin clears the lockout state and stamps the login time. Called
// once the whole flow succeeds, after any second-factor step.
func (s *CredentialService) CompleteLogin(ctx context.Context, accountID string) error {
	return s.Store.Accounts().CompleteLogin(ctx, accountID, time.Now())
}

func (s *CredentialService) registerFailure(ctx context.Context, account domain.Account) error {
	l := slogx.FromContext(ctx)

	attempts, err := s.Store.Accounts().RegisterFailedAttempt(
		ctx, account.ID, s.Threshold, time.Now().Add(s.LockDuration))
	if err != nil {
		// The counter did not move, so the request fails without
		// half-applied lockout state.
		return err
	}

	l.Info("password verification failed",
		slog.String("account_id", account.ID),
		slog.Int("failed_attempts", attempts),
	)
	_ = s.Events.Emit(ctx, event.New(event.TypeLoginFailed, account.ID, account.Email).
		With("failed_attempts", attempts))

	if attempts >= s.Threshold {
		l.Warn("account locked after repeated failures",
			slog.String("account_id", account.ID),
			slog.Int("failed_attempts", attempts),
		)
		_ = s.Events.Emit(ctx, event.New(event.TypeAccountLocked, account.ID, account.Email).
			With("lock_minutes", int(s.LockDuration.Minutes())))
	}

	// The caller learns only that the credentials were wrong, even on the
	// attempt that tripped the lock.
	return domain.ErrInvalidCredentials
}
