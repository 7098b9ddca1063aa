package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mooncress/authcore/internal/cache"
	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/jwtx"
	"github.com/mooncress/authcore/pkg/slogx"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultEnrollmentTTL bounds how long a generated secret stays
	// confirmable before the holder must start over.
	DefaultEnrollmentTTL = 10 * time.Minute

	// totpSkew is the tolerance in 30s steps either side of now. Two steps
	// gives an acceptance window of roughly 90 seconds centred on now.
	totpSkew = 2
)

// TwoFactorService runs TOTP enrollment and the post-password challenge
// protocol. Pending enrollments live in the ephemeral cache so an abandoned
// enrollment vanishes on its own; the secret only reaches the account record
// once the holder proves they captured it.
type TwoFactorService struct {
	Store      store.Store
	Cache      cache.Cache
	Signer     *jwtx.Signer
	Events     event.Emitter
	IssuerName string // shown in authenticator apps

	ChallengeTTL time.Duration
	EnrollTTL    time.Duration
}

func enrollKey(accountID string) string {
	return "2fa:enroll:" + accountID
}

// BeginEnrollment generates a fresh shared secret for the account and parks
// it in the ephemeral store. Re-invoking replaces any pending secret and
// restarts the TTL. The label names the account in the holder's
// authenticator app; empty falls back to the account email.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, accountID, label string) (domain.TwoFactorEnrollment, error) {
	account, err := s.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}
	if account.TwoFactorEnabled {
		return domain.TwoFactorEnrollment{}, domain.ErrTwoFactorEnabled
	}

	if label == "" {
		label = account.Email
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.IssuerName,
		AccountName: label,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.Cache.SetWithTTL(ctx, enrollKey(accountID), key.Secret(), s.EnrollTTL); err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	return domain.TwoFactorEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// ConfirmEnrollment verifies a code against the pending secret and, on
// success, persists it as the account's permanent second factor. A wrong
// code leaves the pending entry in place so the holder can retry until the
// TTL runs out.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, accountID, code string) error {
	secret, err := s.Cache.Get(ctx, enrollKey(accountID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return domain.ErrNoPendingEnrollment
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if !validTOTP(code, secret) {
		return domain.ErrInvalidCode
	}

	if err := s.Store.Accounts().SetTwoFactor(ctx, accountID, secret); err != nil {
		return err
	}
	if err := s.Cache.Delete(ctx, enrollKey(accountID)); err != nil {
		slogx.FromContext(ctx).Warn("failed to clear pending enrollment",
			slog.String("account_id", accountID), slog.String("error", err.Error()))
	}

	slogx.FromContext(ctx).Info("two-factor enabled", slog.String("account_id", accountID))
	_ = s.Events.Emit(ctx, event.New(event.TypeTwoFactorEnabled, accountID, ""))
	return nil
}

// Disable turns the second factor off. The holder must present a valid
// current code so a hijacked session cannot silently weaken the account.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.TwoFactorEnabled || account.TwoFactorSecret == nil {
		return domain.ErrTwoFactorNotEnabled
	}
	if !validTOTP(code, *account.TwoFactorSecret) {
		return domain.ErrInvalidCode
	}

	if err := s.Store.Accounts().DisableTwoFactor(ctx, accountID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("two-factor disabled", slog.String("account_id", accountID))
	_ = s.Events.Emit(ctx, event.New(event.TypeTwoFactorDisabled, accountID, account.Email))
	return nil
}

// IssueChallenge mints the short-lived challenge token handed back when a
// password login hits an account with the second factor enabled. The token
// proves the password step already passed; it cannot be used as an access
// token because its use claim differs, and it carries only the account id,
// no profile claims.
func (s *TwoFactorService) IssueChallenge(accountID string) (string, error) {
	return s.Signer.SignFor(accountID, "", jwtx.UseTwoFactor, s.ChallengeTTL, time.Now())
}

// VerifyChallenge validates the challenge token plus the submitted code and
// returns the account the login may now complete for.
func (s *TwoFactorService) VerifyChallenge(ctx context.Context, challengeToken, code string) (domain.Account, error) {
	claims, err := s.Signer.Verify(challengeToken, jwtx.UseTwoFactor)
	if err != nil {
		return domain.Account{}, domain.ErrInvalidChallenge
	}

	account, err := s.Store.Accounts().FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, domain.ErrInvalidChallenge
		}
		return domain.Account{}, err
	}
	if !account.TwoFactorEnabled || account.TwoFactorSecret == nil {
		return domain.Account{}, domain.ErrInvalidChallenge
	}

	if !validTOTP(code, *account.TwoFactorSecret) {
		return domain.Account{}, domain.ErrInvalidCode
	}

	return account, nil
}

func validTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
