package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/notify"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/cryptox"
	"github.com/mooncress/authcore/pkg/idx"
	"github.com/mooncress/authcore/pkg/slogx"
)

// DefaultResetTTL is how long a password reset token stays usable.
const DefaultResetTTL = time.Hour

// AccountService handles registration, email verification, and password
// resets. Emailed tokens are stored as fingerprints, never raw.
type AccountService struct {
	Store      store.Store
	Dispatcher notify.Dispatcher
	Events     event.Emitter

	BcryptCost int
	ResetTTL   time.Duration
}

// Register creates a local account and dispatches the verification notice.
// The account starts unverified and cannot log in until VerifyEmail runs.
func (s *AccountService) Register(ctx context.Context, email, password, firstName, lastName string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)

	hash, err := cryptox.HashPassword(password, s.BcryptCost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	verifyToken, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.Account{}, err
	}
	fingerprint := cryptox.FingerprintToken(verifyToken)

	now := time.Now()
	account := domain.Account{
		ID:                idx.New().String(),
		Email:             email,
		PasswordHash:      &hash,
		FirstName:         firstName,
		LastName:          lastName,
		VerificationToken: &fingerprint,
		Provider:          domain.ProviderLocal,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.Store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, domain.ErrEmailTaken
		}
		return domain.Account{}, err
	}

	slogx.FromContext(ctx).Info("account registered", slog.String("account_id", account.ID))
	_ = s.Events.Emit(ctx, event.New(event.TypeAccountRegistered, account.ID, account.Email).
		With("provider", domain.ProviderLocal))

	if err := s.Dispatcher.VerificationNotice(ctx, email, verifyToken); err != nil {
		// The account exists but the holder never saw the token; surface
		// it so the caller can retry delivery.
		return domain.Account{}, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	return account, nil
}

// VerifyEmail flips the account verified off the emailed token.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	account, err := s.Store.Accounts().FindByVerificationToken(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidOrExpiredToken
		}
		return err
	}

	if err := s.Store.Accounts().SetVerified(ctx, account.ID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("account verified", slog.String("account_id", account.ID))
	_ = s.Events.Emit(ctx, event.New(event.TypeAccountVerified, account.ID, account.Email))

	// Welcome delivery is best effort; verification already succeeded.
	if err := s.Dispatcher.WelcomeNotice(ctx, account.Email, account.FirstName); err != nil {
		slogx.FromContext(ctx).Warn("welcome notice failed",
			slog.String("account_id", account.ID), slog.String("error", err.Error()))
	}
	return nil
}

// RequestPasswordReset issues a reset token for the account behind email.
// An unknown email returns success without sending anything, so the
// endpoint cannot be used to probe which addresses exist.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.Store.Accounts().FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if !account.HasPassword() {
		// Federated-only accounts have no password to reset. Same silent
		// success as an unknown email.
		return nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return err
	}

	expires := time.Now().Add(s.ResetTTL)
	if err := s.Store.Accounts().SetResetToken(ctx, account.ID, cryptox.FingerprintToken(token), expires); err != nil {
		return err
	}

	if err := s.Dispatcher.PasswordResetNotice(ctx, account.Email, token); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	slogx.FromContext(ctx).Info("password reset requested", slog.String("account_id", account.ID))
	return nil
}

// ResetPassword consumes a reset token and installs the new password. The
// reset clears any lockout, and every live session is revoked so a reset
// also evicts whoever may be holding the old credentials.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	account, err := s.Store.Accounts().FindByResetToken(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}
	if account.ResetExpiresAt == nil || time.Now().After(*account.ResetExpiresAt) {
		return domain.ErrInvalidResetToken
	}

	hash, err := cryptox.HashPassword(newPassword, s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Store.Accounts().UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}
	if err := s.Store.SessionTokens().RevokeAllForAccount(ctx, account.ID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset completed", slog.String("account_id", account.ID))
	_ = s.Events.Emit(ctx, event.New(event.TypePasswordReset, account.ID, account.Email))
	return nil
}
