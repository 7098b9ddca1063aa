package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/event"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/pkg/idx"
	"github.com/mooncress/authcore/pkg/slogx"
)

// FederationService resolves a provider-vouched identity to a local
// account, creating one on first contact.
type FederationService struct {
	Store  store.Store
	Events event.Emitter
}

// Resolve maps the profile to an account.
//
// The (provider, subject) pair is the authoritative key: re-logins hit it
// and return the same account regardless of the email the provider sends
// this time. A first contact whose email already belongs to another account
// fails with domain.ErrEmailConflict rather than silently merging, because
// a federated identity with a matching email must not take over an
// existing local account.
func (s *FederationService) Resolve(ctx context.Context, profile domain.FederatedProfile) (domain.Account, error) {
	account, err := s.Store.Accounts().FindByProviderIdentity(ctx, profile.Provider, profile.SubjectID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	email := domain.NormalizeEmail(profile.Email)
	if _, err := s.Store.Accounts().FindByEmail(ctx, email); err == nil {
		return domain.Account{}, domain.ErrEmailConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	now := time.Now()
	subject := profile.SubjectID
	account = domain.Account{
		ID:                idx.New().String(),
		Email:             email,
		FirstName:         profile.FirstName,
		LastName:          profile.LastName,
		Verified:          true, // the provider already proved email ownership
		Provider:          profile.Provider,
		ProviderSubjectID: &subject,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.Store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent first login for the same
			// identity or email. Re-resolve by the authoritative key.
			if existing, ferr := s.Store.Accounts().FindByProviderIdentity(ctx, profile.Provider, profile.SubjectID); ferr == nil {
				return existing, nil
			}
			return domain.Account{}, domain.ErrEmailConflict
		}
		return domain.Account{}, err
	}

	slogx.FromContext(ctx).Info("federated account created",
		slog.String("account_id", account.ID),
		slog.String("provider", profile.Provider),
	)
	_ = s.Events.Emit(ctx, event.New(event.TypeAccountRegistered, account.ID, account.Email).
		With("provider", profile.Provider))
	return account, nil
}
