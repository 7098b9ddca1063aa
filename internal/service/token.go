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
	"github.com/mooncress/authcore/pkg/idx"
	"github.com/mooncress/authcore/pkg/jwtx"
	"github.com/mooncress/authcore/pkg/slogx"
)

const (
	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// TokenTypeBearer is the token_type reported with every issued pair.
	TokenTypeBearer = "Bearer"
)

// TokenService owns the session lifecycle: it turns a verified identity
// into an access/refresh pair, mints fresh access tokens off stored refresh
// records, and revokes sessions.
//
// Refresh tokens here are opaque random values, persisted only as SHA-256
// fingerprints, and reusable until they expire or are revoked. A refresh
// never mutates or replaces its record, so a stolen access token cannot be
// parlayed into a longer session than the record already grants.
type TokenService struct {
	Store       store.Store
	Signer      *jwtx.Signer
	Credentials *CredentialService
	TwoFactor   *TwoFactorService
	Federation  *FederationService
	Events      event.Emitter

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssueAccessToken signs a short-lived access token for the account.
func (s *TokenService) IssueAccessToken(account domain.Account) (string, error) {
	return s.Signer.SignFor(account.ID, account.Email, jwtx.UseAccess, s.AccessTTL, time.Now())
}

// IssuePair creates a brand new session: a fresh refresh record plus an
// access token. Existing sessions are never touched, so an account can hold
// as many concurrent sessions as it starts.
func (s *TokenService) IssuePair(ctx context.Context, account domain.Account, client domain.ClientInfo) (*domain.TokenPair, error) {
	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := domain.SessionToken{
		ID:        idx.New().String(),
		AccountID: account.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: now.Add(s.RefreshTTL),
		IP:        client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SessionTokens().Create(ctx, record); err != nil {
		return nil, err
	}

	access, err := s.IssueAccessToken(account)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// PasswordGrant runs a full password login. When the account carries a
// second factor the result holds a challenge token instead of a pair and
// the login stays incomplete until TwoFactorGrant.
func (s *TokenService) PasswordGrant(ctx context.Context, email, password string, client domain.ClientInfo) (*domain.AuthResult, error) {
	account, err := s.Credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if account.TwoFactorEnabled {
		challenge, err := s.TwoFactor.IssueChallenge(account.ID)
		if err != nil {
			return nil, err
		}
		return &domain.AuthResult{
			TwoFactorRequired: true,
			ChallengeToken:    challenge,
		}, nil
	}

	pair, err := s.completeLogin(ctx, account, client)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Tokens: pair}, nil
}

// TwoFactorGrant finishes a login that PasswordGrant parked behind a
// challenge.
func (s *TokenService) TwoFactorGrant(ctx context.Context, challengeToken, code string, client domain.ClientInfo) (*domain.TokenPair, error) {
	account, err := s.TwoFactor.VerifyChallenge(ctx, challengeToken, code)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, account, client)
}

// FederatedGrant logs in an identity already vouched for by an external
// provider. Lockout does not apply; the provider did the credential check.
func (s *TokenService) FederatedGrant(ctx context.Context, profile domain.FederatedProfile, client domain.ClientInfo) (*domain.TokenPair, error) {
	account, err := s.Federation.Resolve(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, account, client)
}

func (s *TokenService) completeLogin(ctx context.Context, account domain.Account, client domain.ClientInfo) (*domain.TokenPair, error) {
	if err := s.Credentials.CompleteLogin(ctx, account.ID); err != nil {
		return nil, err
	}

	pair, err := s.IssuePair(ctx, account, client)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("login succeeded", slog.String("account_id", account.ID))
	_ = s.Events.Emit(ctx, event.New(event.TypeLoginSucceeded, account.ID, account.Email).
		With("provider", account.Provider))
	return pair, nil
}

// Refresh mints a new access token off a live refresh record. The record is
// read, never written: the same refresh value keeps working until it
// expires or is revoked.
func (s *TokenService) Refresh(ctx context.Context, refreshValue string) (*domain.TokenPair, error) {
	record, err := s.lookup(ctx, refreshValue)
	if err != nil {
		return nil, err
	}

	account, err := s.Store.Accounts().FindByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	access, err := s.IssueAccessToken(account)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshValue,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Revoke marks the session behind refreshValue revoked. Unknown and
// already-revoked values are a no-op success, so a client can log out twice
// without seeing an error.
func (s *TokenService) Revoke(ctx context.Context, refreshValue string) error {
	if refreshValue == "" {
		return nil
	}
	return s.Store.SessionTokens().Revoke(ctx, cryptox.FingerprintToken(refreshValue))
}

// RevokeSession revokes one of the account's own sessions by the id shown
// in the session listing. Unlike Revoke this is not idempotent: revoking an
// unknown, dead, or foreign session reports ErrSessionNotFound, and the
// ownership check happens inside the store so a caller can never target
// another account's session.
func (s *TokenService) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	err := s.Store.SessionTokens().RevokeByID(ctx, accountID, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	slogx.FromContext(ctx).Info("session revoked",
		slog.String("account_id", accountID), slog.String("session_id", sessionID))
	return nil
}

// RevokeAll revokes every live session for the account. Sessions created
// concurrently with the call may miss the sweep; they stay revocable by a
// later call.
func (s *TokenService) RevokeAll(ctx context.Context, accountID string) error {
	if err := s.Store.SessionTokens().RevokeAllForAccount(ctx, accountID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("all sessions revoked", slog.String("account_id", accountID))
	_ = s.Events.Emit(ctx, event.New(event.TypeSessionsRevoked, accountID, ""))
	return nil
}

// Sessions lists the account's live sessions, newest first.
func (s *TokenService) Sessions(ctx context.Context, accountID string) ([]domain.SessionToken, error) {
	return s.Store.SessionTokens().ListActiveForAccount(ctx, accountID)
}

func (s *TokenService) lookup(ctx context.Context, refreshValue string) (domain.SessionToken, error) {
	if refreshValue == "" {
		return domain.SessionToken{}, domain.ErrInvalidOrExpiredToken
	}

	record, err := s.Store.SessionTokens().FindByFingerprint(ctx, cryptox.FingerprintToken(refreshValue))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionToken{}, domain.ErrInvalidOrExpiredToken
		}
		return domain.SessionToken{}, err
	}
	if !record.Live(time.Now()) {
		return domain.SessionToken{}, domain.ErrInvalidOrExpiredToken
	}
	return record, nil
}
