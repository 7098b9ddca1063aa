package store

import (
	"context"
	"errors"
	"time"

	"github.com/mooncress/authcore/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Accounts() Accounts
	SessionTokens() SessionTokens

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Accounts interface {
	// FindByID returns an account by id.
	FindByID(ctx context.Context, id string) (domain.Account, error)

	// FindByEmail looks up by normalized email.
	FindByEmail(ctx context.Context, email string) (domain.Account, error)

	// FindByProviderIdentity looks up by the (provider, subject) pair.
	FindByProviderIdentity(ctx context.Context, provider, subjectID string) (domain.Account, error)

	// FindByVerificationToken looks up by the fingerprint of an emailed
	// verification token.
	FindByVerificationToken(ctx context.Context, tokenHash string) (domain.Account, error)

	// FindByResetToken looks up by reset-token fingerprint, ignoring expiry
	// (the service checks the horizon so expired and absent stay distinct
	// concerns internally, even though callers see one error).
	FindByResetToken(ctx context.Context, tokenHash string) (domain.Account, error)

	// Create inserts a new account (id provided by the app via ULID).
	Create(ctx context.Context, a domain.Account) error

	// RegisterFailedAttempt increments the failed-attempt counter and, when
	// the new count reaches threshold, sets locked_until in the same
	// conditional UPDATE so two racing failures cannot under-count.
	// Returns the post-increment counter value.
	RegisterFailedAttempt(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, error)

	// CompleteLogin clears the failed-attempt counter and lock, and stamps
	// the last successful login.
	CompleteLogin(ctx context.Context, id string, at time.Time) error

	// SetVerified marks the email verified and clears the verification token.
	SetVerified(ctx context.Context, id string) error

	// UpdatePassword replaces the password hash and, in the same statement,
	// clears any pending reset token and the lockout state: a successful
	// reset must not leave a half-applied account behind.
	UpdatePassword(ctx context.Context, id string, hash string) error

	// SetResetToken stores a reset-token fingerprint with its expiry.
	SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error

	// SetTwoFactor persists the confirmed TOTP secret and enables the flag.
	SetTwoFactor(ctx context.Context, id string, secret string) error

	// DisableTwoFactor clears the flag and discards the secret.
	DisableTwoFactor(ctx context.Context, id string) error
}

type SessionTokens interface {
	// Create stores a new session token record.
	Create(ctx context.Context, t domain.SessionToken) error

	// FindByFingerprint returns the record matching a token fingerprint.
	FindByFingerprint(ctx context.Context, tokenHash string) (domain.SessionToken, error)

	// Revoke flips revoked on the matching record. Revoking an already
	// revoked or missing record is a no-op success (idempotent).
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByID revokes one live record, matched by id AND owning account
	// so a caller can only kill its own sessions. Returns ErrNotFound when
	// no live record matches.
	RevokeByID(ctx context.Context, accountID, id string) error

	// RevokeAllForAccount revokes every live record for the account.
	// Records created concurrently with the call and not yet persisted are
	// the documented concurrency boundary: they are not guaranteed revoked.
	RevokeAllForAccount(ctx context.Context, accountID string) error

	// ListActiveForAccount returns non-revoked, non-expired records newest first.
	ListActiveForAccount(ctx context.Context, accountID string) ([]domain.SessionToken, error)

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context) error
}
