package domain

import (
	"strings"
	"time"
)

// Federation providers. Local means the account was created with a password.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Account represents a principal. An account always has at least one usable
// credential path: a password hash, a federated identity, or both when an
// account picked up a password after being created through a provider.
type Account struct {
	ID                string
	Email             string  // unique, stored lower-cased
	PasswordHash      *string // nil for federated-only accounts
	FirstName         string
	LastName          string
	Verified          bool
	VerificationToken *string // fingerprint of the emailed token, cleared on verify
	ResetTokenHash    *string
	ResetExpiresAt    *time.Time
	Provider          string  // local | google | github
	ProviderSubjectID *string // unique per provider when provider != local
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	TwoFactorEnabled  bool
	TwoFactorSecret   *string // base32 TOTP secret, set only once enrollment is confirmed
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Locked reports whether password authentication is currently suspended.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// HasPassword reports whether the password credential path is usable.
func (a Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// NormalizeEmail lower-cases and trims an email address. Every lookup and
// every write goes through this so the uniqueness constraint is meaningful.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FederatedProfile is the provider-agnostic identity shape handed to the
// federation resolver. Provider-specific normalization (missing emails,
// unstructured display names) happens in the transport adapters before the
// profile reaches the core.
type FederatedProfile struct {
	Provider  string
	SubjectID string
	Email     string
	FirstName string
	LastName  string
}
