package domain

import "time"

// TokenPair is what a completed login returns: the short-lived access JWT
// and the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
}

// SessionToken models the stored refresh token record. Records are never
// mutated after creation except for the revoked flag; a new login always
// creates a new record, so concurrent sessions per account just work.
type SessionToken struct {
	ID        string
	AccountID string
	TokenHash string // deterministic fingerprint (base64url SHA-256) of the opaque value
	ExpiresAt time.Time
	Revoked   bool
	IP        string // advisory client fingerprint only
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live reports whether the record can still mint access tokens.
func (t SessionToken) Live(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// ClientInfo is the advisory fingerprint captured at issuance.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthResult is the outcome of a password login: either a token pair, or a
// pending second-factor challenge when the account has two-factor enabled.
type AuthResult struct {
	TwoFactorRequired bool       `json:"two_factor_required"`
	ChallengeToken    string     `json:"challenge_token,omitempty"`
	Tokens            *TokenPair `json:"tokens,omitempty"`
}
