package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token use discriminants. A two-factor challenge token must never be
// accepted where an access token is expected, so the use claim is checked
// on every verification, not just the signature and expiry.
const (
	UseAccess    = "access"
	UseTwoFactor = "twofactor"
)

// Default TTLs for the two token uses.
const (
	DefaultAccessTTL    = 15 * time.Minute
	DefaultChallengeTTL = 5 * time.Minute
)

// Claims are the signed assertions authcore issues. Access tokens carry the
// account id and email for downstream services; challenge tokens carry only
// the account id plus the twofactor discriminant.
type Claims struct {
	jwt.RegisteredClaims

	// Use discriminates access tokens from two-factor challenge tokens.
	Use string `json:"use"`

	// Email of the account, present on access tokens only.
	Email string `json:"email,omitempty"`
}

// NewClaims builds minimally-correct claims for the given use.
func NewClaims(subject, email, use, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Use:   use,
		Email: email,
	}
}
