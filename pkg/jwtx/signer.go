package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrWrongUse   = errors.New("jwtx: wrong token use")
)

// Signer signs and verifies Ed25519 JWTs for a single issuer. Verification
// enforces signature, expiry, issuer and the use discriminant.
type Signer struct {
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

func NewSigner(key ed25519.PrivateKey, issuer string) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}
	return &Signer{
		key:    key,
		pub:    key.Public().(ed25519.PublicKey),
		issuer: issuer,
	}, nil
}

func (s *Signer) Issuer() string { return s.issuer }

// Sign turns claims into a signed JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return t.SignedString(s.key)
}

// SignFor builds and signs claims for a subject in one call.
func (s *Signer) SignFor(subject, email, use string, ttl time.Duration, now time.Time) (string, error) {
	return s.Sign(NewClaims(subject, email, use, s.issuer, ttl, now))
}

// Verify parses and validates a token, requiring the expected use claim.
func (s *Signer) Verify(token, expectedUse string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("jwtx: unexpected signing method %q", t.Method.Alg())
		}
		return s.pub, nil
	})
	switch {
	case err == nil && parsed.Valid:
		// fall through to claim checks
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, ErrMalformed
	default:
		return Claims{}, ErrInvalidSig
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, ErrIssuer
	}
	if claims.Use != expectedUse {
		return Claims{}, ErrWrongUse
	}
	return claims, nil
}
