package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt cost bounds. DefaultCost is tuned so a single verification takes
// tens of milliseconds on current hardware, which is the brake we want on
// online password guessing.
const (
	MinCost     = bcrypt.MinCost
	MaxCost     = bcrypt.MaxCost
	DefaultCost = 12
)

var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// HashPassword hashes a plaintext password with bcrypt at the given cost.
// Costs outside the supported range fall back to DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < MinCost || cost > MaxCost {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a bcrypt hash.
// The comparison is constant-time in the hash contents.
func VerifyPassword(password, encodedHash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
