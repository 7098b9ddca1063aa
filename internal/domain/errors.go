package domain

import "errors"

// Caller-actionable failures. All of these surface verbatim to the boundary
// layer; none are treated as fatal. Anything else coming out of a service is
// an infrastructure fault and maps to ErrUnavailable at the edge.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so a caller cannot probe which addresses have accounts.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	ErrAccountLocked   = errors.New("account_locked")
	ErrEmailUnverified = errors.New("email_unverified")

	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")
	ErrSessionNotFound       = errors.New("session_not_found")

	ErrInvalidChallenge    = errors.New("invalid_challenge")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrNoPendingEnrollment = errors.New("no_pending_enrollment")
	ErrTwoFactorEnabled    = errors.New("two_factor_already_enabled")
	ErrTwoFactorNotEnabled = errors.New("two_factor_not_enabled")

	ErrEmailConflict     = errors.New("email_conflict")
	ErrEmailTaken        = errors.New("email_taken")
	ErrInvalidResetToken = errors.New("invalid_reset_token")

	ErrDeliveryFailed = errors.New("delivery_failed")
	ErrUnavailable    = errors.New("unavailable")
)
