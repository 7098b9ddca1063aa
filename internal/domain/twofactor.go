package domain

// TwoFactorEnrollment is returned when enrollment begins. The secret lives
// only in the ephemeral store until the user proves possession with a valid
// code; nothing is written to the account yet.
type TwoFactorEnrollment struct {
	Secret          string `json:"secret"`           // base32, for manual entry
	ProvisioningURI string `json:"provisioning_uri"` // otpauth:// URL for QR display
}
