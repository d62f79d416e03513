package mfa

// Purpose identifies what a ciphertext protects.
type Purpose string

const (
	// PurposeOTPSecret scopes encryption to TOTP shared secrets.
	PurposeOTPSecret Purpose = "otp_secret"
)

// Scope binds a ciphertext to its owner and purpose.
// It is authenticated as AES-GCM additional data, so a ciphertext copied to
// another account row fails to decrypt.
type Scope struct {
	// AccountID is the owning account.
	AccountID int64
	// Purpose is the encryption purpose.
	Purpose Purpose
}

// OTPSecretScope returns the scope used for an account's TOTP secret.
func OTPSecretScope(accountID int64) Scope {
	return Scope{AccountID: accountID, Purpose: PurposeOTPSecret}
}
