package entity

import "time"

// Account is the second-factor view of an identity-store account.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string // bcrypt, read only

	OTPSecret    []byte // AES-GCM ciphertext of the base32 secret; nil when disabled
	OTPEnabled   bool
	OTPEnabledAt *time.Time
	OTPLastStep  int64 // last accepted TOTP step, 0 = none

	TrustEpoch        int64
	LastStrongAuthAt  *time.Time
	RecoveryCodesLeft int
}

// State derives the enrollment state from the stored fields.
func (a Account) State() OTPState {
	switch {
	case len(a.OTPSecret) == 0:
		return OTPStateDisabled
	case a.OTPEnabled:
		return OTPStateEnabled
	default:
		return OTPStatePending
	}
}

// NeedsRefresh reports whether the last strong authentication is missing or
// older than maxAge at now.
func (a Account) NeedsRefresh(now time.Time, maxAge time.Duration) bool {
	if a.LastStrongAuthAt == nil {
		return true
	}
	return now.Sub(*a.LastStrongAuthAt) > maxAge
}

// RecoveryCode is a stored recovery code digest.
type RecoveryCode struct {
	ID        int64
	AccountID int64
	Hash      string
	CreatedAt time.Time
}

// SecurityEvent is published after a successful second-factor change.
type SecurityEvent struct {
	AccountID  int64
	Kind       SecurityEventKind
	OccurredAt time.Time
}
