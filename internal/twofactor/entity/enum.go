package entity

// OTPState is the enrollment state of an account.
type OTPState int8

const (
	// OTPStateDisabled means no secret is stored.
	OTPStateDisabled OTPState = iota
	// OTPStatePending means a secret is stored but not yet confirmed.
	OTPStatePending
	// OTPStateEnabled means the secret is confirmed and required at login.
	OTPStateEnabled
)

func (s OTPState) String() string {
	switch s {
	case OTPStatePending:
		return "PENDING"
	case OTPStateEnabled:
		return "ENABLED"
	default:
		return "DISABLED"
	}
}

// Outcome names the result of a second-factor operation.
type Outcome string

const (
	OutcomeEnrollmentPending   Outcome = "enrollment_pending"
	OutcomeEnrollmentConfirmed Outcome = "enrollment_confirmed"
	OutcomeEnrollmentRejected  Outcome = "enrollment_rejected"
	OutcomeDisabled            Outcome = "disabled"
	OutcomeAlreadyDisabled     Outcome = "already_disabled"
	OutcomeReset               Outcome = "reset"
	OutcomeDeviceTrusted       Outcome = "device_trusted"
	OutcomeDeviceUntrusted     Outcome = "device_untrusted"
	OutcomeEpochRotated        Outcome = "epoch_rotated"
	OutcomeRefreshRequired     Outcome = "refresh_required"
	OutcomeRecoveryCodesIssued Outcome = "recovery_codes_issued"
	OutcomeCredentialRefreshed Outcome = "credential_refreshed"
)

// LoginMethod tells which factor satisfied a login verification.
type LoginMethod string

const (
	LoginMethodTOTP         LoginMethod = "totp"
	LoginMethodRecoveryCode LoginMethod = "recovery_code"
)

// SecurityEventKind classifies published security events.
type SecurityEventKind string

const (
	EventEnrollmentStarted        SecurityEventKind = "enrollment_started"
	EventOTPEnabled               SecurityEventKind = "otp_enabled"
	EventOTPDisabled              SecurityEventKind = "otp_disabled"
	EventOTPReset                 SecurityEventKind = "otp_reset"
	EventRecoveryCodesRegenerated SecurityEventKind = "recovery_codes_regenerated"
	EventRecoveryCodeUsed         SecurityEventKind = "recovery_code_used"
	EventDeviceTrusted            SecurityEventKind = "device_trusted"
	EventDeviceUntrusted          SecurityEventKind = "device_untrusted"
	EventTrustEpochRotated        SecurityEventKind = "trust_epoch_rotated"
	EventCredentialRefreshed      SecurityEventKind = "credential_refreshed"
)
