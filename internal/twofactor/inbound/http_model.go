package inbound

import (
	"net/http"
	"time"
)

type StatusResponse struct {
	State             string     `json:"state"`
	EnabledAt         *time.Time `json:"enabled_at,omitempty"`
	RecoveryCodesLeft int        `json:"recovery_codes_left"`
	TrustEpoch        int64      `json:"trust_epoch"`
	RefreshRequired   bool       `json:"refresh_required"`
}

type OutcomeResponse struct {
	Outcome string `json:"outcome"`
}

type BeginEnrollmentResponse struct {
	Outcome string `json:"outcome"`
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
}

type ConfirmEnrollmentRequest struct {
	Code string `json:"code"`
}

type RecoveryCodesResponse struct {
	Outcome       string   `json:"outcome"`
	RecoveryCodes []string `json:"recovery_codes"`
}

func (RecoveryCodesResponse) Message() string {
	return "Store these recovery codes somewhere safe. Each code works once."
}

type ResetResponse struct {
	Outcome    string `json:"outcome"`
	TrustEpoch int64  `json:"trust_epoch"`
}

type RefreshCredentialRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

type RefreshCredentialResponse struct {
	Outcome     string    `json:"outcome"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Method      string    `json:"method,omitempty"`
}

type TrustDeviceResponse struct {
	Outcome   string    `json:"outcome"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (TrustDeviceResponse) StatusCode() int { return http.StatusCreated }

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

type ValidateDeviceRequest struct {
	AccountID int64  `json:"account_id"`
	Token     string `json:"token"`
}

type ValidateDeviceResponse struct {
	Trusted   bool       `json:"trusted"`
	AccountID int64      `json:"account_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type EpochResponse struct {
	Outcome    string `json:"outcome"`
	TrustEpoch int64  `json:"trust_epoch"`
}

type VerifyLoginRequest struct {
	AccountID int64  `json:"account_id"`
	Code      string `json:"code"`
}

type VerifyLoginResponse struct {
	AccountID int64  `json:"account_id"`
	Method    string `json:"method"`
}
