package inbound

import (
	"github.com/shandysiswandi/otpguard/internal/pkg/mfa"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/twofactor/usecase"
)

// HTTPEndpoint exposes HTTP handlers for the second factor of an account.
type HTTPEndpoint struct {
	uc uc
}

// Status reports the enrollment state of the caller.
// @Summary Second-factor status
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=StatusResponse} "Status"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor [get]
func (h *HTTPEndpoint) Status(r *router.Request) (any, error) {
	resp, err := h.uc.Status(r.Context())
	if err != nil {
		return nil, err
	}

	return StatusResponse{
		State:             resp.State.String(),
		EnabledAt:         resp.EnabledAt,
		RecoveryCodesLeft: resp.RecoveryCodesLeft,
		TrustEpoch:        resp.TrustEpoch,
		RefreshRequired:   resp.RefreshRequired,
	}, nil
}

// BeginEnrollment starts TOTP enrollment and returns the secret to scan.
// @Summary Begin TOTP enrollment
// @Description Generates a secret for a DISABLED account or returns the pending one.
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=BeginEnrollmentResponse} "Pending enrollment"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 409 {object} router.errorResponse "Already enabled"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/enrollment [post]
func (h *HTTPEndpoint) BeginEnrollment(r *router.Request) (any, error) {
	resp, err := h.uc.BeginEnrollment(r.Context())
	if err != nil {
		return nil, err
	}

	return BeginEnrollmentResponse{
		Outcome: string(resp.Outcome),
		Secret:  resp.Secret,
		URI:     resp.URI,
	}, nil
}

// ConfirmEnrollment enables TOTP and returns the first recovery codes.
// @Summary Confirm TOTP enrollment
// @Tags TwoFactor
// @Security BearerAuth
// @Accept json
// @Produce json,plain
// @Param request body ConfirmEnrollmentRequest true "Code from the authenticator"
// @Success 200 {object} router.successResponse{data=RecoveryCodesResponse} "Enabled"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 409 {object} router.errorResponse "No pending enrollment"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/enrollment/confirm [post]
func (h *HTTPEndpoint) ConfirmEnrollment(r *router.Request) (any, error) {
	var req ConfirmEnrollmentRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ConfirmEnrollment(r.Context(), usecase.ConfirmEnrollmentInput{Code: req.Code})
	if err != nil {
		return nil, err
	}

	return recoveryCodes(r, string(resp.Outcome), resp.RecoveryCodes), nil
}

// @Summary Disable TOTP
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=OutcomeResponse} "Disabled"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor [delete]
func (h *HTTPEndpoint) Disable(r *router.Request) (any, error) {
	resp, err := h.uc.Disable(r.Context())
	if err != nil {
		return nil, err
	}

	return OutcomeResponse{Outcome: string(resp.Outcome)}, nil
}

// @Summary Reset TOTP
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=ResetResponse} "Reset"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/reset [post]
func (h *HTTPEndpoint) Reset(r *router.Request) (any, error) {
	resp, err := h.uc.Reset(r.Context())
	if err != nil {
		return nil, err
	}

	return ResetResponse{Outcome: string(resp.Outcome), TrustEpoch: resp.TrustEpoch}, nil
}

// @Summary Reset TOTP of another account
// @Tags TwoFactor, Administration
// @Security BearerAuth
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} router.successResponse{data=ResetResponse} "Reset"
// @Failure 400 {object} router.errorResponse "Invalid account id"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "Account not found"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/admin/twofactor/{id}/reset [post]
func (h *HTTPEndpoint) AdminReset(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.AdminReset(r.Context(), usecase.AdminResetInput{AccountID: id})
	if err != nil {
		return nil, err
	}

	return ResetResponse{Outcome: string(resp.Outcome), TrustEpoch: resp.TrustEpoch}, nil
}

// RegenerateRecoveryCodes replaces the recovery codes. Clients sending
// Accept: text/plain receive the codes as a file download.
// @Summary Regenerate recovery codes
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json,plain
// @Success 200 {object} router.successResponse{data=RecoveryCodesResponse} "New codes"
// @Failure 409 {object} router.errorResponse "TOTP not enabled"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/recovery-codes [post]
func (h *HTTPEndpoint) RegenerateRecoveryCodes(r *router.Request) (any, error) {
	resp, err := h.uc.RegenerateRecoveryCodes(r.Context())
	if err != nil {
		return nil, err
	}

	return recoveryCodes(r, string(resp.Outcome), resp.Codes), nil
}

func recoveryCodes(r *router.Request, outcome string, codes []string) any {
	if r.Accepts("text/plain") {
		return &router.Attachment{
			FileName:    mfa.RecoveryFileName,
			ContentType: "text/plain; charset=utf-8",
			Body:        mfa.ExportRecoveryCodes(codes),
		}
	}

	return RecoveryCodesResponse{Outcome: outcome, RecoveryCodes: codes}
}

// @Summary Refresh credential
// @Description Re-checks the password (and the second factor when enabled) to unlock sensitive changes.
// @Tags TwoFactor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RefreshCredentialRequest true "Password and optional code"
// @Success 200 {object} router.successResponse{data=RefreshCredentialResponse} "Refreshed"
// @Failure 401 {object} router.errorResponse "Invalid credential"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/twofactor/credential/refresh [post]
func (h *HTTPEndpoint) RefreshCredential(r *router.Request) (any, error) {
	var req RefreshCredentialRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RefreshCredential(r.Context(), usecase.RefreshCredentialInput{
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		return nil, err
	}

	return RefreshCredentialResponse{
		Outcome:     string(resp.Outcome),
		RefreshedAt: resp.RefreshedAt,
		Method:      string(resp.Method),
	}, nil
}

// @Summary Trust this device
// @Tags TwoFactor, Devices
// @Security BearerAuth
// @Produce json
// @Success 201 {object} router.successResponse{data=TrustDeviceResponse} "Device token"
// @Failure 409 {object} router.errorResponse "TOTP not enabled"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/devices [post]
func (h *HTTPEndpoint) TrustDevice(r *router.Request) (any, error) {
	resp, err := h.uc.TrustDevice(r.Context())
	if err != nil {
		return nil, err
	}

	return TrustDeviceResponse{
		Outcome:   string(resp.Outcome),
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// @Summary Forget one trusted device
// @Tags TwoFactor, Devices
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body DeviceTokenRequest true "Device token"
// @Success 200 {object} router.successResponse{data=OutcomeResponse} "Untrusted"
// @Failure 403 {object} router.errorResponse "Token of another account"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/devices/clear [post]
func (h *HTTPEndpoint) UntrustDevice(r *router.Request) (any, error) {
	var req DeviceTokenRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.UntrustDevice(r.Context(), usecase.UntrustDeviceInput{Token: req.Token})
	if err != nil {
		return nil, err
	}

	return OutcomeResponse{Outcome: string(resp.Outcome)}, nil
}

// @Summary Forget every trusted device
// @Tags TwoFactor, Devices
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=EpochResponse} "Epoch rotated"
// @Failure 428 {object} router.errorResponse "Credential refresh required"
// @Router /api/v1/twofactor/devices/rotate [post]
func (h *HTTPEndpoint) RotateTrustEpoch(r *router.Request) (any, error) {
	resp, err := h.uc.RotateTrustEpoch(r.Context())
	if err != nil {
		return nil, err
	}

	return EpochResponse{Outcome: string(resp.Outcome), TrustEpoch: resp.TrustEpoch}, nil
}

// ValidateDevice is called by the login service before asking for a code.
// @Summary Validate a device token
// @Tags TwoFactor, Login
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param request body ValidateDeviceRequest true "Account and device token"
// @Success 200 {object} router.successResponse{data=ValidateDeviceResponse} "Validation result"
// @Failure 401 {object} router.errorResponse "Service authentication required"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/twofactor/devices/validate [post]
func (h *HTTPEndpoint) ValidateDevice(r *router.Request) (any, error) {
	var req ValidateDeviceRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ValidateDevice(r.Context(), usecase.ValidateDeviceInput{
		AccountID: req.AccountID,
		Token:     req.Token,
	})
	if err != nil {
		return nil, err
	}

	if !resp.Trusted {
		return ValidateDeviceResponse{Trusted: false}, nil
	}

	return ValidateDeviceResponse{
		Trusted:   true,
		AccountID: resp.AccountID,
		ExpiresAt: &resp.ExpiresAt,
	}, nil
}

// VerifyLogin checks the code typed at sign-in.
// @Summary Verify a login code
// @Tags TwoFactor, Login
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param request body VerifyLoginRequest true "Account and code"
// @Success 200 {object} router.successResponse{data=VerifyLoginResponse} "Accepted"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 409 {object} router.errorResponse "TOTP not enabled"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/twofactor/login/verify [post]
func (h *HTTPEndpoint) VerifyLogin(r *router.Request) (any, error) {
	var req VerifyLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyLogin(r.Context(), usecase.VerifyLoginInput{
		AccountID: req.AccountID,
		Code:      req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyLoginResponse{AccountID: resp.AccountID, Method: string(resp.Method)}, nil
}
