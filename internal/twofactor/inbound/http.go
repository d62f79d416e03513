package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/twofactor/usecase"
)

type uc interface {
	Status(ctx context.Context) (*usecase.StatusOutput, error)

	BeginEnrollment(ctx context.Context) (*usecase.BeginEnrollmentOutput, error)
	ConfirmEnrollment(ctx context.Context, in usecase.ConfirmEnrollmentInput) (*usecase.ConfirmEnrollmentOutput, error)
	Disable(ctx context.Context) (*usecase.DisableOutput, error)
	Reset(ctx context.Context) (*usecase.ResetOutput, error)
	AdminReset(ctx context.Context, in usecase.AdminResetInput) (*usecase.ResetOutput, error)
	RegenerateRecoveryCodes(ctx context.Context) (*usecase.RegenerateRecoveryCodesOutput, error)
	RefreshCredential(ctx context.Context, in usecase.RefreshCredentialInput) (*usecase.RefreshCredentialOutput, error)

	TrustDevice(ctx context.Context) (*usecase.TrustDeviceOutput, error)
	UntrustDevice(ctx context.Context, in usecase.UntrustDeviceInput) (*usecase.UntrustDeviceOutput, error)
	RotateTrustEpoch(ctx context.Context) (*usecase.RotateTrustEpochOutput, error)
	ValidateDevice(ctx context.Context, in usecase.ValidateDeviceInput) (*usecase.ValidateDeviceOutput, error)

	VerifyLogin(ctx context.Context, in usecase.VerifyLoginInput) (*usecase.VerifyLoginOutput, error)
}

// RegisterHTTPEndpoint mounts the second-factor routes. serviceKey guards the
// routes called by the login service instead of an end user.
func RegisterHTTPEndpoint(r *router.Router, uc uc, serviceKey string) {
	end := &HTTPEndpoint{uc: uc}
	internal := router.ServiceKey(serviceKey)

	// Account settings (need authenticated)
	r.GET("/api/v1/twofactor", end.Status)
	r.DELETE("/api/v1/twofactor", end.Disable)
	r.POST("/api/v1/twofactor/enrollment", end.BeginEnrollment)
	r.POST("/api/v1/twofactor/enrollment/confirm", end.ConfirmEnrollment)
	r.POST("/api/v1/twofactor/reset", end.Reset)
	r.POST("/api/v1/twofactor/recovery-codes", end.RegenerateRecoveryCodes)
	r.POST("/api/v1/twofactor/credential/refresh", end.RefreshCredential)

	// Trusted devices (need authenticated)
	r.POST("/api/v1/twofactor/devices", end.TrustDevice)
	r.POST("/api/v1/twofactor/devices/clear", end.UntrustDevice)
	r.POST("/api/v1/twofactor/devices/rotate", end.RotateTrustEpoch)

	// Login service
	r.Public(http.MethodPost, "/api/v1/twofactor/devices/validate")
	r.POST("/api/v1/twofactor/devices/validate", end.ValidateDevice, internal)
	r.Public(http.MethodPost, "/api/v1/twofactor/login/verify")
	r.POST("/api/v1/twofactor/login/verify", end.VerifyLogin, internal)

	// Administration (need authenticated & authorization)
	r.POST("/api/v1/admin/twofactor/:id/reset", end.AdminReset)
}
