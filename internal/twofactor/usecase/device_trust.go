package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type TrustDeviceOutput struct {
	Outcome   entity.Outcome
	Token     string
	ExpiresAt time.Time
}

// TrustDevice issues a token that lets the current device skip OTP until it
// expires, is cleared, or the account's trust epoch moves.
func (s *Usecase) TrustDevice(ctx context.Context) (*TrustDeviceOutput, error) {
	ctx, span := s.startSpan(ctx, "TrustDevice")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	if acc.State() != entity.OTPStateEnabled {
		slog.WarnContext(ctx, "device trust requested while otp not enabled", "account_id", acc.ID, "state", acc.State().String())
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	token, claims, err := s.device.Issue(acc.ID, acc.TrustEpoch)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue device token", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.publish(ctx, acc.ID, entity.EventDeviceTrusted)

	return &TrustDeviceOutput{
		Outcome:   entity.OutcomeDeviceTrusted,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type ValidateDeviceInput struct {
	AccountID int64  `validate:"required,gt=0"`
	Token     string `validate:"required,max=4096"`
}

type ValidateDeviceOutput struct {
	Trusted   bool
	AccountID int64
	ExpiresAt time.Time
}

// ValidateDevice reports whether token is a live trusted-device token of the
// account. Bad, revoked or stale tokens yield Trusted == false, not an error.
func (s *Usecase) ValidateDevice(ctx context.Context, in ValidateDeviceInput) (*ValidateDeviceOutput, error) {
	ctx, span := s.startSpan(ctx, "ValidateDevice")
	defer span.End()

	in.Token = strings.TrimSpace(in.Token)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	untrusted := &ValidateDeviceOutput{AccountID: in.AccountID}

	claims, err := s.device.Parse(in.Token)
	if err != nil {
		slog.WarnContext(ctx, "device token rejected", "account_id", in.AccountID, "error", err)
		return untrusted, nil
	}

	if claims.AccountID != in.AccountID {
		slog.WarnContext(ctx, "device token belongs to another account", "account_id", in.AccountID, "token_account_id", claims.AccountID)
		return untrusted, nil
	}

	revoked, err := s.repoCache.IsDeviceRevoked(ctx, claims.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check device revocation", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if revoked {
		slog.WarnContext(ctx, "device token revoked", "account_id", in.AccountID)
		return untrusted, nil
	}

	epoch, err := s.repoDB.GetTrustEpoch(ctx, in.AccountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found for device token", "account_id", in.AccountID)
		return untrusted, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get trust epoch", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if claims.Epoch != epoch {
		slog.WarnContext(ctx, "device token epoch is stale", "account_id", in.AccountID, "token_epoch", claims.Epoch, "epoch", epoch)
		return untrusted, nil
	}

	return &ValidateDeviceOutput{
		Trusted:   true,
		AccountID: in.AccountID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type UntrustDeviceInput struct {
	Token string `validate:"required,max=4096"`
}

type UntrustDeviceOutput struct {
	Outcome entity.Outcome
}

// UntrustDevice revokes a single device token of the caller. Tokens that are
// already invalid are reported as untrusted without further work.
func (s *Usecase) UntrustDevice(ctx context.Context, in UntrustDeviceInput) (*UntrustDeviceOutput, error) {
	ctx, span := s.startSpan(ctx, "UntrustDevice")
	defer span.End()

	in.Token = strings.TrimSpace(in.Token)

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	out := &UntrustDeviceOutput{Outcome: entity.OutcomeDeviceUntrusted}

	claims, err := s.device.Parse(in.Token)
	if err != nil {
		slog.InfoContext(ctx, "device token already invalid", "account_id", acc.ID, "error", err)
		return out, nil
	}

	if claims.AccountID != acc.ID {
		slog.WarnContext(ctx, "device token belongs to another account", "account_id", acc.ID, "token_account_id", claims.AccountID)
		return nil, goerror.NewBusiness("device token does not belong to this account", goerror.CodeForbidden)
	}

	ttl := claims.ExpiresIn(s.clock.Now())
	if ttl <= 0 {
		return out, nil
	}

	if err := s.repoCache.RevokeDevice(ctx, claims.ID, ttl); err != nil {
		slog.ErrorContext(ctx, "failed to revoke device token", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.publish(ctx, acc.ID, entity.EventDeviceUntrusted)

	return out, nil
}

type RotateTrustEpochOutput struct {
	Outcome    entity.Outcome
	TrustEpoch int64
}

// RotateTrustEpoch invalidates every device token issued so far for the caller.
func (s *Usecase) RotateTrustEpoch(ctx context.Context) (*RotateTrustEpochOutput, error) {
	ctx, span := s.startSpan(ctx, "RotateTrustEpoch")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	epoch, err := s.rotateEpoch(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	return &RotateTrustEpochOutput{Outcome: entity.OutcomeEpochRotated, TrustEpoch: epoch}, nil
}

// RotateForCredentialChange forgets every trusted device after the primary
// credential changed elsewhere. A missing account is not an error.
func (s *Usecase) RotateForCredentialChange(ctx context.Context, accountID int64) error {
	ctx, span := s.startSpan(ctx, "RotateForCredentialChange")
	defer span.End()

	_, err := s.rotateEpoch(ctx, accountID)
	if goerror.CodeOf(err) == goerror.CodeNotFound {
		return nil
	}
	return err
}

func (s *Usecase) rotateEpoch(ctx context.Context, accountID int64) (int64, error) {
	epoch, err := s.repoDB.RotateTrustEpoch(ctx, accountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found for epoch rotation", "account_id", accountID)
		return 0, goerror.NewBusiness("account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo rotate trust epoch", "account_id", accountID, "error", err)
		return 0, goerror.NewServer(err)
	}

	s.publish(ctx, accountID, entity.EventTrustEpochRotated)

	return epoch, nil
}
