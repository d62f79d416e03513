package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type VerifyLoginInput struct {
	AccountID int64  `validate:"required,gt=0"`
	Code      string `validate:"required,second_factor"`
}

type VerifyLoginOutput struct {
	AccountID int64
	Method    entity.LoginMethod
}

var errInvalidCode = goerror.NewBusiness("invalid verification code", goerror.CodeUnauthorized)

// VerifyLogin checks the second factor during sign-in. A TOTP code is tried
// first; anything else is tried as a recovery code.
func (s *Usecase) VerifyLogin(ctx context.Context, in VerifyLoginInput) (*VerifyLoginOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyLogin")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.loadAccount(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	if acc.State() != entity.OTPStateEnabled {
		slog.WarnContext(ctx, "login verification while otp not enabled", "account_id", acc.ID, "state", acc.State().String())
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	method, err := s.verifyFactor(ctx, acc, in.Code)
	if err != nil {
		return nil, err
	}

	return &VerifyLoginOutput{AccountID: acc.ID, Method: method}, nil
}

// verifyFactor accepts a TOTP code at most once per step, or consumes a
// recovery code. acc must be ENABLED.
func (s *Usecase) verifyFactor(ctx context.Context, acc *entity.Account, code string) (entity.LoginMethod, error) {
	secret, err := s.decryptSecret(ctx, acc)
	if err != nil {
		return "", err
	}

	if step, ok := s.totp.Verify(secret, code, s.clock.Now()); ok {
		accepted, err := s.acceptStep(ctx, acc, step)
		s.countVerification(ctx, string(entity.LoginMethodTOTP), accepted)
		if err != nil {
			return "", err
		}
		if !accepted {
			return "", errInvalidCode
		}
		return entity.LoginMethodTOTP, nil
	}

	used, err := s.consumeRecoveryCode(ctx, acc.ID, code)
	if err != nil {
		return "", err
	}
	s.countVerification(ctx, string(entity.LoginMethodRecoveryCode), used)
	if !used {
		slog.WarnContext(ctx, "second factor code rejected", "account_id", acc.ID)
		return "", errInvalidCode
	}

	return entity.LoginMethodRecoveryCode, nil
}

func (s *Usecase) acceptStep(ctx context.Context, acc *entity.Account, step int64) (bool, error) {
	if step <= acc.OTPLastStep {
		slog.WarnContext(ctx, "totp code replayed", "account_id", acc.ID, "step", step)
		return false, nil
	}

	ok, err := s.repoDB.AdvanceOTPStep(ctx, acc.ID, step)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo advance otp step", "account_id", acc.ID, "error", err)
		return false, goerror.NewServer(err)
	}
	if !ok {
		slog.WarnContext(ctx, "totp step already used", "account_id", acc.ID, "step", step)
		return false, nil
	}

	return true, nil
}
