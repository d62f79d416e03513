package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type ConfirmEnrollmentInput struct {
	Code string `validate:"required,otp_code"`
}

type ConfirmEnrollmentOutput struct {
	Outcome       entity.Outcome
	RecoveryCodes []string
}

var errEnrollmentRejected = goerror.NewBusinessWithFields("invalid verification code", goerror.CodeUnauthorized,
	FieldOutcome, string(entity.OutcomeEnrollmentRejected))

// ConfirmEnrollment enables OTP when code matches the pending secret. A wrong
// code leaves the account PENDING.
func (s *Usecase) ConfirmEnrollment(ctx context.Context, in ConfirmEnrollmentInput) (*ConfirmEnrollmentOutput, error) {
	ctx, span := s.startSpan(ctx, "ConfirmEnrollment")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)

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

	if acc.State() != entity.OTPStatePending {
		slog.WarnContext(ctx, "no pending enrollment to confirm", "account_id", acc.ID, "state", acc.State().String())
		return nil, goerror.NewBusiness("no pending enrollment", goerror.CodeConflict)
	}

	secret, err := s.decryptSecret(ctx, acc)
	if err != nil {
		return nil, err
	}

	step, ok := s.totp.Verify(secret, in.Code, s.clock.Now())
	s.countVerification(ctx, "enrollment", ok)
	if !ok {
		slog.WarnContext(ctx, "enrollment code rejected", "account_id", acc.ID)
		return nil, errEnrollmentRejected
	}

	plain, rows, err := s.issueRecoveryCodes(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	enabled, err := s.repoDB.EnableOTP(ctx, acc.ID, acc.OTPSecret, step, s.clock.Now(), rows)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo enable otp", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !enabled {
		slog.WarnContext(ctx, "pending enrollment changed before confirm", "account_id", acc.ID)
		return nil, goerror.NewBusiness("no pending enrollment", goerror.CodeConflict)
	}

	s.publish(ctx, acc.ID, entity.EventOTPEnabled)

	return &ConfirmEnrollmentOutput{
		Outcome:       entity.OutcomeEnrollmentConfirmed,
		RecoveryCodes: plain,
	}, nil
}
