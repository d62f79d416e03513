package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type DisableOutput struct {
	Outcome entity.Outcome
}

// Disable removes the secret and recovery codes. Disabling a DISABLED account
// succeeds with OutcomeAlreadyDisabled.
func (s *Usecase) Disable(ctx context.Context) (*DisableOutput, error) {
	ctx, span := s.startSpan(ctx, "Disable")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	if acc.State() == entity.OTPStateDisabled {
		return &DisableOutput{Outcome: entity.OutcomeAlreadyDisabled}, nil
	}

	changed, err := s.repoDB.DisableOTP(ctx, acc.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo disable otp", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !changed {
		return &DisableOutput{Outcome: entity.OutcomeAlreadyDisabled}, nil
	}

	s.publish(ctx, acc.ID, entity.EventOTPDisabled)

	return &DisableOutput{Outcome: entity.OutcomeDisabled}, nil
}
