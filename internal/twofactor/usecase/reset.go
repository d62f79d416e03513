package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type ResetOutput struct {
	Outcome    entity.Outcome
	TrustEpoch int64
}

// Reset returns the caller's account to DISABLED from any state, including
// half-written ones, and invalidates every trusted device.
func (s *Usecase) Reset(ctx context.Context) (*ResetOutput, error) {
	ctx, span := s.startSpan(ctx, "Reset")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	return s.reset(ctx, acc.ID)
}

type AdminResetInput struct {
	AccountID int64 `validate:"required,gt=0"`
}

// AdminReset lets an authorised operator reset another account. The operator
// must hold a fresh credential; the target's freshness is not consulted.
func (s *Usecase) AdminReset(ctx context.Context, in AdminResetInput) (*ResetOutput, error) {
	ctx, span := s.startSpan(ctx, "AdminReset")
	defer span.End()

	clm, err := s.authenticatedAndAuthorized(ctx, "twofactor", "reset")
	if err != nil {
		return nil, err
	}

	admin, err := s.loadAccount(ctx, clm.AccountID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, admin); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	slog.InfoContext(ctx, "admin reset requested", "account_id", in.AccountID, "admin_id", admin.ID)

	return s.reset(ctx, in.AccountID)
}

// ResetForRemovedAccount wipes second-factor state of an account removed from
// the identity store. A missing account is not an error.
func (s *Usecase) ResetForRemovedAccount(ctx context.Context, accountID int64) error {
	ctx, span := s.startSpan(ctx, "ResetForRemovedAccount")
	defer span.End()

	_, err := s.reset(ctx, accountID)
	if goerror.CodeOf(err) == goerror.CodeNotFound {
		return nil
	}
	return err
}

func (s *Usecase) reset(ctx context.Context, accountID int64) (*ResetOutput, error) {
	epoch, err := s.repoDB.ResetOTP(ctx, accountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found for reset", "account_id", accountID)
		return nil, goerror.NewBusiness("account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo reset otp", "account_id", accountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.publish(ctx, accountID, entity.EventOTPReset)

	return &ResetOutput{Outcome: entity.OutcomeReset, TrustEpoch: epoch}, nil
}
