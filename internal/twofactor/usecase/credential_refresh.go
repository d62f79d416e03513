package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type RefreshCredentialInput struct {
	Password string `validate:"required,max=72"`
	Code     string `validate:"omitempty,max=32"`
}

type RefreshCredentialOutput struct {
	Outcome     entity.Outcome
	RefreshedAt time.Time
	Method      entity.LoginMethod
}

// RefreshCredential re-checks the password, and the second factor when it is
// enabled, then opens a new freshness window.
func (s *Usecase) RefreshCredential(ctx context.Context, in RefreshCredentialInput) (*RefreshCredentialOutput, error) {
	ctx, span := s.startSpan(ctx, "RefreshCredential")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if acc.PasswordHash == "" || !s.bcrypt.Verify(acc.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "credential refresh with wrong password", "account_id", acc.ID)
		return nil, goerror.NewBusiness("invalid credentials", goerror.CodeUnauthorized)
	}

	var method entity.LoginMethod
	if acc.State() == entity.OTPStateEnabled {
		if in.Code == "" {
			return nil, goerror.NewInvalidInput(nil, "code", "Code is a required field")
		}

		method, err = s.verifyFactor(ctx, acc, in.Code)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	if err := s.repoDB.TouchStrongAuth(ctx, acc.ID, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo touch strong auth", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.publish(ctx, acc.ID, entity.EventCredentialRefreshed)

	return &RefreshCredentialOutput{
		Outcome:     entity.OutcomeCredentialRefreshed,
		RefreshedAt: now,
		Method:      method,
	}, nil
}
