package usecase

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/mfa"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

func (s *Usecase) issueRecoveryCodes(ctx context.Context, accountID int64) ([]string, []entity.RecoveryCode, error) {
	plain, err := s.mfaRecoveryCode.Generate(s.cfg.GetInt("modules.twofactor.recovery_code.count"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate recovery codes", "account_id", accountID, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	rows := make([]entity.RecoveryCode, 0, len(plain))
	for _, code := range plain {
		digest, err := s.argon2id.Hash(code)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash recovery code", "account_id", accountID, "error", err)
			return nil, nil, goerror.NewServer(err)
		}

		rows = append(rows, entity.RecoveryCode{
			ID:        s.uid.Generate(),
			AccountID: accountID,
			Hash:      string(digest),
			CreatedAt: now,
		})
	}

	return plain, rows, nil
}

// consumeRecoveryCode reports whether code matched an unused recovery code of
// the account and was deleted by this call.
func (s *Usecase) consumeRecoveryCode(ctx context.Context, accountID int64, code string) (bool, error) {
	normalized, err := mfa.NormalizeRecoveryCode(code)
	if err != nil {
		return false, nil
	}

	stored, err := s.repoDB.GetRecoveryCodes(ctx, accountID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get recovery codes", "account_id", accountID, "error", err)
		return false, goerror.NewServer(err)
	}

	match, found := lo.Find(stored, func(rc entity.RecoveryCode) bool {
		return s.argon2id.Verify(rc.Hash, normalized)
	})
	if !found {
		slog.WarnContext(ctx, "recovery code does not match", "account_id", accountID)
		return false, nil
	}

	ok, err := s.repoDB.ConsumeRecoveryCode(ctx, match.ID, accountID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume recovery code", "account_id", accountID, "error", err)
		return false, goerror.NewServer(err)
	}
	if !ok {
		slog.WarnContext(ctx, "recovery code already used", "account_id", accountID)
		return false, nil
	}

	s.publish(ctx, accountID, entity.EventRecoveryCodeUsed)
	return true, nil
}

type RegenerateRecoveryCodesOutput struct {
	Outcome entity.Outcome
	Codes   []string
}

// RegenerateRecoveryCodes replaces every recovery code of an ENABLED account.
func (s *Usecase) RegenerateRecoveryCodes(ctx context.Context) (*RegenerateRecoveryCodesOutput, error) {
	ctx, span := s.startSpan(ctx, "RegenerateRecoveryCodes")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	if acc.State() != entity.OTPStateEnabled {
		slog.WarnContext(ctx, "recovery codes requested while otp not enabled", "account_id", acc.ID, "state", acc.State().String())
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	plain, rows, err := s.issueRecoveryCodes(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repoDB.ReplaceRecoveryCodes(ctx, acc.ID, rows)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo replace recovery codes", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !ok {
		slog.WarnContext(ctx, "otp disabled while replacing recovery codes", "account_id", acc.ID)
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	s.publish(ctx, acc.ID, entity.EventRecoveryCodesRegenerated)

	return &RegenerateRecoveryCodesOutput{
		Outcome: entity.OutcomeRecoveryCodesIssued,
		Codes:   plain,
	}, nil
}
