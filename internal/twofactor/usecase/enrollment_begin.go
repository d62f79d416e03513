package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/mfa"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type BeginEnrollmentOutput struct {
	Outcome entity.Outcome
	Secret  string
	URI     string
}

// BeginEnrollment moves a DISABLED account to PENDING with a new secret, or
// hands back the pending secret when enrollment already started.
func (s *Usecase) BeginEnrollment(ctx context.Context) (*BeginEnrollmentOutput, error) {
	ctx, span := s.startSpan(ctx, "BeginEnrollment")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFresh(ctx, acc); err != nil {
		return nil, err
	}

	var key otp.Key
	switch acc.State() {
	case entity.OTPStateEnabled:
		slog.WarnContext(ctx, "otp already enabled", "account_id", acc.ID)
		return nil, goerror.NewBusiness("two-factor authentication is already enabled", goerror.CodeConflict)

	case entity.OTPStatePending:
		secret, err := s.decryptSecret(ctx, acc)
		if err != nil {
			return nil, err
		}
		key = s.totp.Provision(acc.Email, secret)

	default:
		key, err = s.newPendingSecret(ctx, acc)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, acc.ID, entity.EventEnrollmentStarted)
	}

	return &BeginEnrollmentOutput{
		Outcome: entity.OutcomeEnrollmentPending,
		Secret:  key.Secret,
		URI:     key.URI,
	}, nil
}

func (s *Usecase) newPendingSecret(ctx context.Context, acc *entity.Account) (otp.Key, error) {
	key, err := s.totp.Generate(acc.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp secret", "account_id", acc.ID, "error", err)
		return otp.Key{}, goerror.NewServer(err)
	}

	ciphertext, err := s.mfaEncryptor.Encrypt([]byte(key.Secret), mfa.OTPSecretScope(acc.ID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt otp secret", "account_id", acc.ID, "error", err)
		return otp.Key{}, goerror.NewServer(err)
	}

	ok, err := s.repoDB.SetPendingSecret(ctx, acc.ID, ciphertext)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo set pending secret", "account_id", acc.ID, "error", err)
		return otp.Key{}, goerror.NewServer(err)
	}
	if !ok {
		slog.WarnContext(ctx, "pending secret lost a concurrent update", "account_id", acc.ID)
		return otp.Key{}, goerror.NewBusiness("two-factor state changed, try again", goerror.CodeConflict)
	}

	return key, nil
}
