package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/mfa"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// FieldOutcome is the error field that names the outcome of a refused
// operation, so callers can tell a rejected code from a refresh demand.
const FieldOutcome = "outcome"

type repoDB interface {
	GetAccount(ctx context.Context, id int64) (*entity.Account, error)
	GetTrustEpoch(ctx context.Context, id int64) (int64, error)
	GetRecoveryCodes(ctx context.Context, accountID int64) ([]entity.RecoveryCode, error)

	// SetPendingSecret stores a secret on an account that has none.
	SetPendingSecret(ctx context.Context, id int64, ciphertext []byte) (bool, error)
	// EnableOTP flips a pending account to enabled when its secret still equals
	// ciphertext, and stores codes in the same transaction.
	EnableOTP(ctx context.Context, id int64, ciphertext []byte, step int64, at time.Time, codes []entity.RecoveryCode) (bool, error)
	// DisableOTP clears the secret and codes and rotates the trust epoch.
	// It reports false when there was nothing to disable.
	DisableOTP(ctx context.Context, id int64) (bool, error)
	// ResetOTP wipes every second-factor field and returns the new trust epoch.
	ResetOTP(ctx context.Context, id int64) (int64, error)
	ReplaceRecoveryCodes(ctx context.Context, accountID int64, codes []entity.RecoveryCode) (bool, error)
	ConsumeRecoveryCode(ctx context.Context, id, accountID int64) (bool, error)
	AdvanceOTPStep(ctx context.Context, id, step int64) (bool, error)
	RotateTrustEpoch(ctx context.Context, id int64) (int64, error)
	TouchStrongAuth(ctx context.Context, id int64, at time.Time) error
}

type repoCache interface {
	RevokeDevice(ctx context.Context, jti string, ttl time.Duration) error
	IsDeviceRevoked(ctx context.Context, jti string) (bool, error)
}

type repoMessaging interface {
	PublishSecurityEvent(ctx context.Context, ev entity.SecurityEvent) error
}

type Usecase struct {
	repoDB          repoDB
	repoCache       repoCache
	repoMessaging   repoMessaging
	validator       validator.Validator
	cfg             config.Config
	bcrypt          hash.Hash
	argon2id        hash.Hash
	mfaEncryptor    mfa.Encryptor
	mfaRecoveryCode mfa.RecoveryCodeGenerator
	uid             uid.NumberID
	totp            otp.OTP
	device          jwt.DeviceToken
	clock           clock.Clocker
	ins             instrument.Instrumentation
	enforcer        *casbin.Enforcer
	goroutine       *goroutine.Manager

	verifications metric.Int64Counter
}

type Dependency struct {
	RepoDB          repoDB
	RepoCache       repoCache
	RepoMessaging   repoMessaging
	Validator       validator.Validator
	Config          config.Config
	Bcrypt          hash.Hash
	Argon2ID        hash.Hash
	MFAEncryptor    mfa.Encryptor
	MFARecoveryCode mfa.RecoveryCodeGenerator
	UID             uid.NumberID
	Totp            otp.OTP
	Device          jwt.DeviceToken
	Clock           clock.Clocker
	Instrument      instrument.Instrumentation
	Enforcer        *casbin.Enforcer
	Goroutine       *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	verifications, err := dep.Instrument.Meter("twofactor.usecase").Int64Counter(
		"twofactor.verifications",
		metric.WithDescription("Second-factor code checks by method and result"),
	)
	if err != nil {
		slog.Warn("failed to create verification counter", "error", err)
	}

	return &Usecase{
		repoDB:          dep.RepoDB,
		repoCache:       dep.RepoCache,
		repoMessaging:   dep.RepoMessaging,
		validator:       dep.Validator,
		cfg:             dep.Config,
		bcrypt:          dep.Bcrypt,
		argon2id:        dep.Argon2ID,
		mfaEncryptor:    dep.MFAEncryptor,
		mfaRecoveryCode: dep.MFARecoveryCode,
		uid:             dep.UID,
		totp:            dep.Totp,
		device:          dep.Device,
		clock:           dep.Clock,
		ins:             dep.Instrument,
		enforcer:        dep.Enforcer,
		goroutine:       dep.Goroutine,
		verifications:   verifications,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("twofactor.usecase").Start(ctx, name)
}

func (s *Usecase) caller(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil || clm.AccountID <= 0 {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	return clm, nil
}

func (s *Usecase) authenticatedAndAuthorized(ctx context.Context, obj, act string) (*jwt.Claims, error) {
	clm, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := s.enforcer.Enforce(clm.Subject, obj, act)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check authorization", "account_id", clm.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !ok {
		slog.WarnContext(ctx, "account not allowed", "account_id", clm.AccountID, "object", obj, "action", act)
		return nil, goerror.NewBusiness("Account not allowed", goerror.CodeForbidden)
	}

	return clm, nil
}

func (s *Usecase) loadAccount(ctx context.Context, id int64) (*entity.Account, error) {
	acc, err := s.repoDB.GetAccount(ctx, id)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "account_id", id)
		return nil, goerror.NewBusiness("account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account", "account_id", id, "error", err)
		return nil, goerror.NewServer(err)
	}

	return acc, nil
}

// loadCaller loads the account of the authenticated caller.
func (s *Usecase) loadCaller(ctx context.Context) (*entity.Account, error) {
	clm, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	return s.loadAccount(ctx, clm.AccountID)
}

func (s *Usecase) decryptSecret(ctx context.Context, acc *entity.Account) (string, error) {
	plain, err := s.mfaEncryptor.Decrypt(acc.OTPSecret, mfa.OTPSecretScope(acc.ID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt otp secret", "account_id", acc.ID, "error", err)
		return "", goerror.NewServer(err)
	}

	return string(plain), nil
}

// publish sends ev after the request returns. Delivery failures never undo
// the committed transition.
func (s *Usecase) publish(ctx context.Context, accountID int64, kind entity.SecurityEventKind) {
	ev := entity.SecurityEvent{AccountID: accountID, Kind: kind, OccurredAt: s.clock.Now()}

	s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoMessaging.PublishSecurityEvent(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "failed to publish security event", "account_id", accountID, "kind", string(kind), "error", err)
			return err
		}
		return nil
	})
}

func (s *Usecase) countVerification(ctx context.Context, method string, ok bool) {
	if s.verifications == nil {
		return
	}

	result := "rejected"
	if ok {
		result = "accepted"
	}

	s.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	))
}
