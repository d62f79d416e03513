package twofactor

import (
	"context"

	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/mfa"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"github.com/shandysiswandi/otpguard/internal/twofactor/inbound"
	"github.com/shandysiswandi/otpguard/internal/twofactor/outbound/cache"
	"github.com/shandysiswandi/otpguard/internal/twofactor/outbound/db"
	"github.com/shandysiswandi/otpguard/internal/twofactor/outbound/mq"
	"github.com/shandysiswandi/otpguard/internal/twofactor/usecase"
)

type Dependency struct {
	Ctx             context.Context            `validate:"required"`
	DBConn          *pgxpool.Pool              `validate:"required"`
	CacheConn       *redis.Client              `validate:"required"`
	Goroutine       *goroutine.Manager         `validate:"required"`
	Enforcer        *casbin.Enforcer           `validate:"required"`
	Router          *router.Router             `validate:"required"`
	Idempotency     idempotency.Idempotency    `validate:"required"`
	Messaging       messaging.Messaging        `validate:"required"`
	Config          config.Config              `validate:"required"`
	Instrument      instrument.Instrumentation `validate:"required"`
	UID             uid.NumberID               `validate:"required"`
	UUID            uid.StringID               `validate:"required"`
	HMAC            hash.Hash                  `validate:"required"`
	Bcrypt          hash.Hash                  `validate:"required"`
	Argon2ID        hash.Hash                  `validate:"required"`
	MFAEncryptor    mfa.Encryptor              `validate:"required"`
	MFARecoveryCode mfa.RecoveryCodeGenerator  `validate:"required"`
	Clock           clock.Clocker              `validate:"required"`
	Totp            otp.OTP                    `validate:"required"`
	Device          jwt.DeviceToken            `validate:"required"`
	Validator       validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoDB := db.NewDB(dep.DBConn, dep.Instrument)
	if dep.Config.GetBool("database.migrate") {
		if err := repoDB.Migrate(dep.Ctx); err != nil {
			return err
		}
	}

	repoCache := cache.NewCache(dep.CacheConn, dep.HMAC, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Config.GetString("modules.twofactor.topic.security_event"), dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:          repoDB,
		RepoCache:       repoCache,
		RepoMessaging:   repoMsg,
		Validator:       dep.Validator,
		Config:          dep.Config,
		Bcrypt:          dep.Bcrypt,
		Argon2ID:        dep.Argon2ID,
		MFAEncryptor:    dep.MFAEncryptor,
		MFARecoveryCode: dep.MFARecoveryCode,
		UID:             dep.UID,
		Totp:            dep.Totp,
		Device:          dep.Device,
		Clock:           dep.Clock,
		Instrument:      dep.Instrument,
		Enforcer:        dep.Enforcer,
		Goroutine:       dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Config.GetString("app.server.service_key"))
	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.Idempotency, dep.UUID, uc, dep.Instrument)

	return nil
}
