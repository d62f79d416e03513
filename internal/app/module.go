package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpguard/internal/twofactor"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.twofactor.enabled") {
		if err := twofactor.New(twofactor.Dependency{
			Ctx:             a.ctx,
			Config:          a.config,
			Instrument:      a.ins,
			UID:             a.uid,
			UUID:            a.uuid,
			Bcrypt:          a.bcrypt,
			HMAC:            a.hmac,
			Argon2ID:        a.argon2id,
			MFAEncryptor:    a.mfaEncryptor,
			MFARecoveryCode: a.mfaRecoveryCode,
			Clock:           a.clock,
			Validator:       a.validator,
			Router:          a.router,
			Totp:            a.totp,
			Device:          a.device,
			DBConn:          a.dbConn,
			CacheConn:       a.cacheConn,
			Idempotency:     a.idemp,
			Messaging:       a.messaging,
			Goroutine:       a.goroutine,
			Enforcer:        a.casbin,
		}); err != nil {
			slog.Error("failed to init module twofactor", "error", err)
			os.Exit(1)
		}
	}
}
