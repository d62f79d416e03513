package app

import (
	"context"
	"net/http"

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
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine       *goroutine.Manager
	validator       validator.Validator
	clock           clock.Clocker
	hmac            hash.Hash
	argon2id        hash.Hash
	bcrypt          hash.Hash
	uid             uid.NumberID
	uuid            uid.StringID
	totp            otp.OTP
	jwt             jwt.JWT
	device          jwt.DeviceToken
	mfaEncryptor    mfa.Encryptor
	mfaRecoveryCode mfa.RecoveryCodeGenerator

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	messaging messaging.Messaging
	casbin    *casbin.Enforcer

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initMessaging()
	app.initCasbin()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
