package usecase_test

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	libjwt "github.com/golang-jwt/jwt/v5"
	libotp "github.com/pquerna/otp"
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
	"github.com/shandysiswandi/otpguard/internal/twofactor/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceID int64 = 1
	bobID   int64 = 2
	adminID int64 = 9

	alicePassword = "correct horse battery"
	pepper        = "pepper"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

const testConfig = `
modules:
  twofactor:
    credential_refresh_ttl_minutes: 15
    recovery_code:
      count: 10
`

var start = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type suite struct {
	uc     *usecase.Usecase
	db     *memoryDB
	cache  *memoryCache
	bus    *recordingBus
	clk    *clock.Fixed
	totp   *otp.TOTP
	device *jwt.DeviceHS512
	gm     *goroutine.Manager
}

func newSuite(t *testing.T, opts ...func(*usecase.Dependency)) *suite {
	t.Helper()

	clk := clock.NewFixed(start)
	fresh := start

	bcrypt := hash.NewBcrypt(4, pepper)
	pw, err := bcrypt.Hash(alicePassword)
	require.NoError(t, err)

	db := newMemoryDB(
		entity.Account{ID: aliceID, Email: "alice@example.com", PasswordHash: string(pw), LastStrongAuthAt: &fresh},
		entity.Account{ID: bobID, Email: "bob@example.com", PasswordHash: string(pw), LastStrongAuthAt: &fresh},
		entity.Account{ID: adminID, Email: "admin@example.com", PasswordHash: string(pw), LastStrongAuthAt: &fresh},
	)

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	device, err := jwt.NewDeviceHS512(jwt.Config{
		Secret:    bytes.Repeat([]byte("d"), 64),
		Issuer:    "otpguard",
		Audiences: []string{"otpguard-device"},
		TTL:       30 * 24 * time.Hour,
		Clock:     clk,
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	m, err := model.NewModelFromString(rbacModel)
	require.NoError(t, err)
	enforcer, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = enforcer.AddPolicy("role:support", "twofactor", "reset")
	require.NoError(t, err)
	_, err = enforcer.AddGroupingPolicy(strconv.FormatInt(adminID, 10), "role:support")
	require.NoError(t, err)

	ids, err := uid.NewSnowflakeNode(1)
	require.NoError(t, err)

	engine := otp.NewTOTP("otpguard", 30, 1, libotp.DigitsSix)
	cache := newMemoryCache()
	bus := &recordingBus{}
	gm := goroutine.NewManager(8)

	dep := usecase.Dependency{
		RepoDB:          db,
		RepoCache:       cache,
		RepoMessaging:   bus,
		Validator:       v,
		Config:          cfg,
		Bcrypt:          bcrypt,
		Argon2ID:        hash.NewHMACSHA256("recovery-secret"),
		MFAEncryptor:    mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte("k"), 32)}),
		MFARecoveryCode: mfa.NewRecoveryCode(),
		UID:             ids,
		Totp:            engine,
		Device:          device,
		Clock:           clk,
		Instrument:      instrument.NewNoop(),
		Enforcer:        enforcer,
		Goroutine:       gm,
	}
	for _, opt := range opts {
		opt(&dep)
	}

	uc := usecase.New(dep)

	return &suite{uc: uc, db: db, cache: cache, bus: bus, clk: clk, totp: engine, device: device, gm: gm}
}

func as(id int64) context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{AccountID: id, RegisteredClaims: libjwt.RegisteredClaims{
		Subject: strconv.FormatInt(id, 10),
	}})
}

// flush waits for published events; the suite cannot publish afterwards.
func (s *suite) flush(t *testing.T) []entity.SecurityEventKind {
	t.Helper()
	require.NoError(t, s.gm.Wait())
	return s.bus.kinds()
}

func (s *suite) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := s.totp.Code(secret, s.clk.Now())
	require.NoError(t, err)
	return c
}

// enable takes the account through begin and confirm and returns the secret
// and the issued recovery codes.
func (s *suite) enable(t *testing.T, id int64) (string, []string) {
	t.Helper()

	begun, err := s.uc.BeginEnrollment(as(id))
	require.NoError(t, err)

	confirmed, err := s.uc.ConfirmEnrollment(as(id), usecase.ConfirmEnrollmentInput{Code: s.code(t, begun.Secret)})
	require.NoError(t, err)

	return begun.Secret, confirmed.RecoveryCodes
}

func (s *suite) nextStep() {
	s.clk.Advance(30 * time.Second)
}

func assertCode(t *testing.T, err error, code goerror.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, goerror.CodeOf(err), "error: %v", err)
}

func assertOutcome(t *testing.T, err error, outcome entity.Outcome) {
	t.Helper()
	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, string(outcome), ge.Fields()[usecase.FieldOutcome])
}
