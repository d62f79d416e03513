package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
	"github.com/shandysiswandi/otpguard/internal/twofactor/outbound/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newDB(t *testing.T) (*db.DB, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("otpguard"),
		postgres.WithUsername("otpguard"),
		postgres.WithPassword("otpguard"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := db.NewDB(pool, instrument.NewNoop())
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")

	_, err = pool.Exec(ctx, `INSERT INTO twofactor_accounts (id, email, password_hash) VALUES (1, 'alice@example.com', 'hash'), (2, 'bob@example.com', 'hash')`)
	require.NoError(t, err)

	return store, pool
}

func codes(n int, base int64, at time.Time) []entity.RecoveryCode {
	out := make([]entity.RecoveryCode, 0, n)
	for i := range n {
		out = append(out, entity.RecoveryCode{ID: base + int64(i), Hash: "h" + string(rune('a'+i)), CreatedAt: at})
	}
	return out
}

func TestDB_Lifecycle(t *testing.T) {
	store, pool := newDB(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.OTPStateDisabled, acc.State())
	assert.Nil(t, acc.LastStrongAuthAt)

	_, err = store.GetAccount(ctx, 404)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	ok, err := store.SetPendingSecret(ctx, 1, []byte("ct-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetPendingSecret(ctx, 1, []byte("ct-2"))
	require.NoError(t, err)
	assert.False(t, ok, "pending secret is never overwritten")

	ok, err = store.EnableOTP(ctx, 1, []byte("ct-2"), 100, now, codes(10, 1000, now))
	require.NoError(t, err)
	assert.False(t, ok, "secret changed since it was read")

	ok, err = store.EnableOTP(ctx, 1, []byte("ct-1"), 100, now, codes(10, 1000, now))
	require.NoError(t, err)
	require.True(t, ok)

	acc, err = store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.OTPStateEnabled, acc.State())
	assert.Equal(t, int64(100), acc.OTPLastStep)
	assert.Equal(t, 10, acc.RecoveryCodesLeft)
	require.NotNil(t, acc.OTPEnabledAt)
	assert.True(t, now.Equal(*acc.OTPEnabledAt))

	stored, err := store.GetRecoveryCodes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 10)
	assert.Equal(t, int64(1000), stored[0].ID)

	ok, err = store.AdvanceOTPStep(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.AdvanceOTPStep(ctx, 1, 101)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ReplaceRecoveryCodes(ctx, 1, codes(10, 2000, now))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConsumeRecoveryCode(ctx, 1000, 1)
	require.NoError(t, err)
	assert.False(t, ok, "replaced codes are gone")

	ok, err = store.ConsumeRecoveryCode(ctx, 2000, 2)
	require.NoError(t, err)
	assert.False(t, ok, "codes are scoped to their account")

	ok, err = store.DisableOTP(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DisableOTP(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	acc, err = store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.OTPStateDisabled, acc.State())
	assert.Zero(t, acc.RecoveryCodesLeft)
	assert.Equal(t, int64(1), acc.TrustEpoch)

	ok, err = store.ReplaceRecoveryCodes(ctx, 1, codes(10, 3000, now))
	require.NoError(t, err)
	assert.False(t, ok, "no codes without otp")

	_, err = pool.Exec(ctx, `UPDATE twofactor_accounts SET otp_enabled = TRUE WHERE id = 2`)
	assert.Error(t, err, "enabled without a secret violates the check")
}

func TestDB_ConsumeRecoveryCodeOnce(t *testing.T) {
	store, _ := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.SetPendingSecret(ctx, 1, []byte("ct"))
	require.NoError(t, err)
	_, err = store.EnableOTP(ctx, 1, []byte("ct"), 1, now, codes(3, 10, now))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 10 {
		wg.Go(func() {
			ok, err := store.ConsumeRecoveryCode(ctx, 10, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDB_EpochAndReset(t *testing.T) {
	store, _ := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	epoch, err := store.RotateTrustEpoch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), epoch)

	got, err := store.GetTrustEpoch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = store.RotateTrustEpoch(ctx, 404)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	_, err = store.SetPendingSecret(ctx, 2, []byte("half"))
	require.NoError(t, err)

	epoch, err = store.ResetOTP(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), epoch)

	acc, err := store.GetAccount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, entity.OTPStateDisabled, acc.State())

	_, err = store.ResetOTP(ctx, 404)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	require.NoError(t, store.TouchStrongAuth(ctx, 2, now))
	acc, err = store.GetAccount(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, acc.LastStrongAuthAt)
	assert.True(t, now.Equal(*acc.LastStrongAuthAt))

	assert.ErrorIs(t, store.TouchStrongAuth(ctx, 404, now), goerror.ErrNotFound)
}
