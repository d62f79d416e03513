package cache_test

import (
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/twofactor/outbound/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("redis container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, nat.Port("6379/tcp"))
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestCache_RevokeDevice(t *testing.T) {
	client := newRedis(t)
	ctx := t.Context()
	c := cache.NewCache(client, hash.NewHMACSHA256("cache-secret"), instrument.NewNoop())

	revoked, err := c.IsDeviceRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeDevice(ctx, "jti-a", time.Hour))

	revoked, err = c.IsDeviceRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = c.IsDeviceRevoked(ctx, "jti-b")
	require.NoError(t, err)
	assert.False(t, revoked)

	keys, err := client.Keys(ctx, "*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "jti-a", "raw jti is never stored")

	ttl, err := client.TTL(ctx, keys[0]).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
}

func TestCache_RevokeExpiredToken(t *testing.T) {
	client := newRedis(t)
	ctx := t.Context()
	c := cache.NewCache(client, hash.NewHMACSHA256("cache-secret"), instrument.NewNoop())

	require.NoError(t, c.RevokeDevice(ctx, "gone", 0))
	require.NoError(t, c.RevokeDevice(ctx, "gone", -time.Minute))

	n, err := client.DBSize(ctx).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_ConnectionFailure(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewCache(client, hash.NewHMACSHA256("cache-secret"), instrument.NewNoop())

	revoked, err := c.IsDeviceRevoked(t.Context(), "jti")
	assert.Error(t, err)
	assert.False(t, revoked)
}
