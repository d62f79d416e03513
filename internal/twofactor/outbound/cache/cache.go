package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const revokedDevicePrefix = "twofactor:device:revoked:"

// Cache keeps the list of revoked device-token ids. Keys are HMAC digests of
// the jti so the raw id never reaches Redis.
type Cache struct {
	client *redis.Client
	hmac   hash.Hash
	ins    instrument.Instrumentation
}

func NewCache(client *redis.Client, hmac hash.Hash, ins instrument.Instrumentation) *Cache {
	return &Cache{client: client, hmac: hmac, ins: ins}
}

// RevokeDevice marks jti as revoked until ttl elapses. A non-positive ttl means
// the token already expired and nothing is stored.
func (c *Cache) RevokeDevice(ctx context.Context, jti string, ttl time.Duration) (err error) {
	ctx, span := c.startSpan(ctx, "RevokeDevice")
	defer func() { c.endSpan(span, err) }()

	if ttl <= 0 {
		return nil
	}

	key, err := c.key(jti)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, "1", ttl).Err()
}

func (c *Cache) IsDeviceRevoked(ctx context.Context, jti string) (_ bool, err error) {
	ctx, span := c.startSpan(ctx, "IsDeviceRevoked")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(jti)
	if err != nil {
		return false, err
	}

	err = c.client.Get(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (c *Cache) key(jti string) (string, error) {
	digest, err := c.hmac.Hash(jti)
	if err != nil {
		return "", err
	}
	return revokedDevicePrefix + string(digest), nil
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("twofactor.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
