// Package idempotency runs a unit of work at most once per key, using Redis
// as the shared ledger between service instances.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrAlreadyInProgress means another worker holds the key right now.
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	// ErrAlreadyCompleted means the work for the key finished earlier.
	ErrAlreadyCompleted = errors.New("idempotency: operation already completed")
	// ErrInvalidState means the stored value is not one this package writes.
	ErrInvalidState = errors.New("idempotency: invalid state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

func (s State) String() string {
	return string(s)
}

type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

type StateTracker struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *StateTracker {
	return &StateTracker{
		client: client,
		prefix: "idempotency:",
	}
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long a crashed worker can block the key.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a completed key is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

func (s *StateTracker) acquire(ctx context.Context, key string, lock time.Duration) (State, error) {
	acquired, err := s.client.SetNX(ctx, key, StateInProgress.String(), lock).Result()
	if err != nil {
		return StateNone, err
	}
	if acquired {
		return StateNone, nil
	}

	result, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get
		return s.acquire(ctx, key, lock)
	}
	if err != nil {
		return StateNone, err
	}

	switch State(result) {
	case StateInProgress:
		return StateInProgress, nil
	case StateCompleted:
		return StateCompleted, nil
	default:
		return StateNone, ErrInvalidState
	}
}

// Exec runs fn unless key already completed or is held by another worker.
// A failing fn releases the key so the work can be retried.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}

	fk := s.prefix + key
	state, err := s.acquire(ctx, fk, o.lockDuration)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	if err := fn(ctx); err != nil {
		return errors.Join(err, s.client.Del(context.WithoutCancel(ctx), fk).Err())
	}

	return s.client.Set(context.WithoutCancel(ctx), fk, StateCompleted.String(), o.stateTTL).Err()
}
