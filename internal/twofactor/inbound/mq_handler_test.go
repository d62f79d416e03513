package inbound_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
	"github.com/shandysiswandi/otpguard/internal/twofactor/inbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	id, topic string
	body      []byte
	headers   map[string]string
}

func (m message) ID() string               { return m.id }
func (m message) Topic() string            { return m.topic }
func (message) Key() []byte                { return nil }
func (m message) Body() []byte             { return m.body }
func (m message) Header(key string) string { return m.headers[key] }
func (message) Timestamp() time.Time       { return time.Time{} }
func (message) Attempts() int              { return 1 }

type memoryOnce struct {
	mu   sync.Mutex
	done map[string]bool
}

func (o *memoryOnce) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	o.mu.Lock()
	if o.done[key] {
		o.mu.Unlock()
		return idempotency.ErrAlreadyCompleted
	}
	o.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.done[key] = true
	o.mu.Unlock()
	return nil
}

type consumerUC struct {
	mu      sync.Mutex
	rotated []int64
	reset   []int64
	cIDs    []string
	err     error
}

func (c *consumerUC) RotateForCredentialChange(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cIDs = append(c.cIDs, instrument.GetCorrelationID(ctx))
	if c.err != nil {
		return c.err
	}
	c.rotated = append(c.rotated, id)
	return nil
}

func (c *consumerUC) ResetForRemovedAccount(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.reset = append(c.reset, id)
	return nil
}

func (c *consumerUC) snapshot() ([]int64, []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.rotated...), append([]int64(nil), c.reset...)
}

func newConsumers(t *testing.T, cfgYAML string) (*messaging.Memory, *consumerUC) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(cfgYAML))
	require.NoError(t, err)

	broker := messaging.NewMemory()
	uc := &consumerUC{}
	routine := goroutine.NewManager(4)

	ctx, cancel := context.WithCancel(context.Background())
	inbound.RegisterMQConsumer(ctx, cfg, routine, broker, &memoryOnce{done: map[string]bool{}}, uid.NewUUID(), uc, instrument.NewNoop())
	t.Cleanup(func() {
		cancel()
		_ = routine.Wait()
		_ = broker.Close()
	})

	// let Consume register its queues
	time.Sleep(30 * time.Millisecond)
	return broker, uc
}

func TestMQ_IdentityEvents(t *testing.T) {
	t.Parallel()
	broker, uc := newConsumers(t, "modules:\n  twofactor:\n    consumer_group: twofactor\n")
	ctx := instrument.SetCorrelationID(context.Background(), "cid-from-identity")

	require.NoError(t, broker.Publish(ctx, event.CredentialChangedDestination, messaging.OutgoingMessage{
		Body:    []byte(`{"account_id":5}`),
		Headers: map[string]string{"cID": "cid-from-identity"},
	}))
	require.NoError(t, broker.Publish(ctx, event.AccountRemovedDestination, messaging.OutgoingMessage{Body: []byte(`{"account_id":6}`)}))
	require.NoError(t, broker.Publish(ctx, event.AccountRemovedDestination, messaging.OutgoingMessage{Body: []byte(`not json`)}))

	assert.Eventually(t, func() bool {
		rotated, reset := uc.snapshot()
		return len(rotated) == 1 && len(reset) == 1
	}, time.Second, 10*time.Millisecond)

	rotated, reset := uc.snapshot()
	assert.Equal(t, []int64{5}, rotated)
	assert.Equal(t, []int64{6}, reset)
	assert.Equal(t, []string{"cid-from-identity"}, uc.cIDs)
}

func TestMQ_ConsumerNamesFilter(t *testing.T) {
	t.Parallel()
	broker, uc := newConsumers(t, "modules:\n  twofactor:\n    consumer_names: "+event.AccountRemovedConsumerTwoFactor+"\n")

	require.NoError(t, broker.Publish(context.Background(), event.CredentialChangedDestination, messaging.OutgoingMessage{Body: []byte(`{"account_id":5}`)}))
	require.NoError(t, broker.Publish(context.Background(), event.AccountRemovedDestination, messaging.OutgoingMessage{Body: []byte(`{"account_id":6}`)}))

	assert.Eventually(t, func() bool {
		_, reset := uc.snapshot()
		return len(reset) == 1
	}, time.Second, 10*time.Millisecond)

	rotated, _ := uc.snapshot()
	assert.Empty(t, rotated, "credential consumer is not enabled")
}

func TestMQHandler_Duplicates(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewViperFromBytes("yaml", []byte(""))
	require.NoError(t, err)
	uc := &consumerUC{}
	once := &memoryOnce{done: map[string]bool{}}

	private := &replayConsumer{msg: message{id: "m-1", topic: event.CredentialChangedDestination, body: []byte(`{"account_id":8}`)}, times: 2}
	routine := goroutine.NewManager(2)
	inbound.RegisterMQConsumer(context.Background(), cfg, routine, private, once, uid.NewUUID(), uc, instrument.NewNoop())
	require.NoError(t, routine.Wait())

	rotated, _ := uc.snapshot()
	assert.Equal(t, []int64{8}, rotated)
	assert.Equal(t, []error{nil, nil}, private.results)
}

func TestMQHandler_FailureAsksForRedelivery(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewViperFromBytes("yaml", []byte(""))
	require.NoError(t, err)

	boom := errors.New("db down")
	uc := &consumerUC{err: boom}
	once := &memoryOnce{done: map[string]bool{}}
	private := &replayConsumer{msg: message{id: "m-2", topic: event.CredentialChangedDestination, body: []byte(`{"account_id":8}`)}, times: 2}

	routine := goroutine.NewManager(2)
	inbound.RegisterMQConsumer(context.Background(), cfg, routine, private, once, uid.NewUUID(), uc, instrument.NewNoop())
	require.NoError(t, routine.Wait())

	require.Len(t, private.results, 2)
	assert.ErrorIs(t, private.results[0], boom)
	assert.ErrorIs(t, private.results[1], boom, "failed work is not marked done")
	require.Len(t, uc.cIDs, 2)
	assert.NotEmpty(t, uc.cIDs[0], "a correlation id is generated when missing")
}

// replayConsumer hands msg to the handler of its topic times times.
type replayConsumer struct {
	msg     message
	times   int
	mu      sync.Mutex
	results []error
}

func (r *replayConsumer) Consume(ctx context.Context, topic string, h messaging.Handler, _ ...messaging.ConsumeOption) error {
	if topic != r.msg.topic {
		return nil
	}
	for range r.times {
		err := h(ctx, r.msg)
		r.mu.Lock()
		r.results = append(r.results, err)
		r.mu.Unlock()
	}
	return nil
}
