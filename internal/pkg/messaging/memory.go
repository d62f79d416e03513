package messaging

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	memoryBuffer      = 256
	memoryMaxAttempts = 5
)

// Memory is an in-process broker. Each (topic, group) pair owns one queue;
// consumers in the same group compete for its messages. Messages published
// to a topic with no consumers are discarded. Failed messages are retried
// up to five attempts.
type Memory struct {
	seq *atomic.Uint64

	mu     sync.Mutex
	queues map[string]map[string]chan delivery
	closed bool
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{
		seq:    atomic.NewUint64(0),
		queues: make(map[string]map[string]chan delivery),
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	targets := make([]chan delivery, 0, len(m.queues[topic]))
	for _, q := range m.queues[topic] {
		targets = append(targets, q)
	}
	m.mu.Unlock()

	headers := make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}
	id := strconv.FormatUint(m.seq.Inc(), 10)

	for _, q := range targets {
		d := m.delivery(q, &message{
			id:        id,
			topic:     topic,
			key:       msg.Key,
			body:      msg.Body,
			headers:   headers,
			timestamp: time.Now(),
			attempts:  1,
		})
		select {
		case q <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) delivery(q chan delivery, msg *message) delivery {
	d := delivery{msg: msg}
	d.nack = func(context.Context) error {
		if msg.attempts >= memoryMaxAttempts {
			return nil
		}
		retry := *msg
		retry.attempts++
		go func() { q <- m.delivery(q, &retry) }()
		return nil
	}
	return d
}

func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	co := newConsumeOptions(opts...)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.queues[topic] == nil {
		m.queues[topic] = make(map[string]chan delivery)
	}
	q, ok := m.queues[topic][co.group]
	if !ok {
		q = make(chan delivery, memoryBuffer)
		m.queues[topic][co.group] = q
	}
	m.mu.Unlock()

	wg := workers(ctx, "memory", handler, co.concurrency, q)
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}
