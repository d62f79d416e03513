package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

// NATSConfig configures the NATS driver.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS publishes to subjects and consumes through queue subscriptions.
// Core NATS has no redelivery, so a failed handler only gets logged.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	closed bool
}

// NewNATS connects to cfg.URL.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains the connection, which also drains every subscription.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	err := n.conn.Drain()
	n.conn.Close()
	return err
}

func (n *NATS) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	nm := nats.NewMsg(topic)
	nm.Data = msg.Body
	for k, v := range msg.Headers {
		nm.Header.Set(k, v)
	}

	if err := n.conn.PublishMsg(nm); err != nil {
		return fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("messaging: nats flush: %w", err)
	}
	return nil
}

func (n *NATS) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	if n.isClosed() {
		return ErrClosed
	}
	co := newConsumeOptions(opts...)

	in := make(chan delivery, co.concurrency)
	sub, err := n.conn.QueueSubscribe(topic, co.group, func(m *nats.Msg) {
		select {
		case in <- natsDelivery(m):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	wg := workers(ctx, "nats", handler, co.concurrency, in)

	<-ctx.Done()
	derr := sub.Drain()
	wg.Wait()

	return errors.Join(ctx.Err(), derr)
}

func (n *NATS) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func natsDelivery(m *nats.Msg) delivery {
	headers := make(map[string]string, len(m.Header))
	for k := range m.Header {
		headers[k] = m.Header.Get(k)
	}

	msg := &message{
		topic:     m.Subject,
		body:      m.Data,
		headers:   headers,
		timestamp: time.Now(),
	}
	if md, err := m.Metadata(); err == nil {
		msg.id = fmt.Sprintf("%s/%d", md.Stream, md.Sequence.Stream)
		msg.timestamp = md.Timestamp
		msg.attempts = int(md.NumDelivered)
	}

	return delivery{
		msg:  msg,
		ack:  func(context.Context) error { return ignoreNoReply(m.Ack()) },
		nack: func(context.Context) error { return ignoreNoReply(m.Nak()) },
	}
}

func ignoreNoReply(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
