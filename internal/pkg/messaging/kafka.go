package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

// KafkaConfig configures the Kafka driver.
type KafkaConfig struct {
	Brokers []string
	// Dialer is used by readers; nil uses kafka.DefaultDialer.
	Dialer *kafka.Dialer
	// Transport is used by writers; nil uses kafka.DefaultTransport.
	Transport kafka.RoundTripper
}

// Kafka publishes with one writer per topic and consumes through consumer
// groups. Writers hash the key so events of one account stay ordered.
type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[*kafka.Reader]struct{}
	closed  bool
}

// NewKafka builds a Kafka client; connections are opened lazily.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	cfg.Brokers = append([]string(nil), cfg.Brokers...)
	return &Kafka{
		cfg:     cfg,
		writers: make(map[string]*kafka.Writer),
		readers: make(map[*kafka.Reader]struct{}),
	}, nil
}

// Close closes every reader and writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers, readers := k.writers, k.readers
	k.writers, k.readers = nil, nil
	k.mu.Unlock()

	var err error
	for r := range readers {
		err = errors.Join(err, r.Close())
	}
	for _, w := range writers {
		err = errors.Join(err, w.Close())
	}
	return err
}

func (k *Kafka) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for hk, hv := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: hk, Value: []byte(hv)})
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(k.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    k.cfg.Transport,
	}
	k.writers[topic] = w
	return w, nil
}

// Consume commits an offset only after its handler succeeds. A failed
// message is not committed; it is seen again after a rebalance or restart.
func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.cfg.Brokers,
		GroupID:  co.group,
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   k.cfg.Dialer,
	})
	if err := k.track(reader); err != nil {
		return errors.Join(err, reader.Close())
	}

	in := make(chan delivery)
	wg := workers(ctx, "kafka", handler, co.concurrency, in)

	fetchErr := k.fetch(ctx, reader, in)
	close(in)
	wg.Wait()

	if k.untrack(reader) {
		fetchErr = errors.Join(fetchErr, reader.Close())
	}
	return fetchErr
}

func (k *Kafka) fetch(ctx context.Context, reader *kafka.Reader, in chan<- delivery) error {
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("messaging: kafka fetch: %w", err)
		}

		select {
		case in <- kafkaDelivery(reader, m):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *Kafka) track(r *kafka.Reader) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	k.readers[r] = struct{}{}
	return nil
}

// untrack reports whether the caller still owns r (Close did not take it).
func (k *Kafka) untrack(r *kafka.Reader) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.readers[r]; !ok {
		return false
	}
	delete(k.readers, r)
	return true
}

func kafkaDelivery(reader *kafka.Reader, m kafka.Message) delivery {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		if _, seen := headers[h.Key]; !seen {
			headers[h.Key] = string(h.Value)
		}
	}

	return delivery{
		msg: &message{
			id:        m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10),
			topic:     m.Topic,
			key:       m.Key,
			body:      m.Value,
			headers:   headers,
			timestamp: m.Time,
		},
		ack: func(ctx context.Context) error { return reader.CommitMessages(ctx, m) },
	}
}
