package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrGroupRequired is returned by drivers that need a consumer group.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("messaging: client is closed")
)

// Messaging is a broker client that can publish and consume.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a topic (subject for NATS).
type Publisher interface {
	Publish(ctx context.Context, topic string, msg OutgoingMessage) error
}

// Consumer consumes messages from a topic. Consume blocks until ctx is
// done or the subscription fails.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. A non-nil error asks for
// redelivery.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	// Key selects the partition on Kafka; ignored elsewhere.
	Key []byte
	// Body is the payload.
	Body []byte
	// Headers are dropped by drivers without header support (NSQ).
	Headers map[string]string
}

// Message is a received message.
type Message interface {
	ID() string
	Topic() string
	Key() []byte
	Body() []byte
	// Header returns the first value for key, or "".
	Header(key string) string
	Timestamp() time.Time
	// Attempts is 1 on first delivery when the broker tracks it, else 0.
	Attempts() int
}

// message is the driver-neutral Message implementation.
type message struct {
	id        string
	topic     string
	key       []byte
	body      []byte
	headers   map[string]string
	timestamp time.Time
	attempts  int
}

func (m *message) ID() string           { return m.id }
func (m *message) Topic() string        { return m.topic }
func (m *message) Key() []byte          { return m.key }
func (m *message) Body() []byte         { return m.body }
func (m *message) Timestamp() time.Time { return m.timestamp }
func (m *message) Attempts() int        { return m.attempts }

func (m *message) Header(key string) string {
	return m.headers[key]
}
