// Package memory is an in-process events.Broker. Queues are FIFO, each queue
// has at most one consumer, and prefetch bounds unsettled deliveries exactly
// like the networked transport, which makes it a faithful stand-in for tests.
package memory

import (
	"context"
	"sync"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/random"
)

// Broker is the in-memory broker.
type Broker struct {
	mu       sync.Mutex
	queues   map[string]*queue
	rejected map[string][]*events.Message
	closed   bool
	logger   *log.Log
}

// Option configures the Broker.
type Option func(*Broker)

// WithLogger sets the logger.
func WithLogger(logger *log.Log) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker returns an empty, open broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		queues:   map[string]*queue{},
		rejected: map[string][]*events.Message{},
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ events.Broker = (*Broker)(nil)

func (b *Broker) DeclareQueue(_ context.Context, name string, durable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return blame.NotConnected("closed")
	}
	if q, ok := b.queues[name]; ok {
		if q.durable != durable {
			return blame.QueueMismatch(name, q.durable)
		}
		return nil
	}
	b.queues[name] = newQueue(name, durable)
	b.logger.Debug(constant.QueueDeclared, log.String("queue", name), log.Bool("durable", durable))
	return nil
}

func (b *Broker) DeclareReplyQueue(_ context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", blame.NotConnected("closed")
	}
	name := "reply." + random.GenerateUUIDString()
	b.queues[name] = newQueue(name, false)
	b.logger.Debug(constant.ReplyQueueDeclared, log.String("queue", name))
	return name, nil
}

// Publish enqueues a copy of msg. Messages for undeclared queues are
// dropped, as an unroutable message would be.
func (b *Broker) Publish(_ context.Context, msg *events.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return blame.NotConnected("closed")
	}
	q, ok := b.queues[msg.Queue]
	b.mu.Unlock()

	if !ok {
		b.logger.Debug(constant.MessageDropped, log.String("queue", msg.Queue))
		return nil
	}

	m := msg.Clone()
	if m.MessageID == "" {
		m.MessageID = random.GenerateUUIDString()
	}
	q.push(m)
	return nil
}

func (b *Broker) Consume(ctx context.Context, name string, opts events.ConsumeOptions, handler events.Handler) (events.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, blame.NotConnected("closed")
	}
	q, ok := b.queues[name]
	if !ok {
		return nil, blame.QueueNotDeclared(name)
	}

	c := newConsumer(ctx, b, q, opts, handler)
	if !q.attach(c) {
		return nil, blame.AlreadyConsuming(name)
	}
	go c.run()
	b.logger.Debug(constant.ConsumerStarted, log.String("queue", name), log.Int("prefetch", opts.Prefetch))
	return c, nil
}

func (b *Broker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return blame.NotConnected("closed")
	}
	return nil
}

// Close stops every consumer. Queued messages are kept but unreachable.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	queues := make([]*queue, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	for _, q := range queues {
		if c := q.current(); c != nil {
			_ = c.Unsubscribe()
		}
	}
	return nil
}

// Rejected returns the messages rejected on queue, oldest first.
func (b *Broker) Rejected(name string) []*events.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*events.Message(nil), b.rejected[name]...)
}

// Depth returns the number of messages waiting on queue.
func (b *Broker) Depth(name string) int {
	b.mu.Lock()
	q, ok := b.queues[name]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return q.len()
}

func (b *Broker) reject(m *events.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejected[m.Queue] = append(b.rejected[m.Queue], m)
}
