package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/utils/constant"
)

type queue struct {
	name     string
	durable  bool
	mu       sync.Mutex
	items    []*events.Message
	notify   chan struct{}
	consumer *consumer
}

func newQueue(name string, durable bool) *queue {
	return &queue{name: name, durable: durable, notify: make(chan struct{}, 1)}
}

func (q *queue) push(m *events.Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.signal()
}

func (q *queue) pushFront(m *events.Message) {
	q.mu.Lock()
	q.items = append([]*events.Message{m}, q.items...)
	q.mu.Unlock()
	q.signal()
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a message is available or stop is closed.
func (q *queue) pop(stop <-chan struct{}) (*events.Message, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-stop:
			return nil, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) attach(c *consumer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumer != nil {
		return false
	}
	q.consumer = c
	return true
}

func (q *queue) detach(c *consumer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumer == c {
		q.consumer = nil
	}
}

func (q *queue) current() *consumer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumer
}

type consumer struct {
	broker   *Broker
	q        *queue
	opts     events.ConsumeOptions
	handler  events.Handler
	ctx      context.Context
	cancel   context.CancelFunc
	inflight chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newConsumer(ctx context.Context, b *Broker, q *queue, opts events.ConsumeOptions, handler events.Handler) *consumer {
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &consumer{
		broker:  b,
		q:       q,
		opts:    opts,
		handler: handler,
		ctx:     cctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
	if opts.Prefetch > 0 {
		c.inflight = make(chan struct{}, opts.Prefetch)
	}
	return c
}

func (c *consumer) run() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if c.inflight != nil {
			select {
			case c.inflight <- struct{}{}:
			case <-c.stop:
				return
			}
		}

		m, ok := c.q.pop(c.stop)
		if !ok {
			c.release()
			return
		}

		d := &delivery{consumer: c, msg: m}
		if c.opts.AutoAck {
			_ = d.Ack()
		}
		c.dispatch(d)
	}
}

func (c *consumer) dispatch(d *delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.broker.logger.Error(constant.HandlerPanicked, log.String("queue", c.q.name), log.Any("panic", r))
			_ = d.Reject()
		}
	}()
	c.handler(c.ctx, d)
}

func (c *consumer) release() {
	if c.inflight == nil {
		return
	}
	select {
	case <-c.inflight:
	default:
	}
}

func (c *consumer) Queue() string {
	return c.q.name
}

func (c *consumer) Unsubscribe() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.cancel()
		c.q.detach(c)
		c.broker.logger.Debug(constant.ConsumerStopped, log.String("queue", c.q.name))
	})
	return nil
}

type delivery struct {
	consumer *consumer
	msg      *events.Message
	settled  atomic.Bool
}

func (d *delivery) Message() *events.Message {
	return d.msg
}

func (d *delivery) Ack() error {
	if d.settled.CompareAndSwap(false, true) {
		d.consumer.release()
	}
	return nil
}

func (d *delivery) Reject() error {
	if d.settled.CompareAndSwap(false, true) {
		d.consumer.broker.reject(d.msg)
		d.consumer.release()
	}
	return nil
}

func (d *delivery) Requeue() error {
	if d.settled.CompareAndSwap(false, true) {
		m := d.msg.Clone()
		m.Redelivered = true
		d.consumer.q.pushFront(m)
		d.consumer.release()
	}
	return nil
}
