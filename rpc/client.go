// Package rpc implements request/reply calls over an events.Broker. A Client
// owns one private reply queue and matches replies to pending calls by
// correlation id; a Server binds handlers to named queues and answers them.
package rpc

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/circuitBreaker"
	"github.com/abhissng/conduit/utils/codec"
	"github.com/abhissng/conduit/utils/concurrentMap"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/sony/gobreaker"
)

// Client issues calls and resolves them from its reply queue.
// Calls may be issued from any number of goroutines.
type Client struct {
	broker  events.Broker
	logger  *log.Log
	metrics *prometheus.MetricsCollector
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration

	pending *concurrentMap.ConcurrentMap[string, *Future]
	counter atomic.Uint64

	mu         sync.Mutex
	replyQueue string
	sub        events.Subscription
	closed     bool
}

// NewClient returns a client that is not yet able to call; see Start.
func NewClient(broker events.Broker, opts ...ClientOption) *Client {
	c := &Client{
		broker:  broker,
		logger:  log.NewNopLogger(),
		timeout: DefaultCallTimeout,
		pending: concurrentMap.NewConcurrentMap[string, *Future](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitBreaker.NewCircuitBreaker(
			circuitBreaker.WithName(circuitBreaker.RPCPublishBreaker),
			circuitBreaker.WithOnStateChange(func(name string, from, to gobreaker.State) {
				c.logger.Warn(constant.BreakerStateChanged,
					log.String("breaker", name),
					log.String("from", from.String()),
					log.String("to", to.String()))
			}),
		)
	}
	return c
}

// Start declares the reply queue and attaches the reply consumer.
// Calling Start again is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return blame.ClientClosed()
	}
	if c.replyQueue != "" {
		return nil
	}

	queue, err := c.broker.DeclareReplyQueue(ctx)
	if err != nil {
		return err
	}
	sub, err := c.broker.Consume(ctx, queue, events.ConsumeOptions{AutoAck: true}, c.handleReply)
	if err != nil {
		return err
	}
	c.replyQueue, c.sub = queue, sub
	c.logger.Info(constant.ReplyQueueDeclared, log.String("queue", queue))
	return nil
}

// ReplyQueue returns the private reply queue, or "" before Start.
func (c *Client) ReplyQueue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyQueue
}

// Pending returns the number of unresolved calls.
func (c *Client) Pending() int {
	return c.pending.Len()
}

// Call publishes payload to queue and returns immediately with a Future
// for the reply. payload is JSON encoded unless it is already []byte.
func (c *Client) Call(ctx context.Context, queue string, payload any) (*Future, error) {
	c.mu.Lock()
	replyQueue, closed := c.replyQueue, c.closed
	c.mu.Unlock()

	if closed {
		return nil, blame.ClientClosed()
	}
	if replyQueue == "" {
		return nil, blame.ClientNotStarted()
	}

	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatUint(c.counter.Add(1), 10)
	f := newFuture(c, queue, id)
	c.pending.Set(id, f)

	msg := &events.Message{
		Queue:         queue,
		CorrelationID: id,
		ReplyTo:       replyQueue,
		Body:          body,
		Headers:       map[string]string{constant.HeaderContentType: constant.ContentTypeJSON},
	}
	if err := c.publish(ctx, msg); err != nil {
		c.pending.Delete(id)
		c.metrics.ObserveCall(queue, outcomeError, time.Since(f.started))
		return nil, err
	}
	return f, nil
}

// Notify publishes a one-way message; no reply is expected.
func (c *Client) Notify(ctx context.Context, queue string, payload any) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return c.publish(ctx, &events.Message{
		Queue:   queue,
		Body:    body,
		Headers: map[string]string{constant.HeaderContentType: constant.ContentTypeJSON},
	})
}

func (c *Client) publish(ctx context.Context, msg *events.Message) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.broker.Publish(ctx, msg)
	})
	if err == nil {
		return nil
	}
	c.logger.Warn(constant.EventPublishFailed, log.String("queue", msg.Queue), log.Err(err))
	if circuitBreaker.IsOpen(err) {
		return blame.PublishFailed(msg.Queue, err)
	}
	return err
}

// Invoke calls queue and decodes the reply data into out, which may be nil.
// Without a deadline on ctx the client's call timeout applies.
func (c *Client) Invoke(ctx context.Context, queue string, payload, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	f, err := c.Call(ctx, queue, payload)
	if err != nil {
		return err
	}
	return f.Decode(ctx, out)
}

func (c *Client) handleReply(_ context.Context, d events.Delivery) {
	m := d.Message()
	f, ok := c.pending.Pop(m.CorrelationID)
	if !ok {
		c.logger.Warn(constant.UnknownCorrelation, log.String(constant.CorrelationID, m.CorrelationID))
		return
	}

	var reply Reply
	if err := codec.DecodeInto(m.Body, &reply, codec.JSON); err != nil {
		f.resolve(nil, blame.MalformedEnvelope(m.Queue, err), outcomeError)
		return
	}
	if reply.Error != nil {
		f.resolve(nil, blame.FromErrorResponse(reply.Error), outcomeError)
		return
	}
	f.resolve(reply.Data, nil, outcomeOK)
}

// abandon removes f from the registry. It reports false when a reply or
// Close got there first.
func (c *Client) abandon(f *Future) bool {
	_, ok := c.pending.Pop(f.correlationID)
	return ok
}

// Close stops the reply consumer and fails every pending call.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	for _, f := range c.pending.Drain() {
		f.resolve(nil, blame.ClientClosed(), outcomeClosed)
	}
	return err
}

// Future is the handle of one outstanding call.
type Future struct {
	client        *Client
	queue         string
	correlationID string
	started       time.Time
	done          chan struct{}
	once          sync.Once
	data          json.RawMessage
	err           error
}

func newFuture(c *Client, queue, correlationID string) *Future {
	return &Future{
		client:        c,
		queue:         queue,
		correlationID: correlationID,
		started:       time.Now(),
		done:          make(chan struct{}),
	}
}

// CorrelationID returns the id the call was published with.
func (f *Future) CorrelationID() string {
	return f.correlationID
}

// Done is closed once the call is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) resolve(data json.RawMessage, err error, outcome string) {
	f.once.Do(func() {
		f.data, f.err = data, err
		close(f.done)
		f.client.metrics.ObserveCall(f.queue, outcome, time.Since(f.started))
	})
}

// Wait blocks until the reply arrives or ctx ends. On ctx expiry the call
// is removed from the registry and a late reply is dropped.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
	}

	if f.client.abandon(f) {
		f.client.logger.Warn(constant.CallTimedOut,
			log.String("queue", f.queue),
			log.String(constant.CorrelationID, f.correlationID))
		f.resolve(nil, blame.CallTimeout(f.queue, f.correlationID, ctx.Err()), outcomeTimeout)
	}
	<-f.done
	return f.data, f.err
}

// Decode waits for the reply and unmarshals its data into out.
func (f *Future) Decode(ctx context.Context, out any) error {
	data, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := codec.DecodeInto(data, out, codec.JSON); err != nil {
		return blame.UnmarshalFailed(err)
	}
	return nil
}
