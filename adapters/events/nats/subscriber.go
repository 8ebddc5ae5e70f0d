package nats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/nats-io/nats.go"
)

// Consume attaches handler to a declared queue. Durable queues get a
// durable JetStream consumer whose unacknowledged deliveries are capped at
// opts.Prefetch; the same cap is enforced locally for transient queues.
func (t *Transport) Consume(ctx context.Context, queue string, opts events.ConsumeOptions, handler events.Handler) (events.Subscription, error) {
	nc, js, err := t.conn()
	if err != nil {
		return nil, err
	}
	durable, declared := t.isDurable(queue)
	if !declared {
		return nil, blame.QueueNotDeclared(queue)
	}
	if durable && js == nil {
		return nil, blame.ConsumeFailed(queue, nats.ErrJetStreamNotEnabled)
	}

	s := newSubscription(ctx, t, queue, opts.Prefetch)
	t.mu.Lock()
	if t.subs == nil {
		t.mu.Unlock()
		s.cancel()
		return nil, blame.NotConnected(t.state.String())
	}
	if _, busy := t.subs[queue]; busy {
		t.mu.Unlock()
		s.cancel()
		return nil, blame.AlreadyConsuming(queue)
	}
	t.subs[queue] = s
	t.mu.Unlock()

	middlewares := append([]events.Middleware{events.RecoveryMiddleware(t.logger)}, t.middlewares...)
	h := events.Chain(handler, middlewares...)
	cb := func(msg *nats.Msg) {
		s.dispatch(msg, h, durable, opts.AutoAck)
	}

	switch {
	case durable:
		consumer := opts.Name
		if consumer == "" {
			consumer = queue
		}
		subOpts := []nats.SubOpt{
			nats.BindStream(streamName(queue)),
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.DeliverAll(),
		}
		if opts.Prefetch > 0 {
			subOpts = append(subOpts, nats.MaxAckPending(opts.Prefetch))
		}
		s.sub, err = js.QueueSubscribe(queue, sanitizeName(consumer), cb, subOpts...)
	case strings.HasPrefix(queue, nats.InboxPrefix):
		s.sub, err = nc.Subscribe(queue, cb)
	default:
		s.sub, err = nc.QueueSubscribe(queue, queue, cb)
	}
	if err != nil {
		t.forget(s)
		s.cancel()
		return nil, blame.ConsumeFailed(queue, err)
	}

	t.logger.Debug(constant.ConsumerStarted,
		log.String("queue", queue),
		log.Bool("durable", durable),
		log.Int("prefetch", opts.Prefetch))
	return s, nil
}

func (t *Transport) forget(s *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs[s.queue] == s {
		delete(t.subs, s.queue)
	}
}

type subscription struct {
	t        *Transport
	queue    string
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	inflight chan struct{}
	once     sync.Once
}

func newSubscription(ctx context.Context, t *Transport, queue string, prefetch int) *subscription {
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &subscription{t: t, queue: queue, ctx: sctx, cancel: cancel}
	if prefetch > 0 {
		s.inflight = make(chan struct{}, prefetch)
	}
	return s
}

func (s *subscription) dispatch(msg *nats.Msg, handler events.Handler, jetstream, autoAck bool) {
	if s.inflight != nil {
		select {
		case s.inflight <- struct{}{}:
		case <-s.ctx.Done():
			if jetstream {
				_ = msg.Nak()
			}
			return
		}
	}

	d := &delivery{sub: s, msg: msg, m: fromNatsMsg(s.queue, msg), jetstream: jetstream}
	if autoAck {
		_ = d.Ack()
	}
	handler(s.ctx, d)
}

func (s *subscription) release() {
	if s.inflight == nil {
		return
	}
	select {
	case <-s.inflight:
	default:
	}
}

func (s *subscription) Queue() string {
	return s.queue
}

// Unsubscribe stops deliveries and cancels the context handed to the handler.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		if s.sub != nil {
			err = s.sub.Unsubscribe()
		}
		s.cancel()
		s.t.forget(s)
		s.t.logger.Debug(constant.ConsumerStopped, log.String("queue", s.queue))
	})
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return blame.ConsumeFailed(s.queue, err)
	}
	return nil
}

type delivery struct {
	sub       *subscription
	msg       *nats.Msg
	m         *events.Message
	jetstream bool
	settled   atomic.Bool
}

func (d *delivery) Message() *events.Message {
	return d.m
}

func (d *delivery) Ack() error {
	return d.settle(func() error {
		if d.jetstream {
			return d.msg.Ack()
		}
		return nil
	})
}

// Reject terminates a durable delivery so it is never redelivered.
func (d *delivery) Reject() error {
	return d.settle(func() error {
		d.sub.t.logger.Warn(constant.EventRejected,
			log.String("queue", d.sub.queue),
			log.String(constant.CorrelationID, d.m.CorrelationID))
		if d.jetstream {
			return d.msg.Term()
		}
		return nil
	})
}

// Requeue naks a durable delivery. Core subjects have no redelivery, so the
// message is published to the queue again.
func (d *delivery) Requeue() error {
	return d.settle(func() error {
		d.sub.t.logger.Debug(constant.EventRequeued, log.String("queue", d.sub.queue))
		if d.jetstream {
			return d.msg.Nak()
		}
		nc, _, err := d.sub.t.conn()
		if err != nil {
			return err
		}
		return nc.PublishMsg(toNatsMsg(d.m))
	})
}

func (d *delivery) settle(fn func() error) error {
	if !d.settled.CompareAndSwap(false, true) {
		return nil
	}
	defer d.sub.release()
	if err := fn(); err != nil {
		d.sub.t.logger.Error(constant.DeliveryAckFailed, log.String("queue", d.sub.queue), log.Err(err))
		return blame.AckFailed(d.sub.queue, err)
	}
	return nil
}
