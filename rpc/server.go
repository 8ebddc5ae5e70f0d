package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/types"
)

// HandlerFunc answers one request. A returned error is either a protocol
// error (component protocol: the delivery is rejected) or a domain error,
// which is sent back to the caller as a structured reply.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Server binds handlers to queues.
type Server struct {
	broker  events.Broker
	logger  *log.Log
	metrics *prometheus.MetricsCollector

	mu   sync.Mutex
	subs []events.Subscription
}

// NewServer returns a server publishing replies through broker.
func NewServer(broker events.Broker, opts ...ServerOption) *Server {
	s := &Server{broker: broker, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve declares queue (transient unless WithDurableQueue) and attaches one
// consumer with a prefetch of one, so deliveries are handled strictly one at
// a time in queue order. With autoAck a delivery is settled as soon as it is
// received; otherwise it is settled once the handler has finished.
func (s *Server) Serve(ctx context.Context, queue string, handler HandlerFunc, autoAck bool, opts ...ServeOption) error {
	cfg := serveConfig{prefetch: DefaultPrefetch}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := s.broker.DeclareQueue(ctx, queue, cfg.durable); err != nil {
		return err
	}
	sub, err := s.broker.Consume(ctx, queue, events.ConsumeOptions{
		Prefetch: cfg.prefetch,
		AutoAck:  autoAck,
		Name:     cfg.consumer,
	}, s.dispatch(queue, handler))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.logger.Info(constant.ServeStarted,
		log.String("queue", queue),
		log.Bool("durable", cfg.durable),
		log.Bool("auto_ack", autoAck),
		log.Int("prefetch", cfg.prefetch))
	return nil
}

func (s *Server) dispatch(queue string, handler HandlerFunc) events.Handler {
	return func(ctx context.Context, d events.Delivery) {
		m := d.Message()
		req := newRequest(m)

		result, err := invoke(ctx, req, handler)
		if err == nil {
			var data []byte
			if data, err = encodePayload(result); err == nil {
				s.reply(ctx, m, Reply{Data: data})
				_ = d.Ack()
				s.metrics.ObserveServed(queue, outcomeOK)
				return
			}
		}
		s.fail(ctx, d, err)
	}
}

// fail settles a delivery whose handler returned err.
func (s *Server) fail(ctx context.Context, d events.Delivery, err error) {
	m := d.Message()
	var b blame.Blame
	if !errors.As(err, &b) {
		b = blame.HandlerFailed(m.Queue, err)
	}
	fields := []types.Field{
		log.String("queue", m.Queue),
		log.String(constant.CorrelationID, m.CorrelationID),
		log.Blame(b),
	}

	switch {
	case blame.IsComponent(b, constant.ErrProtocol):
		s.logger.Warn(constant.EventRejected, fields...)
		s.reply(ctx, m, errorReply(b))
		_ = d.Reject()
		s.metrics.ObserveServed(m.Queue, outcomeRejected)
	case m.ReplyTo != "":
		s.logger.Debug(constant.ProcessingFailed, fields...)
		s.reply(ctx, m, errorReply(b))
		_ = d.Ack()
		s.metrics.ObserveServed(m.Queue, outcomeError)
	case retryable(b):
		s.logger.Warn(constant.EventRequeued, fields...)
		_ = d.Requeue()
		s.metrics.ObserveServed(m.Queue, outcomeRequeued)
	default:
		s.logger.Error(constant.ProcessingFailed, fields...)
		_ = d.Reject()
		s.metrics.ObserveServed(m.Queue, outcomeRejected)
	}
}

func (s *Server) reply(ctx context.Context, m *events.Message, reply Reply) {
	if m.ReplyTo == "" {
		return
	}
	body, err := encodePayload(reply)
	if err != nil {
		s.logger.Error(constant.ReplyPublishFailed, log.String("queue", m.ReplyTo), log.Err(err))
		return
	}
	err = s.broker.Publish(ctx, &events.Message{
		Queue:         m.ReplyTo,
		CorrelationID: m.CorrelationID,
		Body:          body,
		Headers:       map[string]string{constant.HeaderContentType: constant.ContentTypeJSON},
	})
	if err != nil {
		s.logger.Error(constant.ReplyPublishFailed,
			log.String("queue", m.ReplyTo),
			log.String(constant.CorrelationID, m.CorrelationID),
			log.Err(err))
	}
}

// Close stops every consumer started by Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func invoke(ctx context.Context, req *Request, handler HandlerFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = blame.HandlerPanicked(req.Queue, fmt.Sprint(r))
		}
	}()
	return handler(ctx, req)
}

func errorReply(b blame.Blame) Reply {
	response := b.FetchErrorResponse()
	return Reply{Error: &response}
}

// retryable reports failures of infrastructure the handler depends on; a
// one-way delivery that hit one is handed back for another attempt.
func retryable(b blame.Blame) bool {
	return blame.IsComponent(b, constant.ErrStore) || blame.IsComponent(b, constant.ErrTransport)
}
