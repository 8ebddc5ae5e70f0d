package events

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/utils/constant"
)

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies middlewares so that the first one listed runs first.
func Chain(handler Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// RecoveryMiddleware rejects the delivery when the handler panics.
func RecoveryMiddleware(logger *log.Log) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, d Delivery) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(constant.HandlerPanicked,
						log.String("queue", d.Message().Queue),
						log.Any("panic", r),
						log.String("stack", string(debug.Stack())))
					_ = d.Reject()
				}
			}()
			next(ctx, d)
		}
	}
}

// LogMiddleware logs every delivery at debug level together with the time
// the handler took.
func LogMiddleware(logger *log.Log) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, d Delivery) {
			m := d.Message()
			start := time.Now()
			logger.Debug(constant.EventReceived,
				log.String("queue", m.Queue),
				log.String(constant.CorrelationID, m.CorrelationID),
				log.Bool("redelivered", m.Redelivered))
			next(ctx, d)
			logger.Debug(constant.MessageProcessed,
				log.String("queue", m.Queue),
				log.String(constant.CorrelationID, m.CorrelationID),
				log.Duration("elapsed", time.Since(start)))
		}
	}
}
