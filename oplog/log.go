// Package oplog is the write side of replication. A mutation and the Record
// describing it are committed together, then the encoded Record is published
// to the durable replication queue of every read service. Records whose
// publish failed stay pending and are retried by a Relay.
package oplog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/circuitBreaker"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/random"
	"github.com/sony/gobreaker"
)

// Log records mutations and replicates them.
type Log struct {
	store   Store
	broker  events.Broker
	targets []string
	logger  *log.Log
	metrics *prometheus.MetricsCollector
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	// mu orders appends with their publishes. backlog is set while some
	// record may still be pending; it starts set because a persistent
	// store can hold records left over from a previous run.
	mu      sync.Mutex
	backlog bool
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger.
func WithLogger(logger *log.Log) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records publish outcomes.
func WithMetrics(mc *prometheus.MetricsCollector) Option {
	return func(l *Log) {
		l.metrics = mc
	}
}

// WithBreaker replaces the publish circuit breaker.
func WithBreaker(breaker *gobreaker.CircuitBreaker) Option {
	return func(l *Log) {
		if breaker != nil {
			l.breaker = breaker
		}
	}
}

// WithClock overrides time.Now for OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// NewLog returns a log replicating to targets, one durable queue per
// read service.
func NewLog(store Store, broker events.Broker, targets []string, opts ...Option) *Log {
	l := &Log{
		store:   store,
		broker:  broker,
		targets: append([]string(nil), targets...),
		logger:  log.NewNopLogger(),
		now:     time.Now,
		backlog: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.breaker == nil {
		l.breaker = circuitBreaker.NewCircuitBreaker(circuitBreaker.WithName(circuitBreaker.OplogPublishBreaker))
	}
	return l
}

// Start declares every replication queue as durable.
func (l *Log) Start(ctx context.Context) error {
	for _, target := range l.targets {
		if err := l.broker.DeclareQueue(ctx, target, true); err != nil {
			return err
		}
	}
	return nil
}

// Targets returns the replication queues.
func (l *Log) Targets() []string {
	return append([]string(nil), l.targets...)
}

// Record commits mutate together with a Record of op, then replicates it.
// An error means nothing was committed. A failed publish does not undo the
// commit: the returned record stays pending until a Relay delivers it.
// Records are published in sequence order, so while an earlier record is
// pending the new one waits behind it.
func (l *Log) Record(ctx context.Context, op Kind, collection, identifier string, data map[string]any, mutate MutationFunc) (*Record, error) {
	if !op.Valid() {
		return nil, blame.UnknownOperation(op.String())
	}
	normalized, err := normalizeData(data)
	if err != nil {
		return nil, blame.MarshalFailed(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := &Record{
		ID:         random.GenerateTimeOrderedID(),
		Operation:  op,
		Collection: collection,
		Identifier: identifier,
		Data:       normalized,
		OccurredAt: l.now().UTC(),
	}
	if err := l.store.Append(ctx, rec, mutate); err != nil {
		var b blame.Blame
		if errors.As(err, &b) && !blame.IsComponent(err, constant.ErrStore) {
			return nil, err
		}
		return nil, blame.RecordAppendFailed(op.String(), collection, err)
	}
	l.logger.Debug(constant.RecordAppended,
		log.String("record_id", rec.ID),
		log.Uint64("sequence", rec.Sequence),
		log.String("operation", op.String()),
		log.String("collection", collection),
		log.String("identifier", identifier))

	if l.backlog {
		if _, err := l.drain(ctx, DefaultRelayBatch); err != nil {
			l.logger.Warn(constant.RecordPending, log.String("record_id", rec.ID), log.Err(err))
		}
	} else if !l.replicate(ctx, rec) {
		l.backlog = true
	}
	return rec, nil
}

// drain replicates up to limit pending records in sequence order and stops
// at the first one that cannot be delivered. l.mu must be held.
func (l *Log) drain(ctx context.Context, limit int) (int, error) {
	pending, err := l.store.Pending(ctx, limit)
	if err != nil {
		l.backlog = true
		return 0, err
	}

	delivered := 0
	for _, rec := range pending {
		if !l.replicate(ctx, rec) {
			l.backlog = true
			return delivered, nil
		}
		delivered++
	}
	l.backlog = limit > 0 && len(pending) >= limit
	return delivered, nil
}

// replicate publishes rec to every target and settles it in the store.
// It reports whether the record is now published.
func (l *Log) replicate(ctx context.Context, rec *Record) bool {
	if err := l.publish(ctx, rec); err != nil {
		l.metrics.ObservePublish(outcomePending)
		l.logger.Warn(constant.RecordPending, log.String("record_id", rec.ID), log.Err(err))
		if mErr := l.store.MarkFailed(ctx, rec.ID, err); mErr != nil {
			l.logger.Error(constant.RecordPending, log.String("record_id", rec.ID), log.Err(mErr))
		}
		return false
	}
	if err := l.store.MarkPublished(ctx, rec.ID); err != nil {
		// published but still pending: the relay will send a duplicate
		l.logger.Error(constant.RecordPending, log.String("record_id", rec.ID), log.Err(err))
		return false
	}
	l.metrics.ObservePublish(outcomePublished)
	l.logger.Debug(constant.RecordReplicated, log.String("record_id", rec.ID), log.Strings("queues", l.targets))
	return true
}

func (l *Log) publish(ctx context.Context, rec *Record) error {
	body, err := Marshal(rec)
	if err != nil {
		return err
	}
	for _, target := range l.targets {
		msg := &events.Message{
			Queue:     target,
			MessageID: rec.ID,
			Headers:   map[string]string{constant.HeaderContentType: constant.ContentTypeOpRecord},
			Body:      body,
		}
		_, err := l.breaker.Execute(func() (any, error) {
			return nil, l.broker.Publish(ctx, msg)
		})
		if err != nil {
			return blame.ReplicationFailed(rec.ID, target, err)
		}
	}
	return nil
}

const (
	outcomePublished = "published"
	outcomePending   = "pending"
)
