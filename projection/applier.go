package projection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/oplog"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/idempotency"
)

const (
	outcomeApplied  = "applied"
	outcomeSkipped  = "skipped"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Applier folds operation records into a Store. Applying the same record
// twice, or a record older than the document, leaves the store unchanged.
type Applier struct {
	store   Store
	logger  *log.Log
	metrics *prometheus.MetricsCollector
	seen    *idempotency.IdempotencyManager[string]
	now     func() time.Time

	window   time.Duration
	capacity int

	mu sync.Mutex
}

// Option configures an Applier.
type Option func(*Applier)

func WithLogger(logger *log.Log) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(mc *prometheus.MetricsCollector) Option {
	return func(a *Applier) {
		a.metrics = mc
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIdempotencyWindow sizes the cache of recently applied record IDs.
func WithIdempotencyWindow(window time.Duration, capacity int) Option {
	return func(a *Applier) {
		a.window, a.capacity = window, capacity
	}
}

// NewApplier returns an applier writing to store.
func NewApplier(store Store, opts ...Option) *Applier {
	a := &Applier{
		store:    store,
		logger:   log.NewNopLogger(),
		now:      time.Now,
		window:   idempotency.DefaultWindow,
		capacity: idempotency.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.seen = idempotency.NewIdempotencyManager[string](a.window, a.capacity)
	return a
}

// Store returns the store the applier writes to.
func (a *Applier) Store() Store {
	return a.store
}

// Apply folds rec into the store and reports whether anything changed.
// Unknown operations and malformed records are rejected before the store
// is read.
func (a *Applier) Apply(ctx context.Context, rec *oplog.Record) (bool, error) {
	if err := validate(rec); err != nil {
		a.metrics.ObserveApply(rec.Operation.String(), outcomeRejected)
		a.logger.Warn(constant.EventRejected, log.String("record_id", rec.ID), log.Err(err))
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.ID != "" && a.seen.IsProcessed(rec.ID) {
		a.skip(rec, "duplicate")
		return false, nil
	}

	id := identifier(rec)
	doc, err := a.store.Get(ctx, rec.Collection, id)
	if err != nil {
		return false, a.failed(rec, id, err)
	}
	if doc != nil && rec.Sequence > 0 && rec.Sequence <= doc.Version {
		a.seen.MarkAsProcessed(rec.ID)
		a.skip(rec, "stale")
		return false, nil
	}
	if doc == nil {
		doc = &Document{Collection: rec.Collection, ID: id}
	}

	mutate(doc, rec)
	if rec.Sequence > doc.Version {
		doc.Version = rec.Sequence
	}
	doc.UpdatedAt = a.now().UTC()

	if err := a.store.Put(ctx, doc); err != nil {
		return false, a.failed(rec, id, err)
	}
	if rec.ID != "" {
		a.seen.MarkAsProcessed(rec.ID)
	}
	a.metrics.ObserveApply(rec.Operation.String(), outcomeApplied)
	a.logger.Debug(constant.RecordApplied,
		log.String("record_id", rec.ID),
		log.Uint64("sequence", rec.Sequence),
		log.String("operation", rec.Operation.String()),
		log.String("collection", rec.Collection),
		log.String("identifier", id))
	return true, nil
}

func (a *Applier) skip(rec *oplog.Record, reason string) {
	a.metrics.ObserveApply(rec.Operation.String(), outcomeSkipped)
	a.logger.Debug(constant.RecordSkipped,
		log.String("record_id", rec.ID),
		log.Uint64("sequence", rec.Sequence),
		log.String("reason", reason))
}

func (a *Applier) failed(rec *oplog.Record, id string, err error) error {
	a.metrics.ObserveApply(rec.Operation.String(), outcomeFailed)
	b := blame.ProjectionFailed(rec.Operation.String(), rec.Collection, id, err)
	a.logger.Error(constant.RecordApplyFailed, log.Blame(b))
	return b
}

func validate(rec *oplog.Record) error {
	switch rec.Operation {
	case oplog.KindCreate:
	case oplog.KindUpdate, oplog.KindDelete:
		if rec.Identifier == "" {
			return blame.RecordMalformed(errors.New(rec.Operation.String() + " without identifier"))
		}
	case oplog.KindRelationAdd, oplog.KindRelationRemove:
		if rec.Identifier == "" {
			return blame.RecordMalformed(errors.New(rec.Operation.String() + " without identifier"))
		}
		if name, target := rec.Relation(); name == "" || target == "" {
			return blame.RecordMalformed(errors.New("relation record needs relation and target"))
		}
	default:
		return blame.UnknownOperation(rec.Operation.String())
	}
	if rec.Collection == "" {
		return blame.RecordMalformed(errors.New("record without collection"))
	}
	return nil
}

// identifier falls back to the record ID for creates that did not name one.
func identifier(rec *oplog.Record) string {
	if rec.Identifier == "" {
		return rec.ID
	}
	return rec.Identifier
}

func mutate(doc *Document, rec *oplog.Record) {
	switch rec.Operation {
	case oplog.KindCreate:
		doc.Fields = make(map[string]any, len(rec.Data))
		for k, v := range rec.Data {
			doc.Fields[k] = v
		}
		doc.Deleted = false
	case oplog.KindUpdate:
		if doc.Fields == nil {
			doc.Fields = make(map[string]any, len(rec.Data))
		}
		for k, v := range rec.Data {
			if v == nil {
				delete(doc.Fields, k)
				continue
			}
			doc.Fields[k] = v
		}
	case oplog.KindDelete:
		doc.Fields = nil
		doc.Relations = nil
		doc.Deleted = true
	case oplog.KindRelationAdd:
		doc.link(rec.Relation())
	case oplog.KindRelationRemove:
		doc.unlink(rec.Relation())
	}
}

// Handle decodes the operation record carried by req and applies it. It
// is an rpc.HandlerFunc: decode failures are protocol errors and store
// failures are retried.
func (a *Applier) Handle(ctx context.Context, req *rpc.Request) (any, error) {
	rec, err := oplog.Unmarshal(req.Body)
	if err != nil {
		a.metrics.ObserveApply("unknown", outcomeRejected)
		return nil, err
	}
	if _, err := a.Apply(ctx, rec); err != nil {
		return nil, err
	}
	return nil, nil
}

// Bind consumes the durable replication queue through server. Deliveries
// are acknowledged only after the record is applied.
func (a *Applier) Bind(ctx context.Context, server *rpc.Server, queue string, opts ...rpc.ServeOption) error {
	opts = append([]rpc.ServeOption{rpc.WithDurableQueue()}, opts...)
	return server.Serve(ctx, queue, a.Handle, false, opts...)
}

// Close releases the idempotency cache.
func (a *Applier) Close() {
	a.seen.Close()
}
