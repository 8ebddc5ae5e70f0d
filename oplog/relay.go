package oplog

import (
	"context"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/utils/constant"
)

const (
	DefaultRelayInterval = 5 * time.Second
	DefaultRelayBatch    = 100
)

// Relay republishes records whose replication failed after commit.
type Relay struct {
	log      *Log
	interval time.Duration
	batch    int
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithInterval sets how often pending records are drained.
func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatch bounds the records handled per drain.
func WithBatch(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// NewRelay returns a relay for l.
func NewRelay(l *Log, opts ...RelayOption) *Relay {
	r := &Relay{log: l, interval: DefaultRelayInterval, batch: DefaultRelayBatch}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains pending records every interval until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil {
			r.log.logger.Warn(constant.RelayDrained, log.Err(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain publishes one batch of pending records in sequence order and returns
// how many were delivered. It stops at the first failure so that later
// records do not overtake earlier ones.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()

	delivered, err := r.log.drain(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if delivered > 0 {
		r.log.logger.Info(constant.RelayDrained, log.Int("delivered", delivered))
	}
	return delivered, nil
}
