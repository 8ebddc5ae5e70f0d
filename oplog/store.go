package oplog

import (
	"context"

	"github.com/abhissng/conduit/adapters/postgres"
)

// MutationFunc applies the domain mutation a record describes. It runs in the
// same unit of work as the append; tx is the open transaction for SQL backed
// stores and nil for the memory store.
type MutationFunc func(ctx context.Context, tx postgres.DBTX) error

// Store persists records next to the authoritative data and remembers
// which of them still have to be replicated.
type Store interface {
	// Append runs mutate and stores rec atomically, assigning rec.Sequence.
	// Nothing is stored when mutate fails.
	Append(ctx context.Context, rec *Record, mutate MutationFunc) error
	// Pending returns unpublished records in sequence order.
	Pending(ctx context.Context, limit int) ([]*Record, error)
	MarkPublished(ctx context.Context, id string) error
	// MarkFailed counts a failed replication attempt.
	MarkFailed(ctx context.Context, id string, cause error) error
}
