package oplog

import (
	"context"
	"encoding/json"

	"github.com/abhissng/conduit/adapters/postgres"
	"github.com/abhissng/conduit/blame"
	"github.com/jackc/pgx/v5"
)

const (
	createOperationLog = `
CREATE TABLE IF NOT EXISTS operation_log (
	sequence     BIGSERIAL PRIMARY KEY,
	record_id    TEXT        NOT NULL UNIQUE,
	operation    TEXT        NOT NULL,
	collection   TEXT        NOT NULL,
	identifier   TEXT        NOT NULL DEFAULT '',
	data         JSONB,
	occurred_at  TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ,
	attempts     INTEGER     NOT NULL DEFAULT 0,
	last_error   TEXT
)`
	createPendingIndex = `
CREATE INDEX IF NOT EXISTS operation_log_pending_idx
	ON operation_log (sequence) WHERE published_at IS NULL`

	insertRecord = `
INSERT INTO operation_log (record_id, operation, collection, identifier, data, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING sequence`

	selectPending = `
SELECT sequence, record_id, operation, collection, identifier, data, occurred_at
FROM operation_log
WHERE published_at IS NULL
ORDER BY sequence
LIMIT $1`

	markPublished = `UPDATE operation_log SET published_at = now() WHERE record_id = $1`
	markFailed    = `UPDATE operation_log SET attempts = attempts + 1, last_error = $2 WHERE record_id = $1`
)

// PostgresStore keeps the log in the operation_log table of the write
// service's own database.
type PostgresStore struct {
	db *postgres.PostgresDB
}

// NewPostgresStore returns a store over a connected database.
func NewPostgresStore(db *postgres.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// EnsureSchema creates the operation_log table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{createOperationLog, createPendingIndex} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return blame.StoreFailed("ensure_schema", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record, mutate MutationFunc) error {
	data, err := encodeJSON(rec.Data)
	if err != nil {
		return blame.MarshalFailed(err)
	}

	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if mutate != nil {
			if err := mutate(ctx, tx); err != nil {
				return err
			}
		}
		var sequence int64
		err := tx.QueryRow(ctx, insertRecord,
			rec.ID,
			rec.Operation.String(),
			rec.Collection,
			rec.Identifier,
			data,
			rec.OccurredAt,
		).Scan(&sequence)
		if err != nil {
			return blame.StoreFailed("append", err)
		}
		rec.Sequence = uint64(sequence) // #nosec G115
		return nil
	})
}

func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultRelayBatch
	}
	rows, err := s.db.Pool().Query(ctx, selectPending, limit)
	if err != nil {
		return nil, blame.StoreFailed("pending", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			rec      Record
			sequence int64
			op       string
			data     []byte
		)
		if err := rows.Scan(&sequence, &rec.ID, &op, &rec.Collection, &rec.Identifier, &data, &rec.OccurredAt); err != nil {
			return nil, blame.StoreFailed("pending", err)
		}
		kind, err := ParseKind(op)
		if err != nil {
			return nil, err
		}
		rec.Operation = kind
		rec.Sequence = uint64(sequence) // #nosec G115
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Data); err != nil {
				return nil, blame.RecordMalformed(err)
			}
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, blame.StoreFailed("pending", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id string) error {
	if _, err := s.db.Pool().Exec(ctx, markPublished, id); err != nil {
		return blame.StoreFailed("mark_published", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := s.db.Pool().Exec(ctx, markFailed, id, msg); err != nil {
		return blame.StoreFailed("mark_failed", err)
	}
	return nil
}

func encodeJSON(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}
