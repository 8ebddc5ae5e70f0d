package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/abhissng/conduit/blame"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projection (
	collection TEXT    NOT NULL,
	identifier TEXT    NOT NULL,
	fields     TEXT,
	relations  TEXT,
	version    INTEGER NOT NULL,
	deleted    INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT    NOT NULL,
	PRIMARY KEY (collection, identifier)
)`

// SQLiteStore keeps documents in a SQLite table, with fields and relations
// stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dsn, e.g. a file
// path or "file::memory:?cache=shared".
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, blame.StoreFailed("open", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, blame.StoreFailed("migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT collection, identifier, fields, relations, version, deleted, updated_at
FROM projection WHERE collection = ? AND identifier = ?`, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, blame.StoreFailed("get", err)
	}
	return doc, nil
}

func (s *SQLiteStore) Put(ctx context.Context, doc *Document) error {
	fields, err := marshalNullable(doc.Fields)
	if err != nil {
		return blame.MarshalFailed(err)
	}
	relations, err := marshalNullable(doc.Relations)
	if err != nil {
		return blame.MarshalFailed(err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO projection (collection, identifier, fields, relations, version, deleted, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, identifier) DO UPDATE SET
	fields = excluded.fields,
	relations = excluded.relations,
	version = excluded.version,
	deleted = excluded.deleted,
	updated_at = excluded.updated_at`,
		doc.Collection, doc.ID, fields, relations, int64(doc.Version), doc.Deleted,
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return blame.StoreFailed("put", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT collection, identifier, fields, relations, version, deleted, updated_at
FROM projection WHERE collection = ? AND deleted = 0
ORDER BY identifier LIMIT ?`, collection, limit)
	if err != nil {
		return nil, blame.StoreFailed("list", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, blame.StoreFailed("list", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, blame.StoreFailed("list", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc               Document
		fields, relations sql.NullString
		version           int64
		updatedAt         string
	)
	if err := row.Scan(&doc.Collection, &doc.ID, &fields, &relations, &version, &doc.Deleted, &updatedAt); err != nil {
		return nil, err
	}
	if fields.Valid {
		if err := json.Unmarshal([]byte(fields.String), &doc.Fields); err != nil {
			return nil, err
		}
	}
	if relations.Valid {
		if err := json.Unmarshal([]byte(relations.String), &doc.Relations); err != nil {
			return nil, err
		}
	}
	doc.Version = uint64(version)
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, err
	}
	doc.UpdatedAt = ts
	return &doc, nil
}

func marshalNullable[T any](v map[string]T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
