// Package postgres wraps a pgx connection pool for the write-side store.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by the pool, a connection and a transaction alike.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDB owns a pgx pool.
type PostgresDB struct {
	mu        sync.Mutex
	pool      *pgxpool.Pool
	options   *Options
	connected bool
}

// NewPostgresDB returns an unconnected adapter.
func NewPostgresDB(opts ...Option) *PostgresDB {
	return &PostgresDB{options: NewOptions(opts...)}
}

// Connect creates the pool and pings the server. Calling it again is a no-op.
func (p *PostgresDB) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	cfg, err := pgxpool.ParseConfig(p.options.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}
	cfg.MaxConns = int32(p.options.maxConns) // #nosec G115
	cfg.MinConns = int32(p.options.minConns) // #nosec G115
	if d := p.options.maxConnIdleTime; d > 0 {
		cfg.MaxConnIdleTime = d
	}
	if d := p.options.maxConnLifetime; d > 0 {
		cfg.MaxConnLifetime = d
	}
	if d := p.options.healthCheckPeriod; d > 0 {
		cfg.HealthCheckPeriod = d
	}
	if p.options.IsDebugMode() {
		cfg.ConnConfig.Tracer = &queryLogger{logger: p.options.GetLogger()}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	p.pool = pool
	p.connected = true
	p.options.GetLogger().Info(constant.DatabaseConnected, log.Int("max_conns", p.options.maxConns))
	return nil
}

// Pool returns the underlying pool; nil before Connect.
func (p *PostgresDB) Pool() *pgxpool.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool
}

// Ping checks the pool.
func (p *PostgresDB) Ping(ctx context.Context) error {
	pool := p.Pool()
	if pool == nil {
		return fmt.Errorf("postgres: not connected")
	}
	return pool.Ping(ctx)
}

// WithTransaction runs fn inside a transaction that is committed when fn
// returns nil and rolled back otherwise.
func (p *PostgresDB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	pool := p.Pool()
	if pool == nil {
		return fmt.Errorf("postgres: not connected")
	}
	return pgx.BeginFunc(ctx, pool, fn)
}

// Close closes the pool.
func (p *PostgresDB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	p.connected = false
	return nil
}

type queryStartKey struct{}

// queryLogger is a pgx.QueryTracer logging statements at debug level.
type queryLogger struct {
	logger *log.Log
}

func (q *queryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	q.logger.Debug(constant.QueryStarted, log.String("query", data.SQL), log.Any("args", data.Args))
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (q *queryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	elapsed := time.Duration(0)
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	if data.Err != nil {
		q.logger.Warn(constant.QueryFailed, log.Duration("elapsed", elapsed), log.Err(data.Err))
		return
	}
	q.logger.Debug(constant.QueryFinished, log.String("tag", data.CommandTag.String()), log.Duration("elapsed", elapsed))
}
