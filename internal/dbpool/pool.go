// Package dbpool owns the PostgreSQL connection pool for chronicled.
package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing. Query connections serve the request path (entity mutations,
// audit reads, snapshot operations) plus the queue workers; one extra
// connection is reserved for the LISTEN/NOTIFY bridge, which holds its
// connection for the lifetime of the process.
const (
	queryConns  = 20
	bridgeConns = 1

	minIdleConns    = 2
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
	healthInterval  = 30 * time.Second

	// Server-side cap so a runaway query cannot hold a claim open past the
	// stale-claim timeout.
	statementTimeoutMS = "30000"
)

// Pool wraps pgxpool.Pool behind a narrow interface. The inner pool stays
// unexported so stores go through the Base query helpers rather than
// reaching into pgxpool directly.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool opens a connection pool against databaseURL and verifies it with a
// ping before returning.
func NewPool(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	cfg.ConnConfig.RuntimeParams["statement_timeout"] = statementTimeoutMS
	cfg.MaxConns = queryConns + bridgeConns
	cfg.MinConns = minIdleConns
	cfg.MaxConnLifetime = connMaxLifetime
	cfg.MaxConnIdleTime = connMaxIdleTime
	cfg.HealthCheckPeriod = healthInterval

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// Acquire checks out a dedicated connection. The notify bridge uses this to
// hold a connection for LISTEN.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return p.pool.Acquire(ctx)
}

// Exec runs a statement that returns no rows.
func (p *Pool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, arguments...)
}

// Query runs a statement that returns rows.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// QueryRow runs a statement that returns at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// BeginTx starts a transaction with explicit options.
func (p *Pool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) { //nolint:gocritic // matching pgxpool.Pool signature.
	return p.pool.BeginTx(ctx, txOptions)
}

// Ping checks that the pool can reach the database.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// HealthCheck round-trips a trivial query. Unlike Ping it exercises the full
// query path, so the readiness probe catches a database that accepts
// connections but cannot execute.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}

	return nil
}

// ConnString returns the connection string the pool was built from. The
// migration runner needs it to open its own database/sql connection for
// goose.
func (p *Pool) ConnString() string {
	return p.pool.Config().ConnString()
}

// Close shuts the pool down, waiting for checked-out connections.
func (p *Pool) Close() {
	p.pool.Close()
}
