// Package postgres provides Postgres-backed extraction history persistence.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagescope/readability-server/internal/readability"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for history rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querierCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store writes extraction records into Postgres.
type Store struct {
	pool  querierCloser
	table string
}

// New creates a Postgres-backed history store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "extractions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		pool:  pool,
		table: table,
	}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool querierCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "extractions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordExtraction inserts one extraction attempt row.
func (s *Store) RecordExtraction(ctx context.Context, record readability.ExtractionRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	url,
	host,
	content_hash,
	outcome,
	duration_ms,
	error_text,
	archive_uri,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		record.ID,
		record.URL,
		record.Host,
		record.ContentHash,
		string(record.Outcome),
		record.DurationMs,
		record.ErrorText,
		record.ArchiveURI,
		record.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

// HostSummaries aggregates per-host outcome counts since the given time.
func (s *Store) HostSummaries(ctx context.Context, since time.Time) ([]readability.HostSummary, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	query := fmt.Sprintf(`
SELECT
	host,
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE outcome = 'readable') AS readable,
	COUNT(*) FILTER (WHERE outcome = 'unreadable') AS unreadable,
	COUNT(*) FILTER (WHERE outcome = 'timed_out') AS timed_out,
	COUNT(*) FILTER (WHERE outcome = 'failed') AS failed
FROM %s
WHERE created_at >= $1
GROUP BY host
ORDER BY host`, s.table)

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query host summaries: %w", err)
	}
	defer rows.Close()

	var summaries []readability.HostSummary
	for rows.Next() {
		var summary readability.HostSummary
		err := rows.Scan(
			&summary.Host,
			&summary.Total,
			&summary.Readable,
			&summary.Unreadable,
			&summary.TimedOut,
			&summary.Failed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan host summary row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate host summary rows: %w", err)
	}
	return summaries, nil
}
