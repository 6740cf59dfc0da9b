// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/realtime-news-scraper/internal/pipeline"
)

const defaultTable = "articles"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ArticleStore writes article rows into Postgres.
type ArticleStore struct {
	pool  execCloser
	table string
	query string
}

// NewArticleStore creates a Postgres-backed ArticleStore using the provided config.
func NewArticleStore(ctx context.Context, cfg Config) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := resolveTable(cfg.Table)
	if err != nil {
		return nil, err
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
	return newArticleStore(pool, table), nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool execCloser, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return newArticleStore(pool, table), nil
}

func newArticleStore(pool execCloser, table string) *ArticleStore {
	return &ArticleStore{
		pool:  pool,
		table: table,
		query: fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	site,
	source_url,
	title,
	body,
	ok,
	error_kind,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (run_id, source_url) DO UPDATE
SET title = EXCLUDED.title,
	body = EXCLUDED.body,
	ok = EXCLUDED.ok,
	error_kind = EXCLUDED.error_kind,
	finished_at = EXCLUDED.finished_at`, table),
	}
}

func resolveTable(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreArticles upserts one row per record of the batch.
func (s *ArticleStore) StoreArticles(ctx context.Context, batch pipeline.Batch) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("article store is not configured")
	}
	if batch.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	for _, rec := range batch.Records {
		args := []any{
			batch.RunID,
			batch.Site,
			rec.SourceURL,
			rec.Title,
			rec.Text,
			rec.OK,
			rec.ErrorKind,
			batch.FinishedAt,
		}
		if _, err := s.pool.Exec(ctx, s.query, args...); err != nil {
			return fmt.Errorf("insert article %s: %w", rec.SourceURL, err)
		}
	}
	return nil
}
