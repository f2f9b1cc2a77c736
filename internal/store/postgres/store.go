// Package postgres provides the Postgres-backed store implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool querier
}

// New creates a Store backed by a new connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", pipeline.ErrStoreUnavailable, err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return b, nil
}

// CreateSource inserts a source row.
func (s *Store) CreateSource(ctx context.Context, src pipeline.Source) error {
	selectors, err := marshalJSON(src.Selectors)
	if err != nil {
		return err
	}
	headers, err := marshalJSON(src.Headers)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sources (
			id, name, type, base_url, feed_url, selectors, rate_limit_ms,
			max_pages, request_timeout_ms, retry_attempts, quality_threshold,
			render_required, ml_enabled, active, schedule, headers,
			success_rate, last_run_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);
	`
	_, err = s.pool.Exec(ctx, query,
		src.ID, src.Name, string(src.Type), src.BaseURL, src.FeedURL, selectors,
		src.RateLimitDelay.Milliseconds(), src.MaxPages, src.RequestTimeout.Milliseconds(),
		src.RetryAttempts, src.QualityThreshold, src.RenderRequired, src.MLEnabled,
		src.Active, src.Schedule, headers, src.SuccessRate, src.LastRunAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

const sourceColumns = `
	id, name, type, base_url, feed_url, selectors, rate_limit_ms,
	max_pages, request_timeout_ms, retry_attempts, quality_threshold,
	render_required, ml_enabled, active, schedule, headers,
	success_rate, last_run_at`

func scanSource(row pgx.Row) (pipeline.Source, error) {
	var (
		src                       pipeline.Source
		srcType                   string
		selectors, headers        []byte
		rateLimitMs, reqTimeoutMs int64
	)
	err := row.Scan(
		&src.ID, &src.Name, &srcType, &src.BaseURL, &src.FeedURL, &selectors,
		&rateLimitMs, &src.MaxPages, &reqTimeoutMs, &src.RetryAttempts,
		&src.QualityThreshold, &src.RenderRequired, &src.MLEnabled, &src.Active,
		&src.Schedule, &headers, &src.SuccessRate, &src.LastRunAt,
	)
	if err != nil {
		return pipeline.Source{}, err
	}
	src.Type = pipeline.SourceType(srcType)
	src.RateLimitDelay = time.Duration(rateLimitMs) * time.Millisecond
	src.RequestTimeout = time.Duration(reqTimeoutMs) * time.Millisecond
	if len(selectors) > 0 {
		if err := json.Unmarshal(selectors, &src.Selectors); err != nil {
			return pipeline.Source{}, fmt.Errorf("unmarshal selectors: %w", err)
		}
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &src.Headers); err != nil {
			return pipeline.Source{}, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	return src, nil
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (pipeline.Source, error) {
	query := `SELECT` + sourceColumns + ` FROM sources WHERE id = $1;`
	src, err := scanSource(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Source{}, store.ErrNotFound
		}
		return pipeline.Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListActiveSources returns every source with the activity flag set.
func (s *Store) ListActiveSources(ctx context.Context) ([]pipeline.Source, error) {
	query := `SELECT` + sourceColumns + ` FROM sources WHERE active ORDER BY id;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return out, nil
}

// UpdateSourceMetrics updates the rolling success metrics for a source.
func (s *Store) UpdateSourceMetrics(ctx context.Context, id string, successRate float64, lastRun time.Time) error {
	query := `UPDATE sources SET success_rate = $2, last_run_at = $3 WHERE id = $1;`
	res, err := s.pool.Exec(ctx, query, id, successRate, lastRun)
	if err != nil {
		return fmt.Errorf("update source metrics: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
