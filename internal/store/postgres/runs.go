package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// CreateRun inserts a run row with its source snapshot.
func (s *Store) CreateRun(ctx context.Context, run pipeline.Run) error {
	counters, err := marshalJSON(run.Counters)
	if err != nil {
		return err
	}
	snapshot, err := marshalJSON(run.SourceSnapshot)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO runs (
			id, source_id, mode, status, priority, started_at, finished_at,
			submitted_at, counters, error_text, source_snapshot
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);
	`
	_, err = s.pool.Exec(ctx, query,
		run.ID, run.SourceID, string(run.Mode), string(run.Status), run.Priority,
		run.Started, run.Finished, run.Submitted, counters, run.ErrorText, snapshot,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `
	id, source_id, mode, status, priority, started_at, finished_at,
	submitted_at, counters, error_text, source_snapshot`

func scanRun(row pgx.Row) (pipeline.Run, error) {
	var (
		run                pipeline.Run
		mode, status       string
		counters, snapshot []byte
	)
	err := row.Scan(
		&run.ID, &run.SourceID, &mode, &status, &run.Priority,
		&run.Started, &run.Finished, &run.Submitted, &counters,
		&run.ErrorText, &snapshot,
	)
	if err != nil {
		return pipeline.Run{}, err
	}
	run.Mode = pipeline.RunMode(mode)
	run.Status = pipeline.RunStatus(status)
	if len(counters) > 0 {
		if err := json.Unmarshal(counters, &run.Counters); err != nil {
			return pipeline.Run{}, fmt.Errorf("unmarshal counters: %w", err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &run.SourceSnapshot); err != nil {
			return pipeline.Run{}, fmt.Errorf("unmarshal source snapshot: %w", err)
		}
	}
	return run, nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (pipeline.Run, error) {
	query := `SELECT` + runColumns + ` FROM runs WHERE id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Run{}, store.ErrNotFound
		}
		return pipeline.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus moves a run to a new status, stamping start/finish
// times. The guard on the current status keeps terminal runs closed: the
// update affects zero rows and the caller sees ErrConflict.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, status pipeline.RunStatus, errText string) error {
	query := `
		UPDATE runs SET
			status = $2,
			error_text = $3,
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			finished_at = CASE WHEN $2 IN ('completed','failed','cancelled') THEN now() ELSE finished_at END
		WHERE id = $1 AND status NOT IN ('completed','failed','cancelled');
	`
	res, err := s.pool.Exec(ctx, query, id, string(status), errText)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, getErr := s.GetRun(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrConflict
	}
	return nil
}

// UpdateRunCounters replaces the aggregate counters for a run.
func (s *Store) UpdateRunCounters(ctx context.Context, id string, counters pipeline.RunCounters) error {
	payload, err := marshalJSON(counters)
	if err != nil {
		return err
	}
	res, err := s.pool.Exec(ctx, `UPDATE runs SET counters = $2 WHERE id = $1;`, id, payload)
	if err != nil {
		return fmt.Errorf("update run counters: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRuns returns runs for a source, newest first when Desc is set.
func (s *Store) ListRuns(ctx context.Context, sourceID string, opts store.ListOptions) ([]pipeline.Run, error) {
	order := "ASC"
	if opts.Desc {
		order = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT` + runColumns + `
		FROM runs
		WHERE ($1 = '' OR source_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY submitted_at ` + order + `
		LIMIT $3 OFFSET $4;`
	statuses := opts.StatusIn
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := s.pool.Query(ctx, query, sourceID, statuses, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// CountRuns counts runs in the given status.
func (s *Store) CountRuns(ctx context.Context, status pipeline.RunStatus) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM runs WHERE status = $1;`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}

// RecordPage inserts a page diagnostic row for a run.
func (s *Store) RecordPage(ctx context.Context, page pipeline.FetchPage) error {
	query := `
		INSERT INTO fetch_pages (
			id, run_id, type, url, page_number, status_code, bytes,
			duration_ms, item_count, snapshot_uri, error_text, fetched_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);
	`
	_, err := s.pool.Exec(ctx, query,
		page.ID, page.RunID, page.Type, page.URL, page.PageNumber,
		page.StatusCode, page.Bytes, page.Duration.Milliseconds(),
		page.ItemCount, page.SnapshotURI, page.ErrorText, page.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch page: %w", err)
	}
	return nil
}

// ListPages returns all recorded pages for a run in page order.
func (s *Store) ListPages(ctx context.Context, runID string) ([]pipeline.FetchPage, error) {
	query := `
		SELECT id, run_id, type, url, page_number, status_code, bytes,
		       duration_ms, item_count, snapshot_uri, error_text, fetched_at
		FROM fetch_pages
		WHERE run_id = $1
		ORDER BY page_number;
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []pipeline.FetchPage
	for rows.Next() {
		var (
			page       pipeline.FetchPage
			durationMs int64
		)
		err := rows.Scan(
			&page.ID, &page.RunID, &page.Type, &page.URL, &page.PageNumber,
			&page.StatusCode, &page.Bytes, &durationMs, &page.ItemCount,
			&page.SnapshotURI, &page.ErrorText, &page.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fetch page: %w", err)
		}
		page.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return out, nil
}
