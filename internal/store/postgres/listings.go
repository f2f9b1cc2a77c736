package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// CreateListing inserts a public job listing row.
func (s *Store) CreateListing(ctx context.Context, listing pipeline.JobListing) error {
	query := `
		INSERT INTO job_listings (
			id, source_id, normalized_job_id, title, company, location,
			description, url, status, featured, urgent, flagged, flag_reason,
			approved_by, approved_at, published_by, published_at,
			view_count, application_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21);
	`
	_, err := s.pool.Exec(ctx, query,
		listing.ID, listing.SourceID, listing.NormalizedJobID, listing.Title,
		listing.Company, listing.Location, listing.Description, listing.URL,
		string(listing.Status), listing.Featured, listing.Urgent, listing.Flagged,
		listing.FlagReason, listing.ApprovedBy, listing.ApprovedAt,
		listing.PublishedBy, listing.PublishedAt, listing.ViewCount,
		listing.ApplicationCount, listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetListing fetches a listing by ID.
func (s *Store) GetListing(ctx context.Context, id string) (pipeline.JobListing, error) {
	query := `
		SELECT id, source_id, normalized_job_id, title, company, location,
		       description, url, status, featured, urgent, flagged, flag_reason,
		       approved_by, approved_at, published_by, published_at,
		       view_count, application_count, created_at, updated_at
		FROM job_listings WHERE id = $1;
	`
	var (
		listing pipeline.JobListing
		status  string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&listing.ID, &listing.SourceID, &listing.NormalizedJobID, &listing.Title,
		&listing.Company, &listing.Location, &listing.Description, &listing.URL,
		&status, &listing.Featured, &listing.Urgent, &listing.Flagged,
		&listing.FlagReason, &listing.ApprovedBy, &listing.ApprovedAt,
		&listing.PublishedBy, &listing.PublishedAt, &listing.ViewCount,
		&listing.ApplicationCount, &listing.CreatedAt, &listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.JobListing{}, store.ErrNotFound
		}
		return pipeline.JobListing{}, fmt.Errorf("get listing: %w", err)
	}
	listing.Status = pipeline.ListingStatus(status)
	return listing, nil
}

// UpdateListingStatus performs the compare-and-swap status update: the
// WHERE clause pins the expected current status, so the second of two
// racing writers affects zero rows and gets ErrConflict.
func (s *Store) UpdateListingStatus(
	ctx context.Context,
	id string,
	from, to pipeline.ListingStatus,
	update store.ListingUpdate,
) error {
	query := `
		UPDATE job_listings SET
			status = $3,
			approved_by = CASE WHEN $4 <> '' THEN $4 ELSE approved_by END,
			approved_at = CASE WHEN $4 <> '' THEN $5 ELSE approved_at END,
			published_by = CASE WHEN $6 <> '' THEN $6 ELSE published_by END,
			published_at = CASE WHEN $6 <> '' THEN $7 ELSE published_at END,
			updated_at = $8
		WHERE id = $1 AND status = $2;
	`
	res, err := s.pool.Exec(ctx, query,
		id, string(from), string(to),
		update.ApprovedBy, update.ApprovedAt,
		update.PublishedBy, update.PublishedAt,
		update.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, getErr := s.GetListing(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrConflict
	}
	return nil
}

// SetListingFlag sets flag metadata without touching the status.
func (s *Store) SetListingFlag(ctx context.Context, id string, flagged bool, reason string, at time.Time) error {
	res, err := s.pool.Exec(ctx,
		`UPDATE job_listings SET flagged = $2, flag_reason = $3, updated_at = $4 WHERE id = $1;`,
		id, flagged, reason, at,
	)
	if err != nil {
		return fmt.Errorf("set listing flag: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendWorkflowLog appends one audit entry. The bigserial seq column
// preserves commit order for reads.
func (s *Store) AppendWorkflowLog(ctx context.Context, entry pipeline.WorkflowLogEntry) error {
	query := `
		INSERT INTO workflow_logs (
			id, job_id, action, from_status, to_status, actor, reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
	`
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.JobID, entry.Action, string(entry.FromStatus),
		string(entry.ToStatus), entry.Actor, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow log: %w", err)
	}
	return nil
}

// ListWorkflowLogs returns the ordered audit trail for a job.
func (s *Store) ListWorkflowLogs(ctx context.Context, jobID string) ([]pipeline.WorkflowLogEntry, error) {
	query := `
		SELECT id, job_id, action, from_status, to_status, actor, reason, created_at
		FROM workflow_logs
		WHERE job_id = $1
		ORDER BY seq;
	`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.WorkflowLogEntry
	for rows.Next() {
		var (
			entry    pipeline.WorkflowLogEntry
			from, to string
		)
		err := rows.Scan(
			&entry.ID, &entry.JobID, &entry.Action, &from, &to,
			&entry.Actor, &entry.Reason, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan workflow log: %w", err)
		}
		entry.FromStatus = pipeline.ListingStatus(from)
		entry.ToStatus = pipeline.ListingStatus(to)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	return out, nil
}
