package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// InsertRawItem inserts an extracted fragment. The unique index on
// (source_id, content_hash) is what makes dedup safe across concurrent
// runs; a collision surfaces as ErrDuplicate.
func (s *Store) InsertRawItem(ctx context.Context, item pipeline.RawItem) error {
	query := `
		INSERT INTO raw_items (
			id, source_id, run_id, title, company, location, description,
			url, salary_text, job_type_text, posted_text, raw_payload,
			content_hash, is_processed, is_duplicate, error_text, extracted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);
	`
	_, err := s.pool.Exec(ctx, query,
		item.ID, item.SourceID, item.RunID, item.Title, item.Company,
		item.Location, item.Description, item.URL, item.SalaryText,
		item.JobTypeText, item.PostedText, item.RawPayload, item.ContentHash,
		item.IsProcessed, item.IsDuplicate, item.ErrorText, item.ExtractedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert raw item: %w", err)
	}
	return nil
}

// GetRawItem fetches a raw item by ID.
func (s *Store) GetRawItem(ctx context.Context, id string) (pipeline.RawItem, error) {
	query := `
		SELECT id, source_id, run_id, title, company, location, description,
		       url, salary_text, job_type_text, posted_text, raw_payload,
		       content_hash, is_processed, is_duplicate, error_text, extracted_at
		FROM raw_items WHERE id = $1;
	`
	var item pipeline.RawItem
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.SourceID, &item.RunID, &item.Title, &item.Company,
		&item.Location, &item.Description, &item.URL, &item.SalaryText,
		&item.JobTypeText, &item.PostedText, &item.RawPayload, &item.ContentHash,
		&item.IsProcessed, &item.IsDuplicate, &item.ErrorText, &item.ExtractedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.RawItem{}, store.ErrNotFound
		}
		return pipeline.RawItem{}, fmt.Errorf("get raw item: %w", err)
	}
	return item, nil
}

// HasContentHash reports whether the source has already produced this hash.
func (s *Store) HasContentHash(ctx context.Context, sourceID, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM raw_items WHERE source_id = $1 AND content_hash = $2);`
	if err := s.pool.QueryRow(ctx, query, sourceID, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return exists, nil
}

// MarkRawItemProcessed flips the processed flag and records any error.
func (s *Store) MarkRawItemProcessed(ctx context.Context, id string, errText string) error {
	res, err := s.pool.Exec(ctx,
		`UPDATE raw_items SET is_processed = true, error_text = $2 WHERE id = $1;`,
		id, errText,
	)
	if err != nil {
		return fmt.Errorf("mark raw item processed: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// InsertNormalizedJob inserts a normalized job row.
func (s *Store) InsertNormalizedJob(ctx context.Context, job pipeline.NormalizedJob) error {
	skills, err := marshalJSON(job.Skills)
	if err != nil {
		return err
	}
	benefits, err := marshalJSON(job.Benefits)
	if err != nil {
		return err
	}
	requirements, err := marshalJSON(job.Requirements)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO normalized_jobs (
			id, raw_item_id, source_id, title, company, location, description,
			url, remote, salary_min, salary_max, salary_currency, salary_period,
			job_type, experience_level, skills, benefits, requirements,
			posted_at, quality_score, normalization_method, is_published,
			job_post_id, normalized_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24);
	`
	_, err = s.pool.Exec(ctx, query,
		job.ID, job.RawItemID, job.SourceID, job.Title, job.Company,
		job.Location, job.Description, job.URL, job.Remote, job.SalaryMin,
		job.SalaryMax, job.SalaryCurrency, job.SalaryPeriod, string(job.JobType),
		string(job.Experience), skills, benefits, requirements, job.PostedAt,
		job.QualityScore, string(job.Method), job.IsPublished, job.JobPostID,
		job.NormalizedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert normalized job: %w", err)
	}
	return nil
}

const normalizedColumns = `
	id, raw_item_id, source_id, title, company, location, description,
	url, remote, salary_min, salary_max, salary_currency, salary_period,
	job_type, experience_level, skills, benefits, requirements,
	posted_at, quality_score, normalization_method, is_published,
	job_post_id, normalized_at`

func scanNormalizedJob(row pgx.Row) (pipeline.NormalizedJob, error) {
	var (
		job                            pipeline.NormalizedJob
		jobType, experience, method    string
		skills, benefits, requirements []byte
	)
	err := row.Scan(
		&job.ID, &job.RawItemID, &job.SourceID, &job.Title, &job.Company,
		&job.Location, &job.Description, &job.URL, &job.Remote, &job.SalaryMin,
		&job.SalaryMax, &job.SalaryCurrency, &job.SalaryPeriod, &jobType,
		&experience, &skills, &benefits, &requirements, &job.PostedAt,
		&job.QualityScore, &method, &job.IsPublished, &job.JobPostID,
		&job.NormalizedAt,
	)
	if err != nil {
		return pipeline.NormalizedJob{}, err
	}
	job.JobType = pipeline.JobType(jobType)
	job.Experience = pipeline.ExperienceLevel(experience)
	job.Method = pipeline.NormalizationMethod(method)
	if err := unmarshalList(skills, &job.Skills); err != nil {
		return pipeline.NormalizedJob{}, err
	}
	if err := unmarshalList(benefits, &job.Benefits); err != nil {
		return pipeline.NormalizedJob{}, err
	}
	if err := unmarshalList(requirements, &job.Requirements); err != nil {
		return pipeline.NormalizedJob{}, err
	}
	return job, nil
}

func unmarshalList(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal list column: %w", err)
	}
	return nil
}

// GetNormalizedJob fetches a normalized job by ID.
func (s *Store) GetNormalizedJob(ctx context.Context, id string) (pipeline.NormalizedJob, error) {
	query := `SELECT` + normalizedColumns + ` FROM normalized_jobs WHERE id = $1;`
	job, err := scanNormalizedJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.NormalizedJob{}, store.ErrNotFound
		}
		return pipeline.NormalizedJob{}, fmt.Errorf("get normalized job: %w", err)
	}
	return job, nil
}

// MarkPublished links a normalized job to its listing. The is_published
// guard makes publication exactly-once; a second publish attempt affects
// zero rows and returns ErrConflict.
func (s *Store) MarkPublished(ctx context.Context, id string, jobPostID string) error {
	res, err := s.pool.Exec(ctx,
		`UPDATE normalized_jobs SET is_published = true, job_post_id = $2 WHERE id = $1 AND NOT is_published;`,
		id, jobPostID,
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, getErr := s.GetNormalizedJob(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrConflict
	}
	return nil
}

// ListPendingReview returns unpublished normalized jobs, oldest first.
func (s *Store) ListPendingReview(ctx context.Context, opts store.ListOptions) ([]pipeline.NormalizedJob, error) {
	order := "ASC"
	if opts.Desc {
		order = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT` + normalizedColumns + `
		FROM normalized_jobs
		WHERE NOT is_published
		ORDER BY normalized_at ` + order + `
		LIMIT $1 OFFSET $2;`
	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	defer rows.Close()

	var out []pipeline.NormalizedJob
	for rows.Next() {
		job, err := scanNormalizedJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan normalized job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	return out, nil
}
