// Package store defines the persistence interfaces for the ingest pipeline.
// Implementations exist for an in-memory store (development/tests) and
// Postgres. The pipeline assumes only keyed CRUD plus filtered list
// operations; no joins.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound is returned when a keyed lookup misses.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a compare-and-swap update observes a
	// different current state than the caller expected.
	ErrConflict = errors.New("state conflict")

	// ErrDuplicate is returned when a uniqueness constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

// ListOptions controls sorted, paginated list queries.
type ListOptions struct {
	Limit    int
	Offset   int
	Desc     bool
	StatusIn []string
}

// ListingUpdate carries the denormalized audit fields written together
// with a status transition.
type ListingUpdate struct {
	ApprovedBy  string
	ApprovedAt  *time.Time
	PublishedBy string
	PublishedAt *time.Time
	UpdatedAt   time.Time
}

// SourceStore persists job board configurations.
type SourceStore interface {
	CreateSource(ctx context.Context, src pipeline.Source) error
	GetSource(ctx context.Context, id string) (pipeline.Source, error)
	ListActiveSources(ctx context.Context) ([]pipeline.Source, error)
	UpdateSourceMetrics(ctx context.Context, id string, successRate float64, lastRun time.Time) error
}

// RunStore persists run records and their incremental counters.
type RunStore interface {
	CreateRun(ctx context.Context, run pipeline.Run) error
	GetRun(ctx context.Context, id string) (pipeline.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status pipeline.RunStatus, errText string) error
	UpdateRunCounters(ctx context.Context, id string, counters pipeline.RunCounters) error
	ListRuns(ctx context.Context, sourceID string, opts ListOptions) ([]pipeline.Run, error)
	CountRuns(ctx context.Context, status pipeline.RunStatus) (int, error)
}

// PageStore persists per-page fetch diagnostics. Pages are immutable
// after completion.
type PageStore interface {
	RecordPage(ctx context.Context, page pipeline.FetchPage) error
	ListPages(ctx context.Context, runID string) ([]pipeline.FetchPage, error)
}

// RawItemStore persists extracted fragments. InsertRawItem must enforce
// content-hash uniqueness per source and return ErrDuplicate on collision,
// so that two concurrent runs against the same source cannot both insert
// the same item.
type RawItemStore interface {
	InsertRawItem(ctx context.Context, item pipeline.RawItem) error
	GetRawItem(ctx context.Context, id string) (pipeline.RawItem, error)
	HasContentHash(ctx context.Context, sourceID, hash string) (bool, error)
	MarkRawItemProcessed(ctx context.Context, id string, errText string) error
}

// NormalizedJobStore persists normalized jobs and their publish linkage.
type NormalizedJobStore interface {
	InsertNormalizedJob(ctx context.Context, job pipeline.NormalizedJob) error
	GetNormalizedJob(ctx context.Context, id string) (pipeline.NormalizedJob, error)
	MarkPublished(ctx context.Context, id string, jobPostID string) error
	ListPendingReview(ctx context.Context, opts ListOptions) ([]pipeline.NormalizedJob, error)
}

// ListingStore persists public job listings. UpdateListingStatus is a
// compare-and-swap: it succeeds only when the listing is currently in the
// from state, and returns ErrConflict otherwise. This is what serializes
// concurrent workflow actions; last-committer-wins is unacceptable.
type ListingStore interface {
	CreateListing(ctx context.Context, listing pipeline.JobListing) error
	GetListing(ctx context.Context, id string) (pipeline.JobListing, error)
	UpdateListingStatus(ctx context.Context, id string, from, to pipeline.ListingStatus, update ListingUpdate) error
	SetListingFlag(ctx context.Context, id string, flagged bool, reason string, at time.Time) error
}

// WorkflowLogStore persists the append-only transition audit trail.
// Entries for a given job are strictly ordered by commit time.
type WorkflowLogStore interface {
	AppendWorkflowLog(ctx context.Context, entry pipeline.WorkflowLogEntry) error
	ListWorkflowLogs(ctx context.Context, jobID string) ([]pipeline.WorkflowLogEntry, error)
}

// Store aggregates every collection interface. The memory and Postgres
// implementations satisfy all of them on a single value.
type Store interface {
	SourceStore
	RunStore
	PageStore
	RawItemStore
	NormalizedJobStore
	ListingStore
	WorkflowLogStore
}
