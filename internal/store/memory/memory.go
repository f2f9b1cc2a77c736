// Package memory provides an in-memory store implementation for
// development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// Store keeps every collection in maps guarded by a single mutex. Good
// enough for tests and local runs; the Postgres store is the production path.
type Store struct {
	mu         sync.RWMutex
	sources    map[string]pipeline.Source
	runs       map[string]pipeline.Run
	pages      map[string][]pipeline.FetchPage
	rawItems   map[string]pipeline.RawItem
	hashIndex  map[string]string // sourceID+"\x00"+hash -> raw item ID
	normalized map[string]pipeline.NormalizedJob
	listings   map[string]pipeline.JobListing
	logs       map[string][]pipeline.WorkflowLogEntry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		sources:    make(map[string]pipeline.Source),
		runs:       make(map[string]pipeline.Run),
		pages:      make(map[string][]pipeline.FetchPage),
		rawItems:   make(map[string]pipeline.RawItem),
		hashIndex:  make(map[string]string),
		normalized: make(map[string]pipeline.NormalizedJob),
		listings:   make(map[string]pipeline.JobListing),
		logs:       make(map[string][]pipeline.WorkflowLogEntry),
	}
}

func hashKey(sourceID, hash string) string {
	return sourceID + "\x00" + hash
}

// CreateSource stores a new source configuration.
func (s *Store) CreateSource(_ context.Context, src pipeline.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[src.ID]; exists {
		return store.ErrDuplicate
	}
	s.sources[src.ID] = src
	return nil
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(_ context.Context, id string) (pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return pipeline.Source{}, store.ErrNotFound
	}
	return src, nil
}

// ListActiveSources returns every source with the activity flag set.
func (s *Store) ListActiveSources(_ context.Context) ([]pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Source
	for _, src := range s.sources {
		if src.Active {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateSourceMetrics updates the rolling success metrics for a source.
func (s *Store) UpdateSourceMetrics(_ context.Context, id string, successRate float64, lastRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	src.SuccessRate = successRate
	src.LastRunAt = &lastRun
	s.sources[id] = src
	return nil
}

// CreateRun stores a new run in pending status.
func (s *Store) CreateRun(_ context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return store.ErrDuplicate
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(_ context.Context, id string) (pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return pipeline.Run{}, store.ErrNotFound
	}
	return run, nil
}

// UpdateRunStatus moves a run to a new status, stamping start/finish times.
// Terminal runs are never reopened.
func (s *Store) UpdateRunStatus(_ context.Context, id string, status pipeline.RunStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status.IsTerminal() {
		return store.ErrConflict
	}
	run.Status = status
	run.ErrorText = errText
	now := time.Now().UTC()
	if status == pipeline.RunStatusRunning && run.Started == nil {
		run.Started = &now
	}
	if status.IsTerminal() {
		run.Finished = &now
	}
	s.runs[id] = run
	return nil
}

// UpdateRunCounters replaces the aggregate counters for a run.
func (s *Store) UpdateRunCounters(_ context.Context, id string, counters pipeline.RunCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Counters = counters
	s.runs[id] = run
	return nil
}

// ListRuns returns runs for a source, newest first when Desc is set.
func (s *Store) ListRuns(_ context.Context, sourceID string, opts store.ListOptions) ([]pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Run
	for _, run := range s.runs {
		if sourceID != "" && run.SourceID != sourceID {
			continue
		}
		if len(opts.StatusIn) > 0 && !statusMatches(string(run.Status), opts.StatusIn) {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Desc {
			return out[i].Submitted.After(out[j].Submitted)
		}
		return out[i].Submitted.Before(out[j].Submitted)
	})
	return paginate(out, opts), nil
}

// CountRuns counts runs in the given status.
func (s *Store) CountRuns(_ context.Context, status pipeline.RunStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, run := range s.runs {
		if run.Status == status {
			count++
		}
	}
	return count, nil
}

// RecordPage appends a page diagnostic row for a run.
func (s *Store) RecordPage(_ context.Context, page pipeline.FetchPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.RunID] = append(s.pages[page.RunID], page)
	return nil
}

// ListPages returns all recorded pages for a run.
func (s *Store) ListPages(_ context.Context, runID string) ([]pipeline.FetchPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.pages[runID]
	out := make([]pipeline.FetchPage, len(pages))
	copy(out, pages)
	return out, nil
}

// InsertRawItem stores a raw item, enforcing content-hash uniqueness per
// source. The check and the insert happen under one lock so concurrent runs
// cannot both slip past the uniqueness check.
func (s *Store) InsertRawItem(_ context.Context, item pipeline.RawItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hashKey(item.SourceID, item.ContentHash)
	if _, exists := s.hashIndex[key]; exists {
		return store.ErrDuplicate
	}
	if _, exists := s.rawItems[item.ID]; exists {
		return store.ErrDuplicate
	}
	s.rawItems[item.ID] = item
	s.hashIndex[key] = item.ID
	return nil
}

// GetRawItem fetches a raw item by ID.
func (s *Store) GetRawItem(_ context.Context, id string) (pipeline.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.rawItems[id]
	if !ok {
		return pipeline.RawItem{}, store.ErrNotFound
	}
	return item, nil
}

// HasContentHash reports whether the source has already produced this hash.
func (s *Store) HasContentHash(_ context.Context, sourceID, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashIndex[hashKey(sourceID, hash)]
	return ok, nil
}

// MarkRawItemProcessed flips the processed flag, keeping the item itself
// immutable otherwise.
func (s *Store) MarkRawItemProcessed(_ context.Context, id string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rawItems[id]
	if !ok {
		return store.ErrNotFound
	}
	item.IsProcessed = true
	item.ErrorText = errText
	s.rawItems[id] = item
	return nil
}

// InsertNormalizedJob stores a normalized job.
func (s *Store) InsertNormalizedJob(_ context.Context, job pipeline.NormalizedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.normalized[job.ID]; exists {
		return store.ErrDuplicate
	}
	s.normalized[job.ID] = job
	return nil
}

// GetNormalizedJob fetches a normalized job by ID.
func (s *Store) GetNormalizedJob(_ context.Context, id string) (pipeline.NormalizedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.normalized[id]
	if !ok {
		return pipeline.NormalizedJob{}, store.ErrNotFound
	}
	return job, nil
}

// MarkPublished links a normalized job to its listing. Publishing is
// one-way: a published job is never unpublished here.
func (s *Store) MarkPublished(_ context.Context, id string, jobPostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.normalized[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.IsPublished {
		return store.ErrConflict
	}
	job.IsPublished = true
	job.JobPostID = jobPostID
	s.normalized[id] = job
	return nil
}

// ListPendingReview returns unpublished normalized jobs, oldest first.
func (s *Store) ListPendingReview(_ context.Context, opts store.ListOptions) ([]pipeline.NormalizedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.NormalizedJob
	for _, job := range s.normalized {
		if !job.IsPublished {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Desc {
			return out[i].NormalizedAt.After(out[j].NormalizedAt)
		}
		return out[i].NormalizedAt.Before(out[j].NormalizedAt)
	})
	return paginate(out, opts), nil
}

// CreateListing stores a new public job listing.
func (s *Store) CreateListing(_ context.Context, listing pipeline.JobListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[listing.ID]; exists {
		return store.ErrDuplicate
	}
	s.listings[listing.ID] = listing
	return nil
}

// GetListing fetches a listing by ID.
func (s *Store) GetListing(_ context.Context, id string) (pipeline.JobListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[id]
	if !ok {
		return pipeline.JobListing{}, store.ErrNotFound
	}
	return listing, nil
}

// UpdateListingStatus performs the compare-and-swap status update. The
// second of two racing writers observes the changed state and gets
// ErrConflict instead of silently winning.
func (s *Store) UpdateListingStatus(
	_ context.Context,
	id string,
	from, to pipeline.ListingStatus,
	update store.ListingUpdate,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	if listing.Status != from {
		return store.ErrConflict
	}
	listing.Status = to
	if update.ApprovedBy != "" {
		listing.ApprovedBy = update.ApprovedBy
		listing.ApprovedAt = update.ApprovedAt
	}
	if update.PublishedBy != "" {
		listing.PublishedBy = update.PublishedBy
		listing.PublishedAt = update.PublishedAt
	}
	listing.UpdatedAt = update.UpdatedAt
	s.listings[id] = listing
	return nil
}

// SetListingFlag sets flag metadata without touching the status.
func (s *Store) SetListingFlag(_ context.Context, id string, flagged bool, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[id]
	if !ok {
		return store.ErrNotFound
	}
	listing.Flagged = flagged
	listing.FlagReason = reason
	listing.UpdatedAt = at
	s.listings[id] = listing
	return nil
}

// AppendWorkflowLog appends one audit entry. Entries keep insertion order,
// which is commit order under the store lock.
func (s *Store) AppendWorkflowLog(_ context.Context, entry pipeline.WorkflowLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.JobID] = append(s.logs[entry.JobID], entry)
	return nil
}

// ListWorkflowLogs returns the ordered audit trail for a job.
func (s *Store) ListWorkflowLogs(_ context.Context, jobID string) ([]pipeline.WorkflowLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := s.logs[jobID]
	out := make([]pipeline.WorkflowLogEntry, len(logs))
	copy(out, logs)
	return out, nil
}

func statusMatches(status string, allowed []string) bool {
	for _, a := range allowed {
		if a == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, opts store.ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
