// Package pipeline defines core types shared across the ingest subsystems.
package pipeline

import "time"

// SourceType selects the fetch strategy for a job board.
type SourceType string

// Source strategy values persisted in the source registry.
const (
	SourceTypeFeed   SourceType = "feed"
	SourceTypeHTML   SourceType = "html"
	SourceTypeAPI    SourceType = "api"
	SourceTypeHybrid SourceType = "hybrid"
)

// Source is the configuration for one external job board.
type Source struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             SourceType        `json:"type"`
	BaseURL          string            `json:"base_url"`
	FeedURL          string            `json:"feed_url,omitempty"`
	Selectors        Selectors         `json:"selectors"`
	RateLimitDelay   time.Duration     `json:"rate_limit_delay"`
	MaxPages         int               `json:"max_pages"`
	RequestTimeout   time.Duration     `json:"request_timeout"`
	RetryAttempts    int               `json:"retry_attempts"`
	QualityThreshold float64           `json:"quality_threshold"`
	RenderRequired   bool              `json:"render_required"`
	MLEnabled        bool              `json:"ml_enabled"`
	Active           bool              `json:"active"`
	Schedule         string            `json:"schedule,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	SuccessRate      float64           `json:"success_rate"`
	LastRunAt        *time.Time        `json:"last_run_at,omitempty"`
}

// Selectors maps logical fields to CSS selectors for one source.
type Selectors struct {
	Item        string `json:"item"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Salary      string `json:"salary"`
	JobType     string `json:"job_type"`
	PostedDate  string `json:"posted_date"`
	NextPage    string `json:"next_page"`
}

// RunMode distinguishes how a run was initiated.
type RunMode string

// Run modes.
const (
	RunModeManual     RunMode = "manual"
	RunModeScheduled  RunMode = "scheduled"
	RunModeContinuous RunMode = "continuous"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run can no longer change state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// RunCounters tracks per-run aggregate statistics. Counters are updated
// incrementally while the run executes so progress can be polled.
type RunCounters struct {
	ItemsFound     int `json:"items_found"`
	ItemsProcessed int `json:"items_processed"`
	ItemsCreated   int `json:"items_created"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsSkipped   int `json:"items_skipped"`
	PagesFetched   int `json:"pages_fetched"`
	PagesFailed    int `json:"pages_failed"`
	Retries        int `json:"retries"`
}

// Run represents one execution attempt against a source.
type Run struct {
	ID             string      `json:"id"`
	SourceID       string      `json:"source_id"`
	Mode           RunMode     `json:"mode"`
	Status         RunStatus   `json:"status"`
	Priority       int         `json:"priority"`
	Started        *time.Time  `json:"started_at,omitempty"`
	Finished       *time.Time  `json:"finished_at,omitempty"`
	Submitted      time.Time   `json:"submitted_at"`
	Counters       RunCounters `json:"counters"`
	ErrorText      string      `json:"error_text,omitempty"`
	SourceSnapshot Source      `json:"source_snapshot"`
}

// FetchPage records diagnostics for one page request within a run.
// Immutable after completion.
type FetchPage struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	Type        string        `json:"type"`
	URL         string        `json:"url"`
	PageNumber  int           `json:"page_number"`
	StatusCode  int           `json:"status_code"`
	Bytes       int           `json:"bytes"`
	Duration    time.Duration `json:"duration"`
	ItemCount   int           `json:"item_count"`
	SnapshotURI string        `json:"snapshot_uri,omitempty"`
	ErrorText   string        `json:"error_text,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at"`
}

// RawItemCandidate is an extracted fragment before validation and dedup.
type RawItemCandidate struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	URL         string `json:"url"`
	SalaryText  string `json:"salary_text"`
	JobTypeText string `json:"job_type_text"`
	PostedText  string `json:"posted_text"`
	RawPayload  string `json:"raw_payload"`
}

// RawItem is an unprocessed extracted job fragment. Created once per unique
// extraction; only the processing flags mutate afterwards.
type RawItem struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	SalaryText  string    `json:"salary_text"`
	JobTypeText string    `json:"job_type_text"`
	PostedText  string    `json:"posted_text"`
	RawPayload  string    `json:"raw_payload"`
	ContentHash string    `json:"content_hash"`
	IsProcessed bool      `json:"is_processed"`
	IsDuplicate bool      `json:"is_duplicate"`
	ErrorText   string    `json:"error_text,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// JobType is the canonical employment type.
type JobType string

// Canonical job types.
const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
	JobTypeFreelance  JobType = "freelance"
	JobTypeUnknown    JobType = ""
)

// ExperienceLevel is the inferred seniority band.
type ExperienceLevel string

// Experience levels in priority order: senior beats junior beats mid.
const (
	ExperienceSenior      ExperienceLevel = "senior"
	ExperienceJunior      ExperienceLevel = "junior"
	ExperienceMid         ExperienceLevel = "mid"
	ExperienceUnspecified ExperienceLevel = ""
)

// NormalizationMethod records which path produced a normalized job.
type NormalizationMethod string

// Normalization methods.
const (
	MethodRuleBased NormalizationMethod = "rule_based"
	MethodML        NormalizationMethod = "ml"
	MethodHybrid    NormalizationMethod = "hybrid"
)

// NormalizedJob is the cleaned, enriched projection of a raw item.
// One-to-one with its raw item; immutable once published.
type NormalizedJob struct {
	ID             string              `json:"id"`
	RawItemID      string              `json:"raw_item_id"`
	SourceID       string              `json:"source_id"`
	Title          string              `json:"title"`
	Company        string              `json:"company"`
	Location       string              `json:"location"`
	Description    string              `json:"description"`
	URL            string              `json:"url"`
	Remote         bool                `json:"remote"`
	SalaryMin      *float64            `json:"salary_min,omitempty"`
	SalaryMax      *float64            `json:"salary_max,omitempty"`
	SalaryCurrency string              `json:"salary_currency,omitempty"`
	SalaryPeriod   string              `json:"salary_period,omitempty"`
	JobType        JobType             `json:"job_type,omitempty"`
	Experience     ExperienceLevel     `json:"experience_level,omitempty"`
	Skills         []string            `json:"skills,omitempty"`
	Benefits       []string            `json:"benefits,omitempty"`
	Requirements   []string            `json:"requirements,omitempty"`
	PostedAt       *time.Time          `json:"posted_at,omitempty"`
	QualityScore   float64             `json:"quality_score"`
	Method         NormalizationMethod `json:"normalization_method"`
	IsPublished    bool                `json:"is_published"`
	JobPostID      string              `json:"job_post_id,omitempty"`
	NormalizedAt   time.Time           `json:"normalized_at"`
}

// ListingStatus is the workflow state of a public job listing.
type ListingStatus string

// Listing workflow states. StatusCancelled is terminal.
const (
	StatusDraft           ListingStatus = "draft"
	StatusPendingApproval ListingStatus = "pending_approval"
	StatusUnderReview     ListingStatus = "under_review"
	StatusApproved        ListingStatus = "approved"
	StatusRejected        ListingStatus = "rejected"
	StatusActive          ListingStatus = "active"
	StatusPaused          ListingStatus = "paused"
	StatusFlagged         ListingStatus = "flagged"
	StatusClosed          ListingStatus = "closed"
	StatusExpired         ListingStatus = "expired"
	StatusCancelled       ListingStatus = "cancelled"
)

// JobListing is the public-facing job record governed by the workflow
// state machine regardless of how it was created.
type JobListing struct {
	ID               string        `json:"id"`
	SourceID         string        `json:"source_id,omitempty"`
	NormalizedJobID  string        `json:"normalized_job_id,omitempty"`
	Title            string        `json:"title"`
	Company          string        `json:"company"`
	Location         string        `json:"location"`
	Description      string        `json:"description"`
	URL              string        `json:"url"`
	Status           ListingStatus `json:"status"`
	Featured         bool          `json:"featured"`
	Urgent           bool          `json:"urgent"`
	Flagged          bool          `json:"flagged"`
	FlagReason       string        `json:"flag_reason,omitempty"`
	ApprovedBy       string        `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
	PublishedBy      string        `json:"published_by,omitempty"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
	ViewCount        int           `json:"view_count"`
	ApplicationCount int           `json:"application_count"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// WorkflowLogEntry is the append-only audit record of one status
// transition. Never mutated or deleted.
type WorkflowLogEntry struct {
	ID         string        `json:"id"`
	JobID      string        `json:"job_id"`
	Action     string        `json:"action"`
	FromStatus ListingStatus `json:"from_status"`
	ToStatus   ListingStatus `json:"to_status"`
	Actor      string        `json:"actor"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
