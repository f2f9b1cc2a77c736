package workflow

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobharvest/internal/id/uuid"
	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type capturingNotifier struct {
	mu     sync.Mutex
	events []pipeline.Notification
}

func (n *capturingNotifier) Notify(_ context.Context, event pipeline.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *capturingNotifier) {
	t.Helper()
	s := memory.New()
	notifier := &capturingNotifier{}
	clock := &tickingClock{now: time.Unix(1700000000, 0).UTC()}
	return NewEngine(s, uuid.NewUUIDGenerator(), clock, notifier, nil), s, notifier
}

func seedListing(t *testing.T, s *memory.Store, status pipeline.ListingStatus) pipeline.JobListing {
	t.Helper()
	listing := pipeline.JobListing{
		ID:     "job-" + string(status),
		Title:  "Software Engineer",
		Status: status,
	}
	require.NoError(t, s.CreateListing(context.Background(), listing))
	return listing
}

func TestEngine_SubmitApprovePublish(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusDraft)

	got, err := e.Submit(ctx, listing.ID, "recruiter")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPendingApproval, got.Status)

	got, err = e.Approve(ctx, listing.ID, "moderator", false)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusApproved, got.Status)
	require.Equal(t, "moderator", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)

	got, err = e.Publish(ctx, listing.ID, "moderator")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusActive, got.Status)
	require.Equal(t, "moderator", got.PublishedBy)
	require.NotNil(t, got.PublishedAt)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, ActionSubmit, logs[0].Action)
	require.Equal(t, ActionApprove, logs[1].Action)
	require.Equal(t, ActionPublish, logs[2].Action)

	// The log is a valid walk over the transition table.
	for _, entry := range logs {
		require.True(t, IsTransitionAllowed(entry.FromStatus, entry.ToStatus))
	}
}

func TestEngine_ApproveWithImmediatePublish(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusPendingApproval)

	got, err := e.Approve(ctx, listing.ID, "system", true)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusActive, got.Status)
	require.NotNil(t, got.PublishedAt)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, pipeline.StatusApproved, logs[0].ToStatus)
	require.Equal(t, pipeline.StatusActive, logs[1].ToStatus)
}

func TestEngine_PauseOnClosedIsInvalid(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusClosed)

	_, err := e.Pause(ctx, listing.ID, "recruiter")
	require.ErrorIs(t, err, pipeline.ErrInvalidTransition)

	// No state change, no log entry.
	got, err := s.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusClosed, got.Status)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestEngine_ReplaySameActionFailsCleanly(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusDraft)

	_, err := e.Submit(ctx, listing.ID, "recruiter")
	require.NoError(t, err)

	// The replayed submit observes pending_approval and is rejected
	// without double-applying.
	_, err = e.Submit(ctx, listing.ID, "recruiter")
	require.ErrorIs(t, err, pipeline.ErrInvalidTransition)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestEngine_FlagActiveListing(t *testing.T) {
	t.Parallel()
	e, s, notifier := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusActive)

	got, err := e.Flag(ctx, listing.ID, "user-1", "spam")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFlagged, got.Status)
	require.True(t, got.Flagged)
	require.Equal(t, "spam", got.FlagReason)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, ActionFlag, logs[0].Action)

	require.Len(t, notifier.events, 1)
	require.Equal(t, pipeline.EventJobFlagged, notifier.events[0].Event)
}

func TestEngine_FlagNonActiveOnlySetsMetadata(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusPaused)

	got, err := e.Flag(ctx, listing.ID, "user-1", "misleading")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPaused, got.Status)
	require.True(t, got.Flagged)

	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestEngine_UnflagReturnsToActive(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusActive)

	_, err := e.Flag(ctx, listing.ID, "user-1", "spam")
	require.NoError(t, err)

	got, err := e.Unflag(ctx, listing.ID, "moderator")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusActive, got.Status)
	require.False(t, got.Flagged)
	require.Empty(t, got.FlagReason)
}

func TestEngine_CancelIsTerminal(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusDraft)

	_, err := e.Cancel(ctx, listing.ID, "recruiter", "duplicate posting")
	require.NoError(t, err)

	_, err = e.Submit(ctx, listing.ID, "recruiter")
	require.ErrorIs(t, err, pipeline.ErrInvalidTransition)
}

func TestEngine_ConcurrentConflictingActions(t *testing.T) {
	t.Parallel()
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	listing := seedListing(t, s, pipeline.StatusActive)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Pause(ctx, listing.ID, "recruiter")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			}
		}()
	}
	wg.Wait()

	// Exactly one pause lands; the rest observe paused and fail.
	require.Equal(t, 1, succeeded)
	logs, err := s.ListWorkflowLogs(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}
