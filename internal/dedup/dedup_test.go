package dedup

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobharvest/internal/hash/sha256"
	"github.com/talentwire/jobharvest/internal/id/uuid"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newGate(t *testing.T) (*Gate, *memory.Store) {
	t.Helper()
	s := memory.New()
	return NewGate(s, sha256.New(), uuid.NewUUIDGenerator(), fixedClock{now: time.Unix(1700000000, 0).UTC()}), s
}

func candidate(title, url, desc string) pipeline.RawItemCandidate {
	return pipeline.RawItemCandidate{Title: title, URL: url, Description: desc}
}

func TestContentHash_IgnoresCaseAndWhitespace(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)

	a, err := g.ContentHash(candidate("Software Engineer", "https://x/jobs/1", "Build things."))
	require.NoError(t, err)
	b, err := g.ContentHash(candidate("  software engineer ", "https://x/jobs/1", " build things. "))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestContentHash_URLCaseIsSignificant(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)

	a, err := g.ContentHash(candidate("Engineer", "https://x/jobs/AbC1", "d"))
	require.NoError(t, err)
	b, err := g.ContentHash(candidate("Engineer", "https://x/jobs/abc1", "d"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestContentHash_TruncatesDescription(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)

	base := strings.Repeat("a", 200)
	a, err := g.ContentHash(candidate("T", "https://x/1", base+" viewed 14 times"))
	require.NoError(t, err)
	b, err := g.ContentHash(candidate("T", "https://x/1", base+" viewed 15 times"))
	require.NoError(t, err)
	require.Equal(t, a, b)

	// A change inside the first 200 characters does matter.
	c, err := g.ContentHash(candidate("T", "https://x/1", "b"+base[1:]))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestAdmit_RejectsCandidateWithoutTitleOrURL(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)

	_, err := g.Admit(context.Background(), "src-a", "run-1", candidate("", "", "orphan fragment"))
	require.ErrorIs(t, err, pipeline.ErrExtractionIncomplete)
}

func TestAdmit_DuplicateWithinSource(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)
	ctx := context.Background()

	c := candidate("Engineer", "https://x/jobs/1", "desc")
	item, err := g.Admit(ctx, "src-a", "run-1", c)
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.NotEmpty(t, item.ContentHash)

	_, err = g.Admit(ctx, "src-a", "run-2", c)
	require.ErrorIs(t, err, pipeline.ErrDuplicateItem)

	// The same content on a different source is a distinct listing.
	other, err := g.Admit(ctx, "src-b", "run-1", c)
	require.NoError(t, err)
	require.Equal(t, item.ContentHash, other.ContentHash)
}

func TestAdmit_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	g, _ := newGate(t)
	ctx := context.Background()
	c := candidate("Engineer", "https://x/jobs/1", "desc")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		dupes    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Admit(ctx, "src-a", "run-1", c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case err == pipeline.ErrDuplicateItem:
				dupes++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, admitted)
	require.Equal(t, workers-1, dupes)
}
