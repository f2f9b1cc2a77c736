package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

func TestSelectStrategy(t *testing.T) {
	t.Parallel()

	feedSrc := pipeline.Source{Type: pipeline.SourceTypeFeed, FeedURL: "https://x/feed.xml"}
	require.Equal(t, StrategyFeed, SelectStrategy(feedSrc, "https://x/feed.xml"))
	require.Equal(t, StrategyFeed, SelectStrategy(feedSrc, "https://x/jobs"))

	htmlSrc := pipeline.Source{Type: pipeline.SourceTypeHTML}
	require.Equal(t, StrategyHTML, SelectStrategy(htmlSrc, "https://x/jobs"))

	hybrid := pipeline.Source{Type: pipeline.SourceTypeHybrid, FeedURL: "https://x/feed.xml"}
	require.Equal(t, StrategyFeed, SelectStrategy(hybrid, "https://x/feed.xml"))
	require.Equal(t, StrategyHTML, SelectStrategy(hybrid, "https://x/jobs?page=2"))

	api := pipeline.Source{Type: pipeline.SourceTypeAPI}
	require.Equal(t, StrategyHTML, SelectStrategy(api, "https://api.x/v1/jobs"))
}

func TestRenderDecision(t *testing.T) {
	t.Parallel()

	d := NewRenderDecision(false, []string{"SPA.example.com", " other.example.org "})
	src := pipeline.Source{}

	require.True(t, d.ShouldRender(src, "spa.example.com"))
	require.True(t, d.ShouldRender(src, "other.example.org"))
	require.False(t, d.ShouldRender(src, "plain.example.com"))

	require.True(t, d.ShouldRender(pipeline.Source{RenderRequired: true}, "plain.example.com"))

	forced := NewRenderDecision(true, nil)
	require.True(t, forced.ShouldRender(src, "anything.example.com"))
}

func TestDetectChallenge(t *testing.T) {
	t.Parallel()

	require.True(t, DetectChallenge([]byte(`<html><title>Attention Required! | Cloudflare</title></html>`)))
	require.True(t, DetectChallenge([]byte(`please solve this CAPTCHA to continue`)))
	require.False(t, DetectChallenge([]byte(`<html><body>regular forbidden page</body></html>`)))
}

func TestMapResponse(t *testing.T) {
	t.Parallel()

	require.NoError(t, MapResponse("https://x", 200, "", nil))

	err := MapResponse("https://x", 429, "30", nil)
	var rl *pipeline.RateLimitedError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 30*time.Second, rl.RetryAfter)

	err = MapResponse("https://x", 403, "", []byte("cf-browser-verification"))
	require.ErrorIs(t, err, pipeline.ErrChallengeDetected)

	// Plain 403 without challenge markers is an ordinary fetch error.
	err = MapResponse("https://x", 403, "", []byte("forbidden"))
	var fe *pipeline.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 403, fe.StatusCode)

	err = MapResponse("https://x", 500, "", nil)
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 500, fe.StatusCode)
}

func TestInterPageDelay_Range(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := InterPageDelay(base)
		require.GreaterOrEqual(t, d, base)
		require.LessOrEqual(t, d, 2*base)
	}
	require.Equal(t, time.Duration(0), InterPageDelay(0))
}
