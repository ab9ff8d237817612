package frontier

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/prioritizer"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	p, err := prioritizer.New([]prioritizer.PatternScore{
		{Pattern: `\.(png|css|js)$`, Score: -100},
		{Pattern: `/products?/`, Score: 100},
		{Pattern: `/collections?/`, Score: 60},
	}, nil)
	require.NoError(t, err)
	return New("https://shop.example", p, zap.NewNop())
}

func link(url string) prioritizer.Link {
	return prioritizer.Link{URL: url}
}

func TestSeedAndBatch(t *testing.T) {
	q := newTestQueue(t)
	q.AddSeed("https://shop.example")
	require.Equal(t, 1, q.Len())

	batch := q.NextBatch(5)
	require.Equal(t, []string{"https://shop.example"}, batch)
	require.True(t, q.Empty())
}

func TestMergeOrdersByScoreDescending(t *testing.T) {
	q := newTestQueue(t)
	q.MergeLinks([]prioritizer.Link{
		link("https://shop.example/blog/a"),
		link("https://shop.example/products/b"),
		link("https://shop.example/collections/c"),
	})
	top := q.Top(3)
	require.Equal(t, "https://shop.example/products/b", top[0].URL)
	require.Equal(t, "https://shop.example/collections/c", top[1].URL)
	require.Equal(t, "https://shop.example/blog/a", top[2].URL)
	require.GreaterOrEqual(t, top[0].Score, top[1].Score)
	require.GreaterOrEqual(t, top[1].Score, top[2].Score)
}

func TestMergeSkipsVisited(t *testing.T) {
	q := newTestQueue(t)
	q.MarkVisited([]string{"https://shop.example/products/seen"})
	q.MergeLinks([]prioritizer.Link{
		link("https://shop.example/products/seen"),
		link("https://shop.example/products/new"),
	})
	require.Equal(t, 1, q.Len())
	require.Equal(t, "https://shop.example/products/new", q.Top(1)[0].URL)
}

func TestMergeSkipsNegativeAndOffDomain(t *testing.T) {
	q := newTestQueue(t)
	q.MergeLinks([]prioritizer.Link{
		link("https://shop.example/logo.png"),
		link("https://other.example/products/x"),
		link("https://shop.example/products/ok"),
	})
	require.Equal(t, 1, q.Len())
}

func TestMergeKeepsMaxScorePerURL(t *testing.T) {
	q := newTestQueue(t)
	q.MergeLinks([]prioritizer.Link{link("https://shop.example/products/a")})
	before := q.Top(1)[0].Score

	// Rediscovery never lowers a stored score.
	q.MergeLinks([]prioritizer.Link{{
		URL: "https://shop.example/products/a",
		Context: prioritizer.LinkContext{
			ElementInfo: prioritizer.ElementInfo{Text: "irrelevant"},
		},
	}})
	require.Equal(t, 1, q.Len())
	require.Equal(t, before, q.Top(1)[0].Score)
}

func TestVisitedNeverReenqueued(t *testing.T) {
	q := newTestQueue(t)
	q.AddSeed("https://shop.example")
	batch := q.NextBatch(1)
	q.MarkVisited(batch)

	q.MergeLinks([]prioritizer.Link{link("https://shop.example")})
	require.True(t, q.Empty())
	require.True(t, q.Visited("https://shop.example"))
}

func TestSubdomainLinksAccepted(t *testing.T) {
	q := newTestQueue(t)
	q.MergeLinks([]prioritizer.Link{link("https://store.shop.example/products/x")})
	require.Equal(t, 1, q.Len())
}

func TestStatistics(t *testing.T) {
	q := newTestQueue(t)
	q.AddSeed("https://shop.example")
	q.MarkVisited(q.NextBatch(1))
	q.MergeLinks([]prioritizer.Link{
		link("https://shop.example/products/a"),
		link("https://shop.example/products/b"),
	})

	s := q.Statistics()
	require.Equal(t, 3, s.URLsAdded)
	require.Equal(t, 1, s.URLsRemoved)
	require.Equal(t, 1, s.URLsVisited)
	require.Equal(t, 1, s.MergeOperations)
	require.Equal(t, 2, s.CurrentQueueSize)
	require.Equal(t, 1, s.VisitedCount)
	require.Len(t, s.TopEntries, 2)
	require.NotEmpty(t, s.QueueSizeHistory)
}
