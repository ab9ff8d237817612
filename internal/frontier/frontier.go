// Package frontier manages the crawl queue: which URLs remain to be visited
// and in what order.
package frontier

import (
	"sort"

	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/prioritizer"
	"github.com/schemascout/schemascout/internal/urlutil"
)

// Entry is a queued URL with its priority score.
type Entry struct {
	URL   string
	Score float64
}

// Stats tracks queue activity over a run.
type Stats struct {
	URLsAdded        int       `json:"urls_added"`
	URLsRemoved      int       `json:"urls_removed"`
	URLsVisited      int       `json:"urls_visited"`
	MergeOperations  int       `json:"merge_operations"`
	QueueSizeHistory []int     `json:"queue_size_history"`
	CurrentQueueSize int       `json:"current_queue_size"`
	VisitedCount     int       `json:"visited_urls_count"`
	TopEntries       []Entry   `json:"top_queue_urls"`
}

// Queue is the crawl frontier for a single domain. It is written from a
// single goroutine; the orchestrator alone mutates it between batches.
type Queue struct {
	domainURL   string
	prioritizer *prioritizer.Prioritizer
	logger      *zap.Logger

	entries []Entry
	visited map[string]struct{}

	stats Stats
}

// New builds an empty frontier bound to domainURL. Links outside that domain
// are rejected at merge time.
func New(domainURL string, p *prioritizer.Prioritizer, logger *zap.Logger) *Queue {
	return &Queue{
		domainURL:   domainURL,
		prioritizer: p,
		logger:      logging.OrNop(logger),
		visited:     make(map[string]struct{}),
	}
}

// AddSeed enqueues the starting URL with a neutral score.
func (q *Queue) AddSeed(url string) {
	q.entries = append(q.entries, Entry{URL: url})
	q.stats.URLsAdded++
	q.recordSize()
}

// NextBatch dequeues up to n of the highest-priority URLs.
func (q *Queue) NextBatch(n int) []string {
	if n > len(q.entries) {
		n = len(q.entries)
	}
	batch := make([]string, 0, n)
	for _, e := range q.entries[:n] {
		batch = append(batch, e.URL)
		q.logger.Debug("selected for batch", zap.String("url", e.URL), zap.Float64("score", e.Score))
	}
	q.entries = q.entries[n:]
	q.stats.URLsRemoved += len(batch)
	q.recordSize()
	return batch
}

// MarkVisited records urls in the visited set. Visited URLs are never
// re-enqueued.
func (q *Queue) MarkVisited(urls []string) {
	for _, u := range urls {
		if _, seen := q.visited[u]; !seen {
			q.visited[u] = struct{}{}
		}
		q.stats.URLsVisited++
	}
}

// Visited reports whether url has been crawled.
func (q *Queue) Visited(url string) bool {
	_, ok := q.visited[url]
	return ok
}

// MergeLinks scores the discovered links, drops visited, negatively scored,
// and off-domain URLs, merges the rest into the frontier keeping the highest
// score seen per URL, and re-sorts the whole queue descending. The sort is
// stable so ties keep their earlier position.
func (q *Queue) MergeLinks(links []prioritizer.Link) {
	if len(links) == 0 {
		return
	}

	scored := q.prioritizer.Prioritize(links)
	merged := make(map[string]float64, len(q.entries)+len(scored))
	order := make([]string, 0, len(q.entries)+len(scored))
	for _, e := range q.entries {
		if prev, ok := merged[e.URL]; !ok || e.Score > prev {
			if !ok {
				order = append(order, e.URL)
			}
			merged[e.URL] = e.Score
		}
	}

	var skippedVisited, skippedNegative, skippedDomain, added int
	for _, s := range scored {
		switch {
		case q.Visited(s.URL):
			skippedVisited++
			continue
		case s.Score < 0:
			skippedNegative++
			continue
		case !urlutil.IsSameDomain(s.URL, q.domainURL):
			skippedDomain++
			continue
		}
		if prev, ok := merged[s.URL]; !ok || s.Score > prev {
			if !ok {
				order = append(order, s.URL)
				added++
			}
			merged[s.URL] = s.Score
		}
	}

	q.entries = q.entries[:0]
	for _, url := range order {
		q.entries = append(q.entries, Entry{URL: url, Score: merged[url]})
	}
	sort.SliceStable(q.entries, func(i, j int) bool { return q.entries[i].Score > q.entries[j].Score })

	q.stats.URLsAdded += added
	q.stats.MergeOperations++
	q.recordSize()
	q.logger.Debug("merged discovered links",
		zap.Int("discovered", len(links)),
		zap.Int("added", added),
		zap.Int("skipped_visited", skippedVisited),
		zap.Int("skipped_negative", skippedNegative),
		zap.Int("skipped_off_domain", skippedDomain),
		zap.Int("queue_size", len(q.entries)))
}

// Len returns the number of queued URLs.
func (q *Queue) Len() int { return len(q.entries) }

// Empty reports whether nothing remains to crawl.
func (q *Queue) Empty() bool { return len(q.entries) == 0 }

// VisitedCount returns how many distinct URLs have been crawled.
func (q *Queue) VisitedCount() int { return len(q.visited) }

// Top returns the n highest-priority entries without dequeuing them.
func (q *Queue) Top(n int) []Entry {
	if n > len(q.entries) {
		n = len(q.entries)
	}
	out := make([]Entry, n)
	copy(out, q.entries[:n])
	return out
}

const historyWindow = 10

// Statistics returns a snapshot of queue activity. The size history keeps the
// most recent entries only.
func (q *Queue) Statistics() Stats {
	s := q.stats
	s.CurrentQueueSize = len(q.entries)
	s.VisitedCount = len(q.visited)
	if n := len(s.QueueSizeHistory); n > historyWindow {
		s.QueueSizeHistory = s.QueueSizeHistory[n-historyWindow:]
	}
	history := make([]int, len(s.QueueSizeHistory))
	copy(history, s.QueueSizeHistory)
	s.QueueSizeHistory = history
	s.TopEntries = q.Top(historyWindow)
	return s
}

func (q *Queue) recordSize() {
	q.stats.QueueSizeHistory = append(q.stats.QueueSizeHistory, len(q.entries))
}
