// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesVisitedTotal      *prometheus.CounterVec
	schemasExtractedTotal  *prometheus.CounterVec
	crawlErrorsTotal       *prometheus.CounterVec
	batchesProcessedTotal  prometheus.Counter
	pageDurationSeconds    *prometheus.HistogramVec
	linksDiscoveredTotal   *prometheus.CounterVec
	crawlRunsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once; the
// Observe functions call it themselves, so an explicit call is only
// needed to register collectors before the first observation.
func Init() {
	once.Do(func() {
		pagesVisitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemascout_pages_visited_total",
				Help: "Pages visited, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		schemasExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemascout_schemas_extracted_total",
				Help: "Schema objects extracted, labeled by site and classification.",
			},
			[]string{"site", "kind"},
		)

		crawlErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemascout_crawl_errors_total",
				Help: "Typed crawl errors, labeled by error kind.",
			},
			[]string{"kind"},
		)

		batchesProcessedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schemascout_batches_processed_total",
				Help: "Frontier batches processed.",
			},
		)

		pageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemascout_page_duration_seconds",
				Help:    "Histogram of per-page processing time, labeled by site.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"site"},
		)

		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemascout_links_discovered_total",
				Help: "Links discovered during crawling, labeled by site.",
			},
			[]string{"site"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemascout_crawl_runs_total",
				Help: "Completed crawl runs, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname for use as a label value.
// Invalid URLs map to "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one visited page with its outcome and duration.
func ObservePage(site, outcome string, duration time.Duration) {
	Init()
	s := SanitizeSite(site)
	pagesVisitedTotal.WithLabelValues(s, outcome).Inc()
	pageDurationSeconds.WithLabelValues(s).Observe(duration.Seconds())
}

// ObserveSchemas records extracted schema objects by classification.
func ObserveSchemas(site, kind string, count int) {
	Init()
	if count > 0 {
		schemasExtractedTotal.WithLabelValues(SanitizeSite(site), kind).Add(float64(count))
	}
}

// ObserveError increments the typed error counter.
func ObserveError(kind string) {
	Init()
	crawlErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveBatch increments the processed batch counter.
func ObserveBatch() {
	Init()
	batchesProcessedTotal.Inc()
}

// ObserveLinks records discovered link volume.
func ObserveLinks(site string, count int) {
	Init()
	if count > 0 {
		linksDiscoveredTotal.WithLabelValues(SanitizeSite(site)).Add(float64(count))
	}
}

// ObserveRun records a finished crawl run.
func ObserveRun(result string) {
	Init()
	crawlRunsTotal.WithLabelValues(result).Inc()
}
