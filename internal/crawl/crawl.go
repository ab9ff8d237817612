// Package crawl orchestrates a full discovery run: batches of pages rendered
// in parallel, structured data extracted and parsed, discovered links fed
// back into the frontier until the collection goal or the page budget is hit.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/schemascout/schemascout/internal/browser"
	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/crawlerr"
	"github.com/schemascout/schemascout/internal/frontier"
	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/metrics"
	"github.com/schemascout/schemascout/internal/prioritizer"
	"github.com/schemascout/schemascout/internal/schema"
)

// Result is the outcome of one crawl run. Partial results are always
// populated, including on failure.
type Result struct {
	DomainURL         string            `json:"domain_url"`
	Success           bool              `json:"success"`
	SchemaObjects     []schema.Object   `json:"jsonld_schemas"`
	ProductSchemas    []schema.Object   `json:"product_schemas"`
	NonProductSchemas []schema.Object   `json:"non_product_schemas"`
	Statistics        map[string]any    `json:"statistics"`
	Errors            []*crawlerr.Error `json:"errors,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Orchestrator drives the batch crawl loop. The queue and the collected
// schemas are mutated only between batches, from the orchestrator goroutine;
// worker goroutines own a page each and communicate through return values.
type Orchestrator struct {
	cfg     config.Crawler
	session browser.Session
	queue   *frontier.Queue
	parser  *schema.Parser
	limiter *rate.Limiter
	logger  *zap.Logger

	networkIdleTimeout time.Duration
}

// New builds an orchestrator for one domain. The queue should already carry
// the seed URL.
func New(cfg config.Crawler, networkIdleTimeout time.Duration, session browser.Session, queue *frontier.Queue, logger *zap.Logger) *Orchestrator {
	logger = logging.OrNop(logger)
	limit := rate.Inf
	if cfg.DelaySeconds > 0 {
		limit = rate.Every(time.Duration(cfg.DelaySeconds * float64(time.Second)))
	}
	return &Orchestrator{
		cfg:                cfg,
		session:            session,
		queue:              queue,
		parser:             schema.NewParser(logger),
		limiter:            rate.NewLimiter(limit, 1),
		logger:             logger,
		networkIdleTimeout: networkIdleTimeout,
	}
}

// pageResult is what one worker goroutine hands back for a single URL.
type pageResult struct {
	url      string
	schemas  []schema.Object
	links    []prioritizer.Link
	attempts int
	success  bool
	err      *crawlerr.Error
}

// Run executes the batch loop until the queue drains, the page budget is
// exhausted, the product collection goal is met, or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, domainURL string) Result {
	var (
		raw       []schema.Object
		errs      []*crawlerr.Error
		linksSeen int
		attempts  int
		successes int
	)
	site := metrics.SanitizeSite(domainURL)

	o.logger.Info("starting crawl",
		zap.String("domain", domainURL),
		zap.Int("max_pages", o.cfg.MaxPages),
		zap.Int("batch_size", o.cfg.BatchSize))

	for !o.queue.Empty() && o.queue.VisitedCount() < o.cfg.MaxPages {
		// Paces batches to the configured crawl delay.
		if err := o.limiter.Wait(ctx); err != nil {
			errs = append(errs, crawlerr.Classify(err, domainURL))
			break
		}

		batch := o.queue.NextBatch(o.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}
		o.queue.MarkVisited(batch)
		o.logger.Info("processing batch", zap.Int("size", len(batch)), zap.Int("visited", o.queue.VisitedCount()))

		results := o.processBatch(ctx, batch)
		metrics.ObserveBatch()

		var batchLinks []prioritizer.Link
		for _, r := range results {
			attempts += r.attempts
			if r.success {
				successes++
			}
			if r.err != nil {
				errs = append(errs, r.err)
				metrics.ObserveError(string(r.err.Kind))
				continue
			}
			raw = append(raw, r.schemas...)
			batchLinks = append(batchLinks, r.links...)
			linksSeen += len(r.links)
		}

		// Cheap pre-dedup check so we stop crawling as soon as enough
		// product schemas have been collected.
		products := 0
		for _, obj := range raw {
			if obj.IsProduct() {
				products++
			}
		}
		if products >= o.cfg.CollectionGoal {
			o.logger.Info("collection goal met",
				zap.Int("product_schemas", products),
				zap.Int("total_schemas", len(raw)))
			break
		}

		if len(batchLinks) > 0 {
			o.queue.MergeLinks(batchLinks)
			metrics.ObserveLinks(site, len(batchLinks))
			for i, e := range o.queue.Top(10) {
				o.logger.Debug("queue top entry", zap.Int("rank", i+1), zap.String("url", e.URL), zap.Float64("score", e.Score))
			}
		}
	}

	deduped := schema.Deduplicate(raw)
	products, nonProducts := schema.SplitProducts(deduped)

	metrics.ObserveSchemas(site, "product", len(products))
	metrics.ObserveSchemas(site, "non_product", len(nonProducts))

	stats := map[string]any{
		"pages_visited":               o.queue.VisitedCount(),
		"links_processed":             linksSeen,
		"jsonld_extraction_attempts":  attempts,
		"jsonld_extraction_successes": successes,
		"raw_objects_found":           len(raw),
		"unique_schemas_found":        len(deduped),
		"product_schemas_found":       len(products),
		"non_product_schemas_found":   len(nonProducts),
	}
	qs := o.queue.Statistics()
	stats["urls_added"] = qs.URLsAdded
	stats["urls_removed"] = qs.URLsRemoved
	stats["urls_visited"] = qs.URLsVisited
	stats["merge_operations"] = qs.MergeOperations
	stats["queue_size_history"] = qs.QueueSizeHistory

	result := Result{
		DomainURL:         domainURL,
		SchemaObjects:     deduped,
		ProductSchemas:    products,
		NonProductSchemas: nonProducts,
		Statistics:        stats,
		Errors:            errs,
	}
	if len(products) >= o.cfg.MinProducts {
		result.Success = true
		o.logger.Info("crawl succeeded",
			zap.Int("pages_visited", o.queue.VisitedCount()),
			zap.Int("product_schemas", len(products)),
			zap.Int("unique_schemas", len(deduped)))
	} else {
		result.Error = fmt.Sprintf("insufficient product schemas found: %d products (minimum %d required)",
			len(products), o.cfg.MinProducts)
		o.logger.Warn("crawl finished below product minimum",
			zap.Int("pages_visited", o.queue.VisitedCount()),
			zap.Int("product_schemas", len(products)),
			zap.Int("minimum", o.cfg.MinProducts))
	}
	return result
}

// processBatch renders every URL of the batch concurrently, one goroutine and
// one page each. A panic-free worker always produces a pageResult; failures
// come back as typed errors rather than aborting the batch.
func (o *Orchestrator) processBatch(ctx context.Context, batch []string) []pageResult {
	results := make([]pageResult, len(batch))
	var wg sync.WaitGroup
	for i, url := range batch {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = o.processPage(ctx, url)
		}(i, url)
	}
	wg.Wait()
	return results
}

// processPage navigates one URL, extracts and parses its JSON-LD payloads,
// and collects outbound links with their DOM context.
func (o *Orchestrator) processPage(ctx context.Context, url string) pageResult {
	start := time.Now()
	site := metrics.SanitizeSite(url)
	res := pageResult{url: url, attempts: 1}

	page, err := o.session.NewPage(ctx)
	if err != nil {
		res.err = crawlerr.Classify(err, url)
		metrics.ObservePage(site, "error", time.Since(start))
		return res
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			o.logger.Debug("page close failed", zap.String("url", url), zap.Error(cerr))
		}
	}()

	if err := page.Navigate(ctx, url); err != nil {
		res.err = crawlerr.Classify(err, url)
		metrics.ObservePage(site, "error", time.Since(start))
		return res
	}

	// A busy page is fine; extraction proceeds on whatever has rendered.
	if err := page.WaitNetworkIdle(ctx, o.networkIdleTimeout); err != nil {
		o.logger.Debug("network idle wait failed", zap.String("url", url), zap.Error(err))
	}

	schemas, err := o.extractSchemas(ctx, page, url)
	if err != nil {
		res.err = crawlerr.Classify(err, url)
		metrics.ObservePage(site, "error", time.Since(start))
		return res
	}
	res.schemas = schemas
	res.success = len(schemas) > 0

	var links []prioritizer.Link
	if err := page.Evaluate(ctx, linkExtractionJS, &links); err != nil {
		o.logger.Warn("link extraction failed", zap.String("url", url), zap.Error(err))
	}
	res.links = links

	o.logger.Debug("page processed",
		zap.String("url", url),
		zap.Int("schemas", len(schemas)),
		zap.Int("links", len(links)),
		zap.Duration("elapsed", time.Since(start)))
	metrics.ObservePage(site, "ok", time.Since(start))
	return res
}

// extractSchemas reads the page's JSON-LD script tags and parses them,
// retrying script collection a few times with a fixed delay. Navigation is
// never retried.
func (o *Orchestrator) extractSchemas(ctx context.Context, page browser.Page, url string) ([]schema.Object, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.ExtractionRetries; attempt++ {
		texts, err := page.ScriptTexts(ctx)
		if err == nil {
			return o.parser.Parse(texts), nil
		}
		lastErr = err
		o.logger.Warn("structured data extraction failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < o.cfg.ExtractionRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.cfg.RetryDelay):
			}
		}
	}
	return nil, lastErr
}
