package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/browser"
	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/crawlerr"
	"github.com/schemascout/schemascout/internal/frontier"
	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/metrics"
	"github.com/schemascout/schemascout/internal/prioritizer"
	"github.com/schemascout/schemascout/internal/publisher"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/urlutil"
)

// Deps carries the collaborators RunCrawl wires together. Session and
// Prioritizer are required; the stores and the publisher are optional sinks.
type Deps struct {
	Session     browser.Session
	Prioritizer *prioritizer.Prioritizer
	Results     storage.BlobStore
	Runs        storage.RunStore
	Publisher   publisher.Publisher
	Topic       string
	Logger      *zap.Logger
}

// RunCrawl normalizes the domain, runs the batch crawl against it, and fans
// the result out to the configured sinks. The browser session is always torn
// down, crawl outcome notwithstanding. A validation failure on the domain is
// the only error returned; crawl failures are reported inside the Result.
func RunCrawl(ctx context.Context, rawDomain string, cfg config.Config, deps Deps) (*Result, error) {
	logger := logging.OrNop(deps.Logger)

	domainURL, err := urlutil.NormalizeDomain(rawDomain)
	if err != nil {
		return nil, crawlerr.New(crawlerr.KindContentNotAccessible,
			fmt.Sprintf("invalid domain %q: %v", rawDomain, err), rawDomain)
	}

	defer deps.Session.Close()

	queue := frontier.New(domainURL, deps.Prioritizer, logger)
	queue.AddSeed(domainURL)

	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	o := New(cfg.Crawler, cfg.Browser.NetworkIdleTimeout, deps.Session, queue, logger)
	result := o.Run(ctx, domainURL)
	result.Statistics["run_id"] = runID
	result.Statistics["domain_url"] = domainURL

	if result.Success {
		metrics.ObserveRun("success")
	} else {
		metrics.ObserveRun("failure")
	}

	persistResult(ctx, runID, startedAt, &result, deps, logger)
	publishCompletion(ctx, runID, &result, deps, logger)
	return &result, nil
}

// persistResult writes the full result JSON to the blob store and a summary
// row to the run store. Sink failures are logged, never fatal; the crawl
// already happened.
func persistResult(ctx context.Context, runID string, startedAt time.Time, result *Result, deps Deps, logger *zap.Logger) {
	var blobURI string
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Error("marshal crawl result", zap.String("run_id", runID), zap.Error(err))
		return
	}

	if deps.Results != nil {
		path := fmt.Sprintf("runs/%s/%s.json", startedAt.Format("2006-01-02"), runID)
		blobURI, err = deps.Results.PutObject(ctx, path, "application/json", bytes.NewReader(payload))
		if err != nil {
			logger.Error("store crawl result blob", zap.String("run_id", runID), zap.Error(err))
		} else {
			logger.Info("crawl result stored", zap.String("run_id", runID), zap.String("uri", blobURI))
		}
	}

	if deps.Runs == nil {
		return
	}
	record := storage.RunRecord{
		ID:            runID,
		DomainURL:     result.DomainURL,
		Success:       result.Success,
		PagesVisited:  intStat(result.Statistics, "pages_visited"),
		ProductCount:  len(result.ProductSchemas),
		SchemaCount:   len(result.SchemaObjects),
		Statistics:    result.Statistics,
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
		ResultBlobURI: blobURI,
	}
	if data, err := json.Marshal(result.ProductSchemas); err == nil {
		record.Products = data
	}
	if data, err := json.Marshal(result.NonProductSchemas); err == nil {
		record.NonProducts = data
	}
	if len(result.Errors) > 0 {
		if data, err := json.Marshal(crawlerr.Aggregate(result.Errors)); err == nil {
			record.ErrorSummary = data
		}
	}
	if err := deps.Runs.StoreRun(ctx, record); err != nil {
		logger.Error("store crawl run record", zap.String("run_id", runID), zap.Error(err))
	}
}

// completionEvent is the payload published when a run finishes, for the
// downstream enrichment pipeline.
type completionEvent struct {
	RunID        string `json:"run_id"`
	DomainURL    string `json:"domain_url"`
	Success      bool   `json:"success"`
	ProductCount int    `json:"product_count"`
	SchemaCount  int    `json:"schema_count"`
	Error        string `json:"error,omitempty"`
}

func publishCompletion(ctx context.Context, runID string, result *Result, deps Deps, logger *zap.Logger) {
	if deps.Publisher == nil || deps.Topic == "" {
		return
	}
	event := completionEvent{
		RunID:        runID,
		DomainURL:    result.DomainURL,
		Success:      result.Success,
		ProductCount: len(result.ProductSchemas),
		SchemaCount:  len(result.SchemaObjects),
		Error:        result.Error,
	}
	id, err := deps.Publisher.Publish(ctx, deps.Topic, event)
	if err != nil {
		logger.Error("publish run completion", zap.String("run_id", runID), zap.Error(err))
		return
	}
	logger.Info("run completion published", zap.String("run_id", runID), zap.String("message_id", id))
}

func intStat(stats map[string]any, key string) int {
	if v, ok := stats[key].(int); ok {
		return v
	}
	return 0
}
