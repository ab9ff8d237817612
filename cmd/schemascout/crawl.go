package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/browser"
	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/crawl"
	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/metrics"
	"github.com/schemascout/schemascout/internal/publisher/pubsub"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/storage/gcs"
	"github.com/schemascout/schemascout/internal/storage/local"
	"github.com/schemascout/schemascout/internal/storage/postgres"
)

type crawlOptions struct {
	maxPages    int
	maxProducts int
	minProducts int
	delay       float64
	metricsAddr string
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl <domain>",
		Short: "Crawl a site and collect its product schemas",
		Long: `Crawls the given domain breadth-first in prioritized batches, extracting
JSON-LD structured data from each rendered page until the product collection
goal or the page budget is reached. The full result is printed as JSON and,
when configured, written to the result store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCommand(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "page budget override")
	cmd.Flags().IntVar(&opts.maxProducts, "max-products", 0, "product collection goal override")
	cmd.Flags().IntVar(&opts.minProducts, "min-products", 0, "minimum product schemas for success override")
	cmd.Flags().Float64Var(&opts.delay, "delay", -1, "seconds between batches override")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while crawling")
	return cmd
}

// applyCrawlOverrides layers the per-run flag values over the loaded
// configuration. A delay of zero is a valid override; the flag default is
// negative so an unset flag leaves the configured delay alone.
func applyCrawlOverrides(cfg *config.Config, opts crawlOptions) {
	if opts.maxPages > 0 {
		cfg.Crawler.MaxPages = opts.maxPages
	}
	if opts.maxProducts > 0 {
		cfg.Crawler.CollectionGoal = opts.maxProducts
	}
	if opts.minProducts > 0 {
		cfg.Crawler.MinProducts = opts.minProducts
	}
	if opts.delay >= 0 {
		cfg.Crawler.DelaySeconds = opts.delay
	}
}

func runCrawlCommand(ctx context.Context, domain string, opts crawlOptions) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	applyCrawlOverrides(cfg, opts)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return err
	}
	defer cleanup()

	result, err := crawl.RunCrawl(ctx, domain, *cfg, deps)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))

	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}

// buildDeps wires the browser session and the configured sinks. The returned
// cleanup closes every external client; it is safe to call after a failed
// build.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (crawl.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pri, err := cfg.BuildPrioritizer()
	if err != nil {
		return crawl.Deps{}, cleanup, fmt.Errorf("build prioritizer: %w", err)
	}

	var gcsClient *gstorage.Client
	if cfg.Storage.GCSBucket != "" {
		gcsClient, err = gstorage.NewClient(ctx)
		if err != nil {
			return crawl.Deps{}, cleanup, fmt.Errorf("init gcs client: %w", err)
		}
		closers = append(closers, func() { _ = gcsClient.Close() })
	}

	shots, err := blobStore(gcsClient, cfg.Storage.GCSBucket, cfg.Browser.ScreenshotDir)
	if err != nil {
		return crawl.Deps{}, cleanup, fmt.Errorf("init screenshot store: %w", err)
	}
	results, err := blobStore(gcsClient, cfg.Storage.GCSBucket, cfg.Storage.ResultsDir)
	if err != nil {
		return crawl.Deps{}, cleanup, fmt.Errorf("init result store: %w", err)
	}

	diag := browser.NewDiagnostics(cfg.Browser.Diagnostics, shots, logger)
	session := browser.NewChromeSession(browser.Config{
		Headless:           cfg.Browser.Headless,
		NavigationTimeout:  cfg.Browser.NavigationTimeout,
		NetworkIdleTimeout: cfg.Browser.NetworkIdleTimeout,
		UserAgents:         cfg.Browser.UserAgents,
		UserDataDir:        cfg.Browser.UserDataDir,
	}, diag, logger)
	if err := session.Open(ctx); err != nil {
		return crawl.Deps{}, cleanup, fmt.Errorf("open browser session: %w", err)
	}

	deps := crawl.Deps{
		Session:     session,
		Prioritizer: pri,
		Results:     results,
		Logger:      logger,
	}

	if cfg.Storage.PostgresDSN != "" {
		runs, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
			DSN:   cfg.Storage.PostgresDSN,
			Table: "crawl_runs",
		})
		if err != nil {
			session.Close()
			return crawl.Deps{}, cleanup, fmt.Errorf("init run store: %w", err)
		}
		closers = append(closers, runs.Close)
		deps.Runs = runs
	}

	if cfg.Publisher.ProjectID != "" && cfg.Publisher.Topic != "" {
		client, err := gpubsub.NewClient(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			session.Close()
			return crawl.Deps{}, cleanup, fmt.Errorf("init pubsub client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		pub, err := pubsub.New(client, cfg.Publisher.Topic)
		if err != nil {
			session.Close()
			return crawl.Deps{}, cleanup, fmt.Errorf("init publisher: %w", err)
		}
		deps.Publisher = pub
		deps.Topic = cfg.Publisher.Topic
	}

	return deps, cleanup, nil
}

func blobStore(gcsClient *gstorage.Client, bucket, baseDir string) (storage.BlobStore, error) {
	if gcsClient != nil {
		return gcs.New(gcsClient, gcs.Config{Bucket: bucket})
	}
	return local.New(local.Config{BaseDir: baseDir})
}

func serveMetrics(addr string, logger *zap.Logger) {
	logger = logging.OrNop(logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
