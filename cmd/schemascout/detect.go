package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/browser"
	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/detect"
	"github.com/schemascout/schemascout/internal/schema"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Identify the main product on a single page",
		Long: `Renders one page, extracts its product schemas, and reports which of
them is the page's main product, with the confidence of that call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetectCommand(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runDetectCommand(ctx context.Context, url string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detector, err := detect.New(detect.Config{
		MainProductURLPatterns: cfg.Detection.MainProductURLPatterns,
		SuggestionIndicators:   cfg.Detection.SuggestionIndicators,
		MainProductIndicators:  cfg.Detection.MainProductIndicators,
		URLMatchStrong:         cfg.Detection.URLMatchStrong,
		ScoreDifferenceClear:   cfg.Detection.ScoreDifferenceClear,
		HighConfidenceMinimum:  cfg.Detection.HighConfidenceMinimum,
		MinWordLength:          cfg.Detection.MinWordLength,
	}, logger)
	if err != nil {
		return fmt.Errorf("build detector: %w", err)
	}

	session := browser.NewChromeSession(browser.Config{
		Headless:           cfg.Browser.Headless,
		NavigationTimeout:  cfg.Browser.NavigationTimeout,
		NetworkIdleTimeout: cfg.Browser.NetworkIdleTimeout,
		UserAgents:         cfg.Browser.UserAgents,
		UserDataDir:        cfg.Browser.UserDataDir,
	}, browser.NewDiagnostics(false, nil, logger), logger)
	if err := session.Open(ctx); err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer session.Close()

	products, page, err := extractProducts(ctx, session, cfg, logger, url)
	if err != nil {
		return err
	}
	defer func() { _ = page.Close() }()
	if len(products) == 0 {
		return fmt.Errorf("no product schemas found on %s", url)
	}

	currentURL, err := page.CurrentURL(ctx)
	if err != nil {
		currentURL = url
	}

	product, analysis := detector.IdentifyMainProduct(ctx, page, products, currentURL)

	report := struct {
		URL      string          `json:"url"`
		Product  map[string]any  `json:"product"`
		Analysis detect.Analysis `json:"analysis"`
	}{
		URL:      currentURL,
		Product:  detect.Summary(product),
		Analysis: analysis,
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func extractProducts(ctx context.Context, session browser.Session, cfg *config.Config, logger *zap.Logger, url string) ([]schema.Object, browser.Page, error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.Navigate(ctx, url); err != nil {
		_ = page.Close()
		return nil, nil, fmt.Errorf("navigate: %w", err)
	}
	_ = page.WaitNetworkIdle(ctx, cfg.Browser.NetworkIdleTimeout)

	texts, err := page.ScriptTexts(ctx)
	if err != nil {
		_ = page.Close()
		return nil, nil, fmt.Errorf("extract structured data: %w", err)
	}
	parsed := schema.NewParser(logger).Parse(texts)
	products, _ := schema.SplitProducts(schema.Deduplicate(parsed))
	return products, page, nil
}
