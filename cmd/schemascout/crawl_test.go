package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemascout/schemascout/internal/config"
)

func TestCrawlCommandFlags(t *testing.T) {
	cmd := newCrawlCmd()
	for _, name := range []string{"max-pages", "max-products", "min-products", "delay", "metrics-addr"} {
		require.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestApplyCrawlOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Crawler.MaxPages = 100
	cfg.Crawler.CollectionGoal = 50
	cfg.Crawler.MinProducts = 1
	cfg.Crawler.DelaySeconds = 1.5

	applyCrawlOverrides(cfg, crawlOptions{maxPages: 20, maxProducts: 5, minProducts: 2, delay: 0})

	assert.Equal(t, 20, cfg.Crawler.MaxPages)
	assert.Equal(t, 5, cfg.Crawler.CollectionGoal)
	assert.Equal(t, 2, cfg.Crawler.MinProducts)
	assert.Zero(t, cfg.Crawler.DelaySeconds)
}

func TestApplyCrawlOverridesUnsetFlagsKeepConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Crawler.MaxPages = 100
	cfg.Crawler.DelaySeconds = 1.5

	applyCrawlOverrides(cfg, crawlOptions{delay: -1})

	assert.Equal(t, 100, cfg.Crawler.MaxPages)
	assert.Equal(t, 1.5, cfg.Crawler.DelaySeconds)
}
