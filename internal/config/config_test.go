package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	InitDefaults()
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	require.Equal(t, 50, cfg.Crawler.MaxPages)
	require.Equal(t, 5, cfg.Crawler.BatchSize)
	require.Equal(t, 5, cfg.Crawler.CollectionGoal)
	require.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	require.Equal(t, 15*time.Second, cfg.Browser.NetworkIdleTimeout)
	require.Len(t, cfg.Browser.UserAgents, 5)
	require.True(t, cfg.Browser.Headless)
	require.False(t, cfg.Browser.Diagnostics)
	require.NotEmpty(t, cfg.Prioritizer.URLPatterns)
	require.NotEmpty(t, cfg.Prioritizer.ContextCategories)
	require.Equal(t, 70.0, cfg.Detection.URLMatchStrong)
	require.Equal(t, 15.0, cfg.Detection.ScoreDifferenceClear)
	require.Equal(t, 40.0, cfg.Detection.HighConfidenceMinimum)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SCHEMASCOUT_CRAWLER_MAX_PAGES", "7")
	cfg := loadDefaults(t)
	require.Equal(t, 7, cfg.Crawler.MaxPages)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"zero batch size", func(c *Config) { c.Crawler.BatchSize = 0 }},
		{"zero collection goal", func(c *Config) { c.Crawler.CollectionGoal = 0 }},
		{"negative min products", func(c *Config) { c.Crawler.MinProducts = -1 }},
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }},
		{"empty user agents", func(c *Config) { c.Browser.UserAgents = nil }},
		{"negative threshold", func(c *Config) { c.Detection.URLMatchStrong = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestBuildPrioritizerFromDefaults(t *testing.T) {
	cfg := loadDefaults(t)
	p, err := cfg.BuildPrioritizer()
	require.NoError(t, err)

	require.Equal(t, 100.0, p.URLScore("https://shop.example/products/blue-widget"))
	require.Equal(t, -100.0, p.URLScore("https://shop.example/theme.css"))
	require.Equal(t, -50.0, p.URLScore("https://shop.example/cart"))
}
