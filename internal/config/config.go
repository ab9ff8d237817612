// Package config initializes application configuration with Viper and
// exposes it as an immutable typed snapshot. Settings come from a config
// file, environment variables, and defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/schemascout/schemascout/internal/prioritizer"
)

// Crawler controls the crawl loop.
type Crawler struct {
	MaxPages          int           `mapstructure:"max_pages"`
	BatchSize         int           `mapstructure:"batch_size"`
	CollectionGoal    int           `mapstructure:"collection_goal"`
	MinProducts       int           `mapstructure:"min_products"`
	DelaySeconds      float64       `mapstructure:"delay_seconds"`
	ExtractionRetries int          `mapstructure:"extraction_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// Browser controls the headless browser session.
type Browser struct {
	Headless           bool          `mapstructure:"headless"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout"`
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout"`
	UserAgents         []string      `mapstructure:"user_agents"`
	UserDataDir        string        `mapstructure:"user_data_dir"`
	Diagnostics        bool          `mapstructure:"diagnostics"`
	ScreenshotDir      string        `mapstructure:"screenshot_dir"`
}

// Prioritizer holds the ordered URL pattern and context keyword tables.
type Prioritizer struct {
	URLPatterns       []prioritizer.PatternScore    `mapstructure:"url_patterns"`
	ContextCategories []prioritizer.ContextCategory `mapstructure:"context_categories"`
}

// Detection tunes main-product disambiguation.
type Detection struct {
	MainProductURLPatterns []string `mapstructure:"main_product_url_patterns"`
	SuggestionIndicators   []string `mapstructure:"suggestion_indicators"`
	MainProductIndicators  []string `mapstructure:"main_product_indicators"`

	URLMatchStrong        float64 `mapstructure:"url_match_strong"`
	ScoreDifferenceClear  float64 `mapstructure:"score_difference_clear"`
	HighConfidenceMinimum float64 `mapstructure:"high_confidence_minimum"`

	MinWordLength int `mapstructure:"min_word_length"`
}

// Storage selects where run results and diagnostics are written.
type Storage struct {
	ResultsDir  string `mapstructure:"results_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Publisher selects where run completion events are sent.
type Publisher struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Config is the full application configuration. Treat it as read-only after
// Load.
type Config struct {
	Development bool        `mapstructure:"development"`
	Crawler     Crawler     `mapstructure:"crawler"`
	Browser     Browser     `mapstructure:"browser"`
	Prioritizer Prioritizer `mapstructure:"prioritizer"`
	Detection   Detection   `mapstructure:"detection"`
	Storage     Storage     `mapstructure:"storage"`
	Publisher   Publisher   `mapstructure:"publisher"`
}

// defaultUserAgents is the fixed pool newPage draws from.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

func defaultURLPatterns() []map[string]any {
	return []map[string]any{
		{"pattern": `\.(jpg|jpeg|png|gif|svg|webp|ico|css|js|woff2?|ttf|pdf|zip|xml)(\?|#|$)`, "score": -100.0},
		{"pattern": `/(cart|checkout|login|signin|register|account|wishlist|compare)(/|$)`, "score": -50.0},
		{"pattern": `/(privacy|terms|imprint|legal|cookie)`, "score": -30.0},
		{"pattern": `/products?/[^/]+`, "score": 100.0},
		{"pattern": `/(item|pdp|dp|detail)/[^/]+`, "score": 95.0},
		{"pattern": `/p/[^/]+`, "score": 90.0},
		{"pattern": `/(category|categories|collections?|c)/[^/]+`, "score": 60.0},
		{"pattern": `/(sale|deals|offers|new-arrivals)(/|$)`, "score": 55.0},
		{"pattern": `/(blog|news|press|about|contact|faq|help|support)(/|$)`, "score": 5.0},
	}
}

func defaultContextCategories() []map[string]any {
	return []map[string]any{
		{"name": "product_indicators", "score": 30.0, "patterns": []string{
			"add to cart", "add-to-cart", "buy now", "product-card", "product-tile", "price",
		}},
		{"name": "category_indicators", "score": 15.0, "patterns": []string{
			"collection", "category", "shop all", "view all",
		}},
		{"name": "navigation_noise", "score": -20.0, "patterns": []string{
			"footer", "copyright", "newsletter", "sign in", "social",
		}},
	}
}

// InitDefaults registers every default with Viper and wires environment
// variable overrides. Call once at startup before Load.
func InitDefaults() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/schemascout/")
	viper.AddConfigPath("$HOME/.schemascout")

	viper.SetDefault("development", false)

	viper.SetDefault("crawler.max_pages", 50)
	viper.SetDefault("crawler.batch_size", 5)
	viper.SetDefault("crawler.collection_goal", 5)
	viper.SetDefault("crawler.min_products", 1)
	viper.SetDefault("crawler.delay_seconds", 1.0)
	viper.SetDefault("crawler.extraction_retries", 2)
	viper.SetDefault("crawler.retry_delay", "500ms")

	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.navigation_timeout", "30s")
	viper.SetDefault("browser.network_idle_timeout", "15s")
	viper.SetDefault("browser.user_agents", defaultUserAgents)
	viper.SetDefault("browser.user_data_dir", "")
	viper.SetDefault("browser.diagnostics", false)
	viper.SetDefault("browser.screenshot_dir", "data/screenshots")

	viper.SetDefault("prioritizer.url_patterns", defaultURLPatterns())
	viper.SetDefault("prioritizer.context_categories", defaultContextCategories())

	viper.SetDefault("detection.main_product_url_patterns", []string{
		`/products?/([^/]+)/?$`,
		`/liquids/([^/]+)/?$`,
		`/item/([^/]+)/?$`,
		`/p/([^/]+)/?$`,
		`/buy/([^/]+)/?$`,
		`/detail/([^/]+)/?$`,
		`/shop/([^/]+)/?$`,
		`/([^/]+)\.html?$`,
		`/([^/]+)\.html?[#?]`,
	})
	viper.SetDefault("detection.suggestion_indicators", []string{
		"related", "recommended", "suggestion", "similar", "other",
		"you-might", "also-like", "customers-also", "more-from",
		"recently-viewed", "trending", "popular", "bestseller",
		"bundle", "addon", "accessory", "complement",
	})
	viper.SetDefault("detection.main_product_indicators", []string{
		"product-main", "product-detail", "product-info", "product-page",
		"main-product", "primary-product", "product-hero", "product-focus",
		"pdp-main", "item-detail", "product-container", "product-wrapper",
	})
	viper.SetDefault("detection.url_match_strong", 70.0)
	viper.SetDefault("detection.score_difference_clear", 15.0)
	viper.SetDefault("detection.high_confidence_minimum", 40.0)
	viper.SetDefault("detection.min_word_length", 3)

	viper.SetDefault("storage.results_dir", "data/results")
	viper.SetDefault("storage.gcs_bucket", "")
	viper.SetDefault("storage.postgres_dsn", "")

	viper.SetDefault("publisher.project_id", "")
	viper.SetDefault("publisher.topic", "")

	viper.SetEnvPrefix("SCHEMASCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the config file if present and unmarshals the merged settings.
// A missing config file is not an error; defaults and environment variables
// still apply.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the crawl loop cannot run with.
func (c *Config) Validate() error {
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be positive, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be positive, got %d", c.Crawler.BatchSize)
	}
	if c.Crawler.CollectionGoal <= 0 {
		return fmt.Errorf("crawler.collection_goal must be positive, got %d", c.Crawler.CollectionGoal)
	}
	if c.Crawler.MinProducts < 0 {
		return fmt.Errorf("crawler.min_products must not be negative, got %d", c.Crawler.MinProducts)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive, got %s", c.Browser.NavigationTimeout)
	}
	if len(c.Browser.UserAgents) == 0 {
		return fmt.Errorf("browser.user_agents must not be empty")
	}
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"detection.url_match_strong", c.Detection.URLMatchStrong},
		{"detection.score_difference_clear", c.Detection.ScoreDifferenceClear},
		{"detection.high_confidence_minimum", c.Detection.HighConfidenceMinimum},
	} {
		if t.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", t.name, t.value)
		}
	}
	return nil
}

// BuildPrioritizer compiles the configured pattern tables.
func (c *Config) BuildPrioritizer() (*prioritizer.Prioritizer, error) {
	return prioritizer.New(c.Prioritizer.URLPatterns, c.Prioritizer.ContextCategories)
}
