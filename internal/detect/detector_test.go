package detect

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/schema"
)

func testConfig() Config {
	return Config{
		MainProductURLPatterns: []string{
			`/products?/([^/]+)/?$`,
			`/item/([^/]+)/?$`,
			`/([^/]+)\.html?$`,
		},
		SuggestionIndicators: []string{
			"related", "recommended", "suggestion", "similar",
			"you-might", "also-like", "trending", "popular", "bestseller",
		},
		MainProductIndicators: []string{
			"product-main", "product-detail", "main-product", "product-hero",
		},
		URLMatchStrong:        70,
		ScoreDifferenceClear:  15,
		HighConfidenceMinimum: 40,
		MinWordLength:         3,
	}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)
	return d
}

// evalPage serves canned element lists keyed by product name.
type evalPage struct {
	elements map[string][]nameElement
}

func (p *evalPage) Navigate(context.Context, string) error               { return nil }
func (p *evalPage) WaitNetworkIdle(context.Context, time.Duration) error { return nil }
func (p *evalPage) ScriptTexts(context.Context) ([]string, error)        { return nil, nil }
func (p *evalPage) CurrentURL(context.Context) (string, error)           { return "", nil }
func (p *evalPage) Screenshot(context.Context) ([]byte, error)           { return nil, nil }
func (p *evalPage) Close() error                                         { return nil }

func (p *evalPage) Evaluate(_ context.Context, expression string, out any) error {
	for name, elements := range p.elements {
		quoted, _ := json.Marshal(name)
		if strings.Contains(expression, string(quoted)) {
			raw, _ := json.Marshal(elements)
			return json.Unmarshal(raw, out)
		}
	}
	raw, _ := json.Marshal([]nameElement{})
	return json.Unmarshal(raw, out)
}

func TestIdentifyMainProductTrivialCases(t *testing.T) {
	d := newTestDetector(t)

	t.Run("no candidates", func(t *testing.T) {
		product, analysis := d.IdentifyMainProduct(context.Background(), nil, nil, "https://shop.example/p")
		require.Nil(t, product)
		require.Zero(t, analysis.Candidates)
	})

	t.Run("single candidate", func(t *testing.T) {
		only := schema.Object{"@type": "Product", "name": "Lone Widget"}
		product, analysis := d.IdentifyMainProduct(context.Background(), nil, []schema.Object{only}, "https://shop.example/p")
		require.Equal(t, only, product)
		require.Equal(t, ConfidenceSingle, analysis.Confidence)
	})
}

func TestIdentifyMainProductBySlugFastPath(t *testing.T) {
	d := newTestDetector(t)
	blue := schema.Object{"@type": "Product", "name": "Blue Widget"}
	red := schema.Object{"@type": "Product", "name": "Red Widget"}

	product, analysis := d.IdentifyMainProduct(context.Background(), nil,
		[]schema.Object{red, blue}, "https://shop.example/blue-widget.html")

	require.Equal(t, "Blue Widget", product.String("name"))
	require.Equal(t, ConfidenceURLMatch, analysis.Confidence)
	require.Greater(t, analysis.Score, 70.0)
}

func TestURLRelevanceScoring(t *testing.T) {
	d := newTestDetector(t)

	t.Run("full name in slug", func(t *testing.T) {
		score := d.urlRelevance("Blue Widget", "blue-widget", "https://shop.example/blue-widget.html")
		// Two matched words, full ratio bonus, and the whole-name substring bonus.
		require.Equal(t, 2*20.0+30.0+50.0, score)
	})

	t.Run("short generic name penalized", func(t *testing.T) {
		long := d.urlRelevance("Widget Deluxe Edition", "widget-deluxe-edition", "https://shop.example/widget-deluxe-edition")
		short := d.urlRelevance("Widget", "widget-deluxe-edition", "https://shop.example/widget-deluxe-edition")
		require.Greater(t, long, short)
	})

	t.Run("empty inputs", func(t *testing.T) {
		require.Zero(t, d.urlRelevance("", "slug", "url"))
		require.Zero(t, d.urlRelevance("name", "", "url"))
	})
}

func TestComprehensiveScoringPrefersRicherCandidate(t *testing.T) {
	d := newTestDetector(t)

	main := schema.Object{
		"@type":       "Product",
		"name":        "Professional Espresso Machine with Integrated Grinder",
		"description": "A full-size machine",
		"image":       "https://shop.example/img/espresso.jpg",
		"brand":       map[string]any{"name": "Barista"},
		"sku":         "ESP-100",
		"offers": map[string]any{
			"price":         "899.00",
			"priceCurrency": "EUR",
			"availability":  "https://schema.org/InStock",
			"seller":        map[string]any{"name": "Shop"},
		},
	}
	suggestion := schema.Object{
		"@type": "Product",
		"name":  "Popular Pick",
	}

	page := &evalPage{elements: map[string][]nameElement{
		"Professional Espresso Machine with Integrated Grinder": {
			{TagName: "H1", ClassName: "product-detail-title", OffsetTop: 120, OffsetWidth: 800, OffsetHeight: 200},
		},
		"Popular Pick": {
			{TagName: "SPAN", ClassName: "related-products", OffsetTop: 2400, OffsetWidth: 120, OffsetHeight: 80},
		},
	}}

	product, analysis := d.IdentifyMainProduct(context.Background(), page,
		[]schema.Object{suggestion, main}, "https://shop.example/category/espresso")

	require.Equal(t, "Professional Espresso Machine with Integrated Grinder", product.String("name"))
	require.NotEqual(t, ConfidenceLow, analysis.Confidence)
	require.Equal(t, 2, analysis.Candidates)
}

func TestAmbiguousDetectionStillReturnsBest(t *testing.T) {
	d := newTestDetector(t)

	a := schema.Object{"@type": "Product", "name": "Thing One"}
	b := schema.Object{"@type": "Product", "name": "Thing Two"}

	product, analysis := d.IdentifyMainProduct(context.Background(), nil,
		[]schema.Object{a, b}, "https://shop.example/page")

	require.NotNil(t, product)
	require.Equal(t, ConfidenceLow, analysis.Confidence)
}

func TestSchemaCompletenessCap(t *testing.T) {
	d := newTestDetector(t)
	full := schema.Object{
		"name": "N", "description": "D", "image": "I",
		"brand": "B", "sku": "S", "mpn": "M", "gtin13": "G",
		"aggregateRating": map[string]any{"ratingValue": 4.0},
		"review":          []any{map[string]any{}},
		"offers": map[string]any{
			"price": "1", "priceCurrency": "USD", "availability": "InStock",
		},
	}
	require.Equal(t, 30.0, d.schemaCompleteness(full))
}

func TestOfferQuality(t *testing.T) {
	d := newTestDetector(t)

	t.Run("no offers", func(t *testing.T) {
		require.Zero(t, d.offerQuality(schema.Object{"name": "X"}))
	})

	t.Run("full offer with stock", func(t *testing.T) {
		p := schema.Object{"offers": map[string]any{
			"price":         "10",
			"priceCurrency": "USD",
			"availability":  "https://schema.org/InStock",
			"seller":        map[string]any{"name": "S"},
		}}
		require.Equal(t, 20.0, d.offerQuality(p))
	})

	t.Run("offer array uses first", func(t *testing.T) {
		p := schema.Object{"offers": []any{map[string]any{"price": "10"}}}
		require.Equal(t, 8.0, d.offerQuality(p))
	})
}

func TestSummary(t *testing.T) {
	product := schema.Object{
		"name":  "Blue Widget",
		"sku":   "BW-1",
		"brand": map[string]any{"name": "Widgets Inc"},
		"offers": map[string]any{
			"price":         "19.99",
			"priceCurrency": "USD",
			"availability":  "https://schema.org/InStock",
		},
	}
	s := Summary(product)
	require.Equal(t, "Blue Widget", s["name"])
	require.Equal(t, "Widgets Inc", s["brand"])
	require.Equal(t, "19.99 USD", s["price"])
	require.Equal(t, "In Stock", s["availability"])
}

func TestNewRejectsBadPattern(t *testing.T) {
	cfg := testConfig()
	cfg.MainProductURLPatterns = []string{`[`}
	_, err := New(cfg, nil)
	require.Error(t, err)
}
