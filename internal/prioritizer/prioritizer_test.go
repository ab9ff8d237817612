package prioritizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testPatterns() []PatternScore {
	return []PatternScore{
		{Pattern: `/checkout|/cart|/login|/account`, Score: -50},
		{Pattern: `\.(jpg|jpeg|png|gif|svg|css|js|pdf|zip)(\?|$)`, Score: -100},
		{Pattern: `/products?/`, Score: 100},
		{Pattern: `/(item|pdp|dp)/`, Score: 95},
		{Pattern: `/(category|categories|collections?|c)/`, Score: 60},
	}
}

func testCategories() []ContextCategory {
	return []ContextCategory{
		{Name: "product_indicators", Patterns: []string{"add to cart", "product", "price"}, Score: 30},
		{Name: "category_indicators", Patterns: []string{"collection", "category"}, Score: 15},
		{Name: "navigation", Patterns: []string{"footer", "copyright", "sign in"}, Score: -20},
	}
}

func newTestPrioritizer(t *testing.T) *Prioritizer {
	t.Helper()
	p, err := New(testPatterns(), testCategories())
	require.NoError(t, err)
	return p
}

func TestNewInvalidPattern(t *testing.T) {
	_, err := New([]PatternScore{{Pattern: `[unclosed`, Score: 1}}, nil)
	require.Error(t, err)
}

func TestURLScoreFirstMatchWins(t *testing.T) {
	p := newTestPrioritizer(t)
	cases := []struct {
		name string
		url  string
		want float64
	}{
		{"product pattern", "https://shop.example/products/blue-widget", 100},
		{"cart beats product by order", "https://shop.example/cart/products/x", -50},
		{"asset", "https://shop.example/logo.png", -100},
		{"category", "https://shop.example/collections/widgets", 60},
		{"product html heuristic", "https://shop.example/widget-item.html", 85},
		{"plain html heuristic", "https://shop.example/about.html", 40},
		{"shop path heuristic", "https://shop.example/shopfront", 50},
		{"default", "https://widgets.example/blog/post-1", 20},
		{"root default", "https://shop.example/", 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, p.URLScore(tc.url))
		})
	}
}

func TestContextScoreFirstCategoryWins(t *testing.T) {
	p := newTestPrioritizer(t)

	t.Run("element text", func(t *testing.T) {
		ctx := LinkContext{ElementInfo: ElementInfo{Text: "Add To Cart"}}
		require.Equal(t, 30.0, p.ContextScore(ctx))
	})

	t.Run("product beats category regardless of position", func(t *testing.T) {
		ctx := LinkContext{ElementInfo: ElementInfo{Class: "collection-tile product-card"}}
		require.Equal(t, 30.0, p.ContextScore(ctx))
	})

	t.Run("parent text", func(t *testing.T) {
		ctx := LinkContext{ParentText: "Browse our widget Category"}
		require.Equal(t, 15.0, p.ContextScore(ctx))
	})

	t.Run("sibling grandchildren", func(t *testing.T) {
		ctx := LinkContext{SiblingTexts: []NeighborTexts{{GrandchildrenTexts: []string{"best price today"}}}}
		require.Equal(t, 30.0, p.ContextScore(ctx))
	})

	t.Run("negative navigation", func(t *testing.T) {
		ctx := LinkContext{ElementInfo: ElementInfo{ID: "footer-links"}}
		require.Equal(t, -20.0, p.ContextScore(ctx))
	})

	t.Run("data attributes", func(t *testing.T) {
		ctx := LinkContext{ElementInfo: ElementInfo{DataAttrs: map[string]string{"data-product-id": "42"}}}
		require.Equal(t, 30.0, p.ContextScore(ctx))
	})

	t.Run("no match", func(t *testing.T) {
		require.Equal(t, 0.0, p.ContextScore(LinkContext{ElementInfo: ElementInfo{Text: "hello"}}))
	})
}

func TestScoreSumsURLAndContext(t *testing.T) {
	p := newTestPrioritizer(t)
	ctx := LinkContext{ElementInfo: ElementInfo{Text: "Add to cart"}}
	require.Equal(t, 130.0, p.Score("https://shop.example/products/w", ctx))
}

func TestPrioritizeSortsDescending(t *testing.T) {
	p := newTestPrioritizer(t)
	scored := p.Prioritize([]Link{
		{URL: "https://shop.example/blog/a"},
		{URL: "https://shop.example/products/b"},
		{URL: "https://shop.example/collections/c"},
	})
	require.Len(t, scored, 3)
	require.Equal(t, "https://shop.example/products/b", scored[0].URL)
	require.Equal(t, "https://shop.example/collections/c", scored[1].URL)
	require.Equal(t, "https://shop.example/blog/a", scored[2].URL)
}
