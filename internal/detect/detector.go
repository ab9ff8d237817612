// Package detect picks the main product when a page exposes several product
// schemas, separating the featured product from recommendations.
package detect

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/browser"
	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/schema"
	"github.com/schemascout/schemascout/internal/urlutil"
)

// Config tunes the detection pipeline.
type Config struct {
	MainProductURLPatterns []string
	SuggestionIndicators   []string
	MainProductIndicators  []string

	URLMatchStrong        float64
	ScoreDifferenceClear  float64
	HighConfidenceMinimum float64

	MinWordLength int
}

// Confidence labels how the winning candidate was chosen.
type Confidence string

const (
	// ConfidenceSingle means there was only one candidate.
	ConfidenceSingle Confidence = "single"
	// ConfidenceURLMatch means the URL slug named the product directly.
	ConfidenceURLMatch Confidence = "url_match"
	// ConfidenceClear means the winner led the runner-up by a clear margin.
	ConfidenceClear Confidence = "clear"
	// ConfidenceHigh means the winner's absolute score was high enough.
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow means the pick was ambiguous; the best candidate is
	// still returned.
	ConfidenceLow Confidence = "low"
)

// Analysis describes how the main product was selected.
type Analysis struct {
	Confidence Confidence `json:"confidence"`
	Score      float64    `json:"score"`
	Margin     float64    `json:"margin"`
	Candidates int        `json:"candidates"`
}

// Detector scores candidate products against the page they came from.
type Detector struct {
	cfg      Config
	patterns []*regexp.Regexp
	logger   *zap.Logger
}

// New compiles the URL pattern table and validates thresholds.
func New(cfg Config, logger *zap.Logger) (*Detector, error) {
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = 3
	}
	d := &Detector{cfg: cfg, logger: logging.OrNop(logger)}
	for _, p := range cfg.MainProductURLPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile main product pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// IdentifyMainProduct picks the primary product among candidates for the page
// at currentURL. It never refuses: under genuine ambiguity the top scorer is
// returned with ConfidenceLow. A nil product is returned only for an empty
// candidate list.
func (d *Detector) IdentifyMainProduct(ctx context.Context, page browser.Page, products []schema.Object, currentURL string) (schema.Object, Analysis) {
	switch len(products) {
	case 0:
		d.logger.Warn("no candidate products for main product detection", zap.String("url", currentURL))
		return nil, Analysis{}
	case 1:
		return products[0], Analysis{Confidence: ConfidenceSingle, Candidates: 1}
	}

	d.logger.Info("multiple products found, disambiguating",
		zap.Int("candidates", len(products)),
		zap.String("url", currentURL))

	if match, score := d.findByURLMatch(products, currentURL); match != nil {
		d.logger.Info("main product identified by url slug",
			zap.String("name", match.String("name")),
			zap.Float64("score", score))
		return match, Analysis{Confidence: ConfidenceURLMatch, Score: score, Candidates: len(products)}
	}

	type scored struct {
		product schema.Object
		score   float64
	}
	results := make([]scored, 0, len(products))
	for _, p := range products {
		results = append(results, scored{product: p, score: d.scoreCandidate(ctx, page, p, currentURL)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	best := results[0]
	margin := best.score - results[1].score
	analysis := Analysis{Score: best.score, Margin: margin, Candidates: len(products)}

	switch {
	case margin >= d.cfg.ScoreDifferenceClear:
		analysis.Confidence = ConfidenceClear
	case best.score >= d.cfg.HighConfidenceMinimum:
		analysis.Confidence = ConfidenceHigh
	default:
		analysis.Confidence = ConfidenceLow
		d.logger.Warn("ambiguous main product detection",
			zap.Float64("best", best.score),
			zap.Float64("second", results[1].score))
	}
	return best.product, analysis
}

// findByURLMatch is the fast path: when a candidate's name lines up strongly
// with the URL slug, no further analysis is needed.
func (d *Detector) findByURLMatch(products []schema.Object, currentURL string) (schema.Object, float64) {
	slug := urlutil.Slug(currentURL)

	var best schema.Object
	bestScore := 0.0
	for _, p := range products {
		name := p.String("name")
		if name == "" {
			continue
		}
		score := d.urlRelevance(name, slug, currentURL)
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	if bestScore > d.cfg.URLMatchStrong {
		return best, bestScore
	}
	return nil, bestScore
}

func (d *Detector) urlRelevance(productName, slug, fullURL string) float64 {
	if productName == "" || slug == "" {
		return 0
	}
	score := 0.0

	cleanName := urlutil.Alnum(productName)
	cleanSlug := urlutil.Alnum(slug)
	cleanURL := urlutil.Alnum(fullURL)

	words := urlutil.SignificantWords(productName, d.cfg.MinWordLength)
	matched := 0
	for _, w := range words {
		if strings.Contains(cleanSlug, w) || strings.Contains(cleanURL, w) {
			matched++
			score += 20
		}
	}
	if len(words) > 0 {
		switch ratio := float64(matched) / float64(len(words)); {
		case ratio >= 0.8:
			score += 30
		case ratio >= 0.6:
			score += 20
		case ratio >= 0.4:
			score += 10
		}
	}

	if cleanName != "" && strings.Contains(cleanSlug, cleanName) {
		score += 50
	} else if cleanName != "" && strings.Contains(cleanURL, cleanName) {
		score += 30
	}

	if len(productName) < 10 {
		score -= 10
	}
	return score
}

// scoreCandidate sums the five capped sub-scores.
func (d *Detector) scoreCandidate(ctx context.Context, page browser.Page, product schema.Object, currentURL string) float64 {
	name := product.String("name")

	score := d.urlPatternScore(currentURL, name)
	score += d.schemaCompleteness(product)
	score += d.htmlContextScore(ctx, page, name)
	score += d.nameQuality(name, currentURL)
	score += d.offerQuality(product)
	return score
}

// urlPatternScore rewards URLs shaped like product pages and overlap between
// the product name and the URL. Capped at 40.
func (d *Detector) urlPatternScore(currentURL, productName string) float64 {
	score := 0.0
	for _, re := range d.patterns {
		if re.MatchString(currentURL) {
			score += 25
			break
		}
	}

	if productName != "" {
		words := urlutil.SignificantWords(productName, d.cfg.MinWordLength)
		urlLower := strings.ToLower(currentURL)
		matched := 0
		for _, w := range words {
			if strings.Contains(urlLower, w) {
				matched++
			}
		}
		if len(words) > 0 {
			score += float64(int(float64(matched) / float64(len(words)) * 30))
		}
	}

	lower := strings.ToLower(currentURL)
	for _, indicator := range d.cfg.SuggestionIndicators {
		if strings.Contains(lower, indicator) {
			score -= 20
			break
		}
	}
	return clamp(score, 0, 40)
}

// schemaCompleteness rewards well-populated schemas. Capped at 30.
func (d *Detector) schemaCompleteness(product schema.Object) float64 {
	score := 0.0
	for _, field := range []string{"name", "description", "offers", "image"} {
		if truthy(product[field]) {
			score += 5
		}
	}
	for _, field := range []string{"brand", "sku", "mpn", "gtin13", "aggregateRating", "review"} {
		if truthy(product[field]) {
			score += 2
		}
	}
	if offers, ok := product.Map("offers"); ok {
		if truthy(offers["price"]) {
			score += 3
		}
		if truthy(offers["priceCurrency"]) {
			score += 2
		}
		if truthy(offers["availability"]) {
			score += 2
		}
	}
	if score > 30 {
		return 30
	}
	return score
}

// nameQuality rewards specific names aligned with the URL and penalizes
// suggestion wording. Capped at 20.
func (d *Detector) nameQuality(productName, currentURL string) float64 {
	if productName == "" {
		return 0
	}
	score := 0.0
	switch n := len(strings.TrimSpace(productName)); {
	case n > 50:
		score += 8
	case n > 20:
		score += 5
	case n > 10:
		score += 3
	}

	lower := strings.ToLower(productName)
	for _, indicator := range d.cfg.SuggestionIndicators {
		if strings.Contains(lower, indicator) {
			score -= 5
		}
	}

	path := strings.ToLower(currentURL)
	if u, err := url.Parse(currentURL); err == nil {
		path = strings.ToLower(u.Path)
	}
	allWords := urlutil.SignificantWords(productName, 0)
	matched := 0
	for _, w := range allWords {
		if len(w) > d.cfg.MinWordLength && strings.Contains(path, w) {
			matched++
		}
	}
	if len(allWords) > 0 {
		score += float64(int(float64(matched) / float64(len(allWords)) * 12))
	}
	return clamp(score, 0, 20)
}

// offerQuality rewards complete offer data. Capped at 20.
func (d *Detector) offerQuality(product schema.Object) float64 {
	offers, ok := product.Map("offers")
	if !ok {
		if arr, isArr := product.Slice("offers"); isArr && len(arr) > 0 {
			if m, isMap := arr[0].(map[string]any); isMap {
				offers = schema.Object(m)
				ok = true
			}
		}
	}
	if !ok {
		return 0
	}

	score := 0.0
	if truthy(offers["price"]) {
		score += 8
	}
	if truthy(offers["priceCurrency"]) {
		score += 4
	}
	if availability, _ := offers["availability"].(string); availability != "" {
		score += 4
		lower := strings.ToLower(availability)
		if strings.Contains(lower, "instock") || strings.Contains(lower, "available") {
			score += 2
		}
	}
	if truthy(offers["seller"]) {
		score += 2
	}
	if score > 20 {
		return 20
	}
	return score
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
