// Package prioritizer scores candidate links by how likely they are to lead
// to product pages. Higher scores are crawled first.
package prioritizer

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// PatternScore binds a URL regex to the score returned when it matches.
type PatternScore struct {
	Pattern string  `mapstructure:"pattern" json:"pattern"`
	Score   float64 `mapstructure:"score" json:"score"`
}

// ContextCategory is an ordered group of substring patterns sharing a score.
type ContextCategory struct {
	Name     string   `mapstructure:"name" json:"name"`
	Patterns []string `mapstructure:"patterns" json:"patterns"`
	Score    float64  `mapstructure:"score" json:"score"`
}

// ElementInfo describes one DOM element near a discovered link.
type ElementInfo struct {
	Text      string            `json:"text,omitempty"`
	Title     string            `json:"title,omitempty"`
	Class     string            `json:"class,omitempty"`
	ID        string            `json:"id,omitempty"`
	DataAttrs map[string]string `json:"dataAttributes,omitempty"`
	Children  []ElementInfo     `json:"children,omitempty"`
}

// NeighborTexts carries the text of a nearby element and its descendants.
type NeighborTexts struct {
	Text              string   `json:"text,omitempty"`
	ChildrenTexts     []string `json:"childrenTexts,omitempty"`
	GrandchildrenTexts []string `json:"grandchildrenTexts,omitempty"`
}

// LinkContext is the DOM neighborhood captured for a link at extraction time.
type LinkContext struct {
	ElementInfo
	ParentText          string          `json:"parentText,omitempty"`
	ChildrenTexts       []string        `json:"childrenTexts,omitempty"`
	GrandchildrenTexts  []string        `json:"grandchildrenTexts,omitempty"`
	SiblingTexts        []NeighborTexts `json:"siblingTexts,omitempty"`
	ParentChildrenTexts []NeighborTexts `json:"parentChildrenTexts,omitempty"`
	Parent              *ElementInfo    `json:"parent,omitempty"`
}

// Link is one discovered link with its DOM context.
type Link struct {
	URL     string      `json:"url"`
	Context LinkContext `json:"context"`
}

// Scored pairs a URL with its final priority.
type Scored struct {
	URL   string
	Score float64
}

// Prioritizer applies ordered URL patterns plus context keyword categories.
// Both tables are first-match-wins; order is significant.
type Prioritizer struct {
	patterns   []compiledPattern
	categories []ContextCategory
}

type compiledPattern struct {
	re    *regexp.Regexp
	score float64
}

// New compiles the pattern tables. Invalid regexes fail construction.
func New(patterns []PatternScore, categories []ContextCategory) (*Prioritizer, error) {
	p := &Prioritizer{categories: categories}
	for _, ps := range patterns {
		re, err := regexp.Compile("(?i)" + ps.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile url pattern %q: %w", ps.Pattern, err)
		}
		p.patterns = append(p.patterns, compiledPattern{re: re, score: ps.Score})
	}
	return p, nil
}

// Prioritize scores links and returns them sorted descending by score. The
// sort is stable so equally scored links keep discovery order.
func (p *Prioritizer) Prioritize(links []Link) []Scored {
	out := make([]Scored, 0, len(links))
	for _, l := range links {
		out = append(out, Scored{URL: l.URL, Score: p.Score(l.URL, l.Context)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Score is the sum of the URL score and the context score.
func (p *Prioritizer) Score(rawURL string, ctx LinkContext) float64 {
	return p.URLScore(rawURL) + p.ContextScore(ctx)
}

var productWords = []string{"product", "item", "buy", "detail", "view", "pdp"}
var shopWords = []string{"shop", "store", "catalog", "browse"}

// URLScore returns the first matching pattern's score, then falls back to
// .html and shop-path heuristics, and finally a neutral default.
func (p *Prioritizer) URLScore(rawURL string) float64 {
	for _, cp := range p.patterns {
		if cp.re.MatchString(rawURL) {
			return cp.score
		}
	}

	lower := strings.ToLower(rawURL)
	if strings.HasSuffix(rawURL, ".html") {
		for _, w := range productWords {
			if strings.Contains(lower, w) {
				return 85.0
			}
		}
		return 40.0
	}

	if u, err := url.Parse(rawURL); err == nil && u.Path != "" && u.Path != "/" {
		for _, w := range shopWords {
			if strings.Contains(lower, w) {
				return 50.0
			}
		}
	}
	return 20.0
}

// ContextScore returns the score of the first category with any pattern found
// anywhere in the link's DOM neighborhood, or 0 when nothing matches.
func (p *Prioritizer) ContextScore(ctx LinkContext) float64 {
	for _, cat := range p.categories {
		for _, pattern := range cat.Patterns {
			if contextContains(ctx, strings.ToLower(pattern)) {
				return cat.Score
			}
		}
	}
	return 0.0
}

func contextContains(ctx LinkContext, pattern string) bool {
	if elementContains(ctx.ElementInfo, pattern) {
		return true
	}
	if strings.Contains(strings.ToLower(ctx.ParentText), pattern) {
		return true
	}
	if textsContain(ctx.ChildrenTexts, pattern) || textsContain(ctx.GrandchildrenTexts, pattern) {
		return true
	}
	for _, n := range ctx.SiblingTexts {
		if neighborContains(n, pattern) {
			return true
		}
	}
	for _, n := range ctx.ParentChildrenTexts {
		if neighborContains(n, pattern) {
			return true
		}
	}
	if ctx.Parent != nil {
		if elementContains(*ctx.Parent, pattern) {
			return true
		}
		if childrenContain(ctx.Parent.Children, pattern, 0) {
			return true
		}
	}
	return childrenContain(ctx.Children, pattern, 0)
}

func neighborContains(n NeighborTexts, pattern string) bool {
	return strings.Contains(strings.ToLower(n.Text), pattern) ||
		textsContain(n.ChildrenTexts, pattern) ||
		textsContain(n.GrandchildrenTexts, pattern)
}

func textsContain(texts []string, pattern string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), pattern) {
			return true
		}
	}
	return false
}

func elementContains(e ElementInfo, pattern string) bool {
	for _, field := range []string{e.Text, e.Title, e.Class, e.ID} {
		if strings.Contains(strings.ToLower(field), pattern) {
			return true
		}
	}
	for name, value := range e.DataAttrs {
		if strings.Contains(strings.ToLower(name), pattern) ||
			strings.Contains(strings.ToLower(value), pattern) {
			return true
		}
	}
	return false
}

const maxChildDepth = 3

func childrenContain(children []ElementInfo, pattern string, depth int) bool {
	if depth > maxChildDepth {
		return false
	}
	for _, child := range children {
		if elementContains(child, pattern) {
			return true
		}
		if childrenContain(child.Children, pattern, depth+1) {
			return true
		}
	}
	return false
}
