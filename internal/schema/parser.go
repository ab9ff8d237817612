package schema

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/logging"
)

// Parser turns raw JSON-LD script payloads into flattened schema objects.
type Parser struct {
	logger *zap.Logger
}

// NewParser builds a parser. A nil logger disables logging.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logging.OrNop(logger)}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanPayload normalizes common HTML entities and collapses whitespace so
// entity-escaped script bodies decode as plain JSON.
func cleanPayload(content string) string {
	r := strings.NewReplacer(
		"&quot;", `"`,
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&apos;", "'",
	)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(r.Replace(content), " "))
}

// Parse decodes each payload, expands top-level arrays, and flattens nested
// structures into individual schema objects. Malformed payloads are logged
// and skipped; they never fail the batch.
func (p *Parser) Parse(payloads []string) []Object {
	var parsed []Object
	for i, content := range payloads {
		var data any
		if err := json.Unmarshal([]byte(cleanPayload(content)), &data); err != nil {
			snippet := content
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			p.logger.Warn("failed to parse JSON-LD script",
				zap.Int("script", i+1),
				zap.Error(err),
				zap.String("snippet", snippet))
			continue
		}
		switch v := data.(type) {
		case map[string]any:
			parsed = append(parsed, Object(v))
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					parsed = append(parsed, Object(m))
				}
			}
		}
	}

	flattened := Flatten(parsed)
	p.logger.Debug("flattened parsed objects",
		zap.Int("parsed", len(parsed)),
		zap.Int("schemas", len(flattened)))
	return flattened
}

// maxFlattenDepth bounds traversal of pathological or self-referential
// payloads.
const maxFlattenDepth = 32

// Flatten walks every nested object and array in objs and collects each node
// carrying an @type or type key, at any depth. Traversal is an explicit
// stack (depth-first, pre-order) with sorted keys so output order is
// deterministic and stack depth stays bounded.
func Flatten(objs []Object) []Object {
	type frame struct {
		node  any
		depth int
	}

	var out []Object
	stack := make([]frame, 0, len(objs))
	for i := len(objs) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: map[string]any(objs[i])})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxFlattenDepth {
			continue
		}
		switch v := f.node.(type) {
		case map[string]any:
			if _, ok := v["@type"]; ok {
				out = append(out, Object(v))
			} else if _, ok := v["type"]; ok {
				out = append(out, Object(v))
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: v[keys[i]], depth: f.depth + 1})
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: v[i], depth: f.depth + 1})
			}
		}
	}
	return out
}
