package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// identifierFields is the priority order used to derive a product identity
// key. Earlier fields win.
var identifierFields = []string{
	"sku", "mpn", "gtin13", "gtin12", "gtin8", "ean", "upc",
	"isbn", "identifier", "url", "name",
}

// ProductIdentifier derives a normalized identity key ("field:value",
// lowercased) from the first populated identifier field, falling back to the
// same fields nested inside a single offers object. Returns "" when no
// identifier is present.
func ProductIdentifier(obj Object) string {
	for _, field := range identifierFields {
		if v, ok := obj[field].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return field + ":" + strings.ToLower(trimmed)
			}
		}
	}
	if offers, ok := obj.Map("offers"); ok {
		for _, field := range identifierFields {
			if v, ok := offers[field].(string); ok {
				if trimmed := strings.TrimSpace(v); trimmed != "" {
					return "offers." + field + ":" + strings.ToLower(trimmed)
				}
			}
		}
	}
	return ""
}

// Deduplicate splits objs into products and non-products and deduplicates
// each group: products by identifier keeping the most comprehensive object,
// non-products by first seen per type. Results preserve first-seen order
// within each group, products first.
func Deduplicate(objs []Object) []Object {
	if len(objs) == 0 {
		return nil
	}
	var products, nonProducts []Object
	for _, obj := range objs {
		if obj.IsProduct() {
			products = append(products, obj)
		} else {
			nonProducts = append(nonProducts, obj)
		}
	}
	out := deduplicateProducts(products)
	return append(out, deduplicateNonProducts(nonProducts)...)
}

// SplitProducts partitions deduplicated objects into product and non-product
// groups.
func SplitProducts(objs []Object) (products, nonProducts []Object) {
	for _, obj := range objs {
		if obj.IsProduct() {
			products = append(products, obj)
		} else {
			nonProducts = append(nonProducts, obj)
		}
	}
	return products, nonProducts
}

func deduplicateProducts(products []Object) []Object {
	if len(products) == 0 {
		return nil
	}
	var order []string
	groups := make(map[string][]Object)
	for i, obj := range products {
		key := ProductIdentifier(obj)
		if key == "" {
			// No identifier means no evidence of duplication; keep it.
			key = fmt.Sprintf("unique_%d", i)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], obj)
	}

	out := make([]Object, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, mostComprehensive(group))
	}
	return out
}

func deduplicateNonProducts(objs []Object) []Object {
	if len(objs) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []Object
	for _, obj := range objs {
		key := strings.ToLower(obj.TypeValue())
		if key == "" {
			key = "unknown"
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, obj)
	}
	return out
}

func mostComprehensive(group []Object) Object {
	best := group[0]
	bestScore := Comprehensiveness(best)
	for _, obj := range group[1:] {
		if s := Comprehensiveness(obj); s > bestScore {
			best, bestScore = obj, s
		}
	}
	return best
}

// Comprehensiveness scores how complete a product object is: its compact
// serialized length plus fixed bonuses for important top-level, offer, and
// rating fields.
func Comprehensiveness(obj Object) int {
	raw, err := json.Marshal(obj)
	score := 0
	if err == nil {
		score = len(raw)
	}

	for _, field := range []string{"name", "description", "image", "offers", "brand", "aggregateRating", "review"} {
		if obj.nonEmpty(field) {
			score += 100
		}
	}
	if offers, ok := obj.Map("offers"); ok {
		for _, field := range []string{"price", "priceCurrency", "availability", "itemCondition"} {
			if offers.nonEmpty(field) {
				score += 50
			}
		}
	}
	if rating, ok := obj.Map("aggregateRating"); ok {
		for _, field := range []string{"ratingValue", "reviewCount"} {
			if rating.nonEmpty(field) {
				score += 30
			}
		}
	}
	return score
}
