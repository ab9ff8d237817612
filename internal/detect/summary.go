package detect

import (
	"strings"

	"github.com/schemascout/schemascout/internal/schema"
)

// Summary condenses the detected main product for logging and run output.
func Summary(product schema.Object) map[string]any {
	if product == nil {
		return map[string]any{}
	}

	out := map[string]any{
		"name": nameOrUnknown(product),
		"sku":  product["sku"],
	}

	if brand, ok := product.Map("brand"); ok {
		out["brand"] = brand.String("name")
	} else if b := product.String("brand"); b != "" {
		out["brand"] = b
	}

	offers := firstOffer(product)
	if offers != nil {
		if price := offers.String("price"); price != "" {
			out["price"] = strings.TrimSpace(price + " " + offers.String("priceCurrency"))
		}
		if availability := offers.String("availability"); availability != "" {
			out["availability"] = cleanAvailability(availability)
		}
	}

	if img := product["image"]; img != nil {
		out["image"] = img
	}
	if desc := product.String("description"); desc != "" {
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		out["description"] = desc
	}
	if rating, ok := product.Map("aggregateRating"); ok {
		out["rating"] = map[string]any{
			"value": rating["ratingValue"],
			"count": rating["reviewCount"],
		}
	}
	return out
}

func nameOrUnknown(product schema.Object) string {
	if name := product.String("name"); name != "" {
		return name
	}
	return "Unknown Product"
}

func firstOffer(product schema.Object) schema.Object {
	if offers, ok := product.Map("offers"); ok {
		return offers
	}
	if arr, ok := product.Slice("offers"); ok && len(arr) > 0 {
		if m, isMap := arr[0].(map[string]any); isMap {
			return schema.Object(m)
		}
	}
	return nil
}

// cleanAvailability strips schema.org URL prefixes, turning
// "https://schema.org/InStock" into "In Stock".
func cleanAvailability(availability string) string {
	if !strings.Contains(availability, "schema.org") {
		return availability
	}
	parts := strings.Split(availability, "/")
	last := parts[len(parts)-1]
	var b strings.Builder
	for i, r := range last {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
