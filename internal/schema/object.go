// Package schema parses, flattens, classifies, and deduplicates schema.org
// JSON-LD objects extracted from product pages.
package schema

import "strings"

// Object is a single schema.org node. Values hold whatever the JSON decoder
// produced: strings, float64, bool, nested maps, and slices.
type Object map[string]any

// TypeValue returns the node's @type (or bare type) as a string. Multi-typed
// nodes yield their first string element; missing types yield "".
func (o Object) TypeValue() string {
	raw, ok := o["@type"]
	if !ok {
		raw = o["type"]
	}
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// String returns the value under key when it is a string, otherwise "".
func (o Object) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Map returns the value under key when it is a nested object.
func (o Object) Map(key string) (Object, bool) {
	switch v := o[key].(type) {
	case map[string]any:
		return Object(v), true
	case Object:
		return v, true
	}
	return nil, false
}

// Slice returns the value under key when it is an array.
func (o Object) Slice(key string) ([]any, bool) {
	v, ok := o[key].([]any)
	return v, ok
}

// nonEmpty reports whether key is present with a truthy value. Empty strings,
// zero numbers, empty containers, and explicit nulls all count as absent.
func (o Object) nonEmpty(key string) bool {
	v, ok := o[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
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

var productIndicatorFields = []string{"offers", "sku", "mpn", "gtin13", "gtin12", "gtin8", "ean", "upc"}

// IsProduct reports whether the node describes a product. A node qualifies
// when its @type (or type) matches schema.org Product in any spelling, when
// it carries any product indicator field, or when it has both a name and
// offers.
func (o Object) IsProduct() bool {
	raw, ok := o["@type"]
	if !ok || raw == "" {
		raw = o["type"]
	}
	switch v := raw.(type) {
	case string:
		if isProductType(v) {
			return true
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && isProductType(s) {
				return true
			}
		}
	}

	for _, field := range productIndicatorFields {
		if _, ok := o[field]; ok {
			return true
		}
	}
	_, hasName := o["name"]
	_, hasOffers := o["offers"]
	return hasName && hasOffers
}

func isProductType(t string) bool {
	switch strings.ToLower(t) {
	case "product", "http://schema.org/product", "https://schema.org/product":
		return true
	}
	return false
}
