// Package urlutil contains URL normalization and domain-matching helpers
// shared by the crawler subsystems.
package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidDomain wraps domain validation failures so callers can classify
// them separately from transient crawl errors.
type ErrInvalidDomain struct {
	Input  string
	Reason string
}

func (e *ErrInvalidDomain) Error() string {
	return fmt.Sprintf("invalid domain url %q: %s", e.Input, e.Reason)
}

// NormalizeDomain cleans and standardizes a caller-supplied domain URL.
// A missing scheme defaults to https, and query, fragment, and any trailing
// slash are stripped so the seed is stable across equivalent spellings.
func NormalizeDomain(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ErrInvalidDomain{Input: raw, Reason: "empty"}
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &ErrInvalidDomain{Input: raw, Reason: err.Error()}
	}
	if parsed.Host == "" {
		return "", &ErrInvalidDomain{Input: raw, Reason: "missing host"}
	}
	clean := parsed.Scheme + "://" + parsed.Host
	if parsed.Path != "" && parsed.Path != "/" {
		clean += strings.TrimRight(parsed.Path, "/")
	}
	return clean, nil
}

// IsSameDomain reports whether raw belongs to the same site as base,
// accepting subdomains and resolving relative URLs against base first.
// A leading "www." on the base host is ignored, so links to example.com,
// www.example.com, and shop.example.com all match a www.example.com base.
func IsSameDomain(raw, base string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	baseParsed, err := url.Parse(base)
	if err != nil || baseParsed.Host == "" {
		return false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		resolved, rerr := baseParsed.Parse(raw)
		if rerr != nil {
			return false
		}
		raw = resolved.String()
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Host)
	baseHost := strings.ToLower(baseParsed.Host)
	if host == baseHost {
		return true
	}
	baseHost = strings.TrimPrefix(baseHost, "www.")
	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// Slug returns the final path segment of a URL with its extension removed,
// used for matching product names against product-page URLs.
func Slug(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(parsed.Path, "/")
	slug := segments[len(segments)-1]
	if idx := strings.Index(slug, "."); idx >= 0 {
		slug = slug[:idx]
	}
	return slug
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Alnum lowercases s and strips everything that is not a letter or digit.
func Alnum(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

var wordPattern = regexp.MustCompile(`\w+`)

// SignificantWords extracts lowercase words longer than minLen characters.
func SignificantWords(s string, minLen int) []string {
	var words []string
	for _, w := range wordPattern.FindAllString(s, -1) {
		if len(w) > minLen {
			words = append(words, strings.ToLower(w))
		}
	}
	return words
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeForFilename collapses a URL into a filesystem-safe token of at
// most maxLen characters, used for diagnostic artifact names.
func SanitizeForFilename(raw string, maxLen int) string {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	s = unsafeFilenameChars.ReplaceAllString(s, "_")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
