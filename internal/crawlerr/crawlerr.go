// Package crawlerr defines the typed error taxonomy for crawl failures and
// the heuristics that map raw errors onto it.
package crawlerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind identifies a category of crawl failure.
type Kind string

// Failure categories, aggregated for summary reporting.
const (
	KindNavigationTimeout     Kind = "navigation_timeout"
	KindNetworkError          Kind = "network_error"
	KindDNSError              Kind = "dns_error"
	KindSSLError              Kind = "ssl_error"
	KindHTTPError             Kind = "http_error"
	KindContentNotAccessible  Kind = "content_not_accessible"
	KindJavascriptError       Kind = "javascript_error"
	KindDOMAccessError        Kind = "dom_access_error"
	KindNoStructuredData      Kind = "no_structured_data"
	KindStructuredDataParse   Kind = "structured_data_parse_error"
	KindNoProductSchemas      Kind = "no_product_schemas"
	KindInvalidStructure      Kind = "invalid_structured_data_structure"
	KindBrowserError          Kind = "browser_error"
	KindResourceLimit         Kind = "resource_limit"
	KindUnknown               Kind = "unknown_error"
)

// Error is a typed crawl failure. It is created at the point of failure and
// never mutated afterwards.
type Error struct {
	Kind      Kind           `json:"kind"`
	Message   string         `json:"message"`
	URL       string         `json:"url"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Kind, e.Message, e.URL)
}

// New builds a typed error stamped with the current time.
func New(kind Kind, message, url string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		URL:       url,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails returns a copy of e carrying the extra context map.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Classify maps an arbitrary error onto the taxonomy. Matching is heuristic,
// based on error type and message substrings, and is applied in a fixed
// priority order: timeout before network before DNS before SSL before HTTP
// status before parse before JS/DOM before browser before the catch-all.
func Classify(err error, url string) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case isTimeout(err, lower):
		return New(KindNavigationTimeout, "navigation timed out: "+msg, url)
	case containsAny(lower, "network", "connection refused", "connection reset", "broken pipe", "net::err_connection"):
		return New(KindNetworkError, "network connection error: "+msg, url)
	case isDNS(err, lower):
		return New(KindDNSError, "dns resolution failed: "+msg, url)
	case containsAny(lower, "ssl", "tls", "certificate", "x509"):
		return New(KindSSLError, "ssl/tls error: "+msg, url)
	case containsAny(lower, "404", "not found"):
		return New(KindHTTPError, "http error (404): page not found", url)
	case containsAny(lower, "403", "forbidden"):
		return New(KindHTTPError, "http error (403): access forbidden", url)
	case containsAny(lower, "500", "server error", "bad gateway", "service unavailable"):
		return New(KindHTTPError, "http error (5xx): server error", url)
	case isJSONParse(err, lower):
		return New(KindStructuredDataParse, "json parsing error: "+msg, url)
	case containsAny(lower, "javascript", "exception thrown", "uncaught"):
		return New(KindJavascriptError, "javascript execution error: "+msg, url)
	case strings.Contains(lower, "dom") && strings.Contains(lower, "element"):
		return New(KindDOMAccessError, "dom access error: "+msg, url)
	case containsAny(lower, "browser", "chrome", "devtools", "target closed", "websocket"):
		return New(KindBrowserError, "browser error: "+msg, url)
	default:
		return New(KindUnknown, fmt.Sprintf("unknown error (%T): %s", err, msg), url)
	}
}

func isTimeout(err error, lower string) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded")
}

func isDNS(err error, lower string) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return containsAny(lower, "dns", "no such host", "name resolution")
}

func isJSONParse(err error, lower string) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return strings.Contains(lower, "json") &&
		containsAny(lower, "decode", "unmarshal", "invalid character", "unexpected end")
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
