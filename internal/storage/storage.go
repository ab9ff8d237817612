// Package storage defines the persistence interfaces for crawl runs and
// diagnostic artifacts.
package storage

import (
	"context"
	"io"
	"time"
)

// BlobStore persists binary artifacts (screenshots, result payloads) and
// returns a URI for the written object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RunRecord is the persisted summary of one crawl run.
type RunRecord struct {
	ID            string         `json:"id"`
	DomainURL     string         `json:"domain_url"`
	Success       bool           `json:"success"`
	PagesVisited  int            `json:"pages_visited"`
	ProductCount  int            `json:"product_count"`
	SchemaCount   int            `json:"schema_count"`
	Products      []byte         `json:"products,omitempty"`
	NonProducts   []byte         `json:"non_products,omitempty"`
	Statistics    map[string]any `json:"statistics,omitempty"`
	ErrorSummary  []byte         `json:"error_summary,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	ResultBlobURI string         `json:"result_blob_uri,omitempty"`
}

// RunStore persists crawl run records.
type RunStore interface {
	StoreRun(ctx context.Context, record RunRecord) error
}
