package browser

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/logging"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/urlutil"
)

// Diagnostics captures best-effort error screenshots. When disabled, every
// call is a no-op.
type Diagnostics struct {
	enabled bool
	store   storage.BlobStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewDiagnostics builds a screenshot writer. Pass enabled=false to turn the
// whole facility off.
func NewDiagnostics(enabled bool, store storage.BlobStore, logger *zap.Logger) *Diagnostics {
	return &Diagnostics{
		enabled: enabled && store != nil,
		store:   store,
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Enabled reports whether screenshots will actually be written.
func (d *Diagnostics) Enabled() bool {
	return d != nil && d.enabled
}

// CaptureError screenshots the page and stores it under a name derived from
// the error type, the page URL, and a timestamp. Failures are logged and
// swallowed; diagnostics never break the crawl.
func (d *Diagnostics) CaptureError(ctx context.Context, page Page, pageURL, errorType string) {
	if !d.Enabled() || page == nil || pageURL == "" {
		return
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		d.logger.Debug("failed to capture error screenshot",
			zap.String("url", pageURL),
			zap.String("error_type", errorType),
			zap.Error(err))
		return
	}

	ts := d.now().UTC().Format("20060102_150405.000")
	name := fmt.Sprintf("%s_%s_%s.png", errorType, urlutil.SanitizeForFilename(pageURL, 50), ts)
	uri, err := d.store.PutObject(ctx, name, "image/png", bytes.NewReader(png))
	if err != nil {
		d.logger.Debug("failed to store error screenshot",
			zap.String("name", name),
			zap.Error(err))
		return
	}
	d.logger.Info("saved error screenshot",
		zap.String("uri", uri),
		zap.String("error_type", errorType),
		zap.String("url", pageURL))
}
