package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/storage/memory"
)

type stubPage struct {
	png     []byte
	err     error
	current string
}

func (p *stubPage) Navigate(context.Context, string) error                 { return nil }
func (p *stubPage) WaitNetworkIdle(context.Context, time.Duration) error   { return nil }
func (p *stubPage) ScriptTexts(context.Context) ([]string, error)          { return nil, nil }
func (p *stubPage) Evaluate(context.Context, string, any) error            { return nil }
func (p *stubPage) CurrentURL(context.Context) (string, error)             { return p.current, nil }
func (p *stubPage) Screenshot(context.Context) ([]byte, error)             { return p.png, p.err }
func (p *stubPage) Close() error                                           { return nil }

func TestCaptureErrorWritesScreenshot(t *testing.T) {
	store := memory.NewBlobStore()
	d := NewDiagnostics(true, store, zap.NewNop())
	d.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	page := &stubPage{png: []byte("png-bytes")}
	d.CaptureError(context.Background(), page, "https://shop.example/products/w?b=1", "navigation_timeout")

	require.Equal(t, 1, store.Len())
	data, ok := store.Object("navigation_timeout_shop.example_products_w_b_1_20260314_093000.000.png")
	require.True(t, ok)
	require.Equal(t, []byte("png-bytes"), data)
}

func TestCaptureErrorDisabled(t *testing.T) {
	store := memory.NewBlobStore()
	d := NewDiagnostics(false, store, zap.NewNop())
	d.CaptureError(context.Background(), &stubPage{png: []byte("x")}, "https://shop.example", "timeout")
	require.Zero(t, store.Len())
}

func TestCaptureErrorNilStore(t *testing.T) {
	d := NewDiagnostics(true, nil, zap.NewNop())
	require.False(t, d.Enabled())
	d.CaptureError(context.Background(), &stubPage{}, "https://shop.example", "timeout")
}

func TestCaptureErrorScreenshotFailureSwallowed(t *testing.T) {
	store := memory.NewBlobStore()
	d := NewDiagnostics(true, store, zap.NewNop())
	d.CaptureError(context.Background(), &stubPage{err: errors.New("target closed")}, "https://shop.example", "browser_error")
	require.Zero(t, store.Len())
}
