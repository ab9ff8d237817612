package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/schemascout/schemascout/internal/storage/memory"
)

func TestPageCapturesDiagnosticOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	diag := NewDiagnostics(true, memory.NewBlobStore(), zap.New(core))
	session := NewChromeSession(Config{}, diag, zap.NewNop())

	p := &chromePage{
		ctx:        context.Background(),
		cancel:     func() {},
		session:    session,
		logger:     zap.NewNop(),
		currentURL: "https://shop.example/products/widget",
	}

	// Without a live tab the screenshot itself fails, which the
	// diagnostics layer logs once per attempt. A navigation failure
	// captures, and the later close must not capture again.
	p.capture("navigation_error")
	require.True(t, p.captured)
	require.Equal(t, 1, logs.FilterMessage("failed to capture error screenshot").Len())

	require.NoError(t, p.Close())
	require.Equal(t, 1, logs.FilterMessage("failed to capture error screenshot").Len())
}

func TestPageCloseCapturesWhenNothingFailedEarlier(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	diag := NewDiagnostics(true, memory.NewBlobStore(), zap.New(core))
	session := NewChromeSession(Config{}, diag, zap.NewNop())

	p := &chromePage{
		ctx:        context.Background(),
		cancel:     func() {},
		session:    session,
		logger:     zap.NewNop(),
		currentURL: "https://shop.example",
	}

	require.NoError(t, p.Close())
	require.Equal(t, 1, logs.FilterMessage("failed to capture error screenshot").Len())

	// Close is idempotent.
	require.NoError(t, p.Close())
	require.Equal(t, 1, logs.FilterMessage("failed to capture error screenshot").Len())
}

func TestPageCaptureSkipsBlankURL(t *testing.T) {
	diag := NewDiagnostics(true, memory.NewBlobStore(), zap.NewNop())
	session := NewChromeSession(Config{}, diag, zap.NewNop())
	p := &chromePage{ctx: context.Background(), cancel: func() {}, session: session, logger: zap.NewNop()}

	p.capture("page_closed")
	require.False(t, p.captured)
}
