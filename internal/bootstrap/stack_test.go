//go:build unix

package bootstrap

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/erp/pdfpreview/internal/infrastructure/idgen"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
)

type stubRenderer struct {
	closed atomic.Bool
}

func (r *stubRenderer) Render(context.Context, *printing.PrintOptions) (*infraprinting.RenderResult, error) {
	return &infraprinting.RenderResult{PDFData: []byte("%PDF-1.7 stack"), PageCount: 1}, nil
}

func (r *stubRenderer) Close() error {
	r.closed.Store(true)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Renderer:     config.RendererConfig{Workers: 1},
		SharedMemory: config.SharedMemoryConfig{Dir: t.TempDir()},
		Storage:      config.StorageConfig{Type: "fs", BasePath: t.TempDir()},
	}
}

func TestBuild_PrintsAndShutsDown(t *testing.T) {
	renderer := &stubRenderer{}
	stack, err := Build(context.Background(), testConfig(t), zaptest.NewLogger(t), WithRenderer(renderer))
	require.NoError(t, err)

	assert.IsType(t, &infraprinting.FileSystemStorage{}, stack.Storage)
	assert.IsType(t, &idgen.AtomicGenerator{}, stack.IDs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := stack.IDs.Next(ctx)
	require.NoError(t, err)
	pdf, err := stack.Session.Handler().PrintToPDFSync(ctx, &printing.PrintOptions{RequestID: id, HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 stack"), pdf)

	require.NoError(t, stack.Shutdown(context.Background()))
	assert.True(t, renderer.closed.Load())
}

func TestBuild_StorageErrorReleasesRenderer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "ftp"
	renderer := &stubRenderer{}

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t), WithRenderer(renderer))
	assert.ErrorContains(t, err, "failed to initialize storage")
	assert.True(t, renderer.closed.Load())
}
