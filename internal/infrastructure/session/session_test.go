//go:build unix

package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/pdfpreview/internal/application/preview"
	"github.com/erp/pdfpreview/internal/domain/printing"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
)

type stubRenderer struct {
	pdf   []byte
	pages int
	block bool
	calls atomic.Int32
}

func (r *stubRenderer) Render(ctx context.Context, _ *printing.PrintOptions) (*infraprinting.RenderResult, error) {
	r.calls.Add(1)
	if r.block {
		<-ctx.Done()
		return nil, infraprinting.NewRenderError(infraprinting.ErrCodeRenderCancelled, "PDF rendering was cancelled", ctx.Err())
	}
	return &infraprinting.RenderResult{PDFData: r.pdf, PageCount: r.pages}, nil
}

func (r *stubRenderer) Close() error { return nil }

func newSession(t *testing.T, renderer infraprinting.PDFRenderer, opts ...preview.Option) *Session {
	t.Helper()
	s, err := New(Config{SharedMemoryDir: t.TempDir(), RenderWorkers: 2}, renderer, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func TestSession_RoundTrip(t *testing.T) {
	renderer := &stubRenderer{pdf: []byte("%PDF-1.7 round trip"), pages: 2}
	s := newSession(t, renderer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pdf, err := s.Handler().PrintToPDFSync(ctx, &printing.PrintOptions{RequestID: 1, HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 round trip"), pdf)

	pending, err := s.Handler().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSession_ZeroPagesIsProtocolViolation(t *testing.T) {
	renderer := &stubRenderer{pdf: []byte("not a pdf"), pages: 0}
	s := newSession(t, renderer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pdf, err := s.Handler().PrintToPDFSync(ctx, &printing.PrintOptions{RequestID: 9, HTML: "x"})
	assert.Nil(t, pdf)
	assert.ErrorIs(t, err, printing.ErrProtocolViolation)
}

func TestSession_CloseResolvesPending(t *testing.T) {
	renderer := &stubRenderer{block: true}
	s, err := New(Config{SharedMemoryDir: t.TempDir()}, renderer, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Start(context.Background())

	var calls atomic.Int32
	resolved := make(chan error, 2)
	require.NoError(t, s.Handler().PrintToPDF(context.Background(),
		&printing.PrintOptions{RequestID: 3, HTML: "x"},
		func(err error, pdf []byte) {
			calls.Add(1)
			resolved <- err
		}))

	require.Eventually(t, func() bool { return renderer.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	s.Close()

	select {
	case err := <-resolved:
		assert.True(t,
			errors.Is(err, printing.ErrContextClosed) || errors.Is(err, printing.ErrPDFGenerationFailed),
			"unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("pending request was not resolved on close")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSession_StartContextCancelResolvesPending(t *testing.T) {
	renderer := &stubRenderer{block: true}
	s, err := New(Config{SharedMemoryDir: t.TempDir()}, renderer, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(s.Close)

	var calls atomic.Int32
	resolved := make(chan error, 2)
	require.NoError(t, s.Handler().PrintToPDF(context.Background(),
		&printing.PrintOptions{RequestID: 4, HTML: "x"},
		func(err error, pdf []byte) {
			calls.Add(1)
			resolved <- err
		}))
	require.Eventually(t, func() bool { return renderer.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-resolved:
		assert.True(t,
			errors.Is(err, printing.ErrContextClosed) || errors.Is(err, printing.ErrPDFGenerationFailed),
			"unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not resolved after the start context was cancelled")
	}

	// the primary context is still alive and refuses new work cleanly
	<-s.handlerDone
	late := make(chan error, 1)
	require.NoError(t, s.Handler().PrintToPDF(context.Background(),
		&printing.PrintOptions{RequestID: 5, HTML: "x"},
		func(err error, _ []byte) { late <- err }))
	select {
	case err := <-late:
		assert.ErrorIs(t, err, printing.ErrContextClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("request issued after shutdown was never resolved")
	}

	s.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestSession_CloseWithoutStart(t *testing.T) {
	s, err := New(Config{SharedMemoryDir: t.TempDir()}, &stubRenderer{}, nil)
	require.NoError(t, err)
	s.Close()

	err = s.Handler().PrintToPDF(context.Background(), &printing.PrintOptions{RequestID: 1, HTML: "x"},
		func(error, []byte) {})
	assert.ErrorIs(t, err, printing.ErrContextClosed)
}

func TestNew_RequiresRenderer(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}
