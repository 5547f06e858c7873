//go:build unix

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/idgen"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/session"
	"github.com/erp/pdfpreview/internal/interfaces/http/dto"
	"github.com/erp/pdfpreview/internal/interfaces/http/router"
)

type stubRenderer struct {
	pages   int
	block   bool
	started chan struct{}
}

func (r *stubRenderer) Render(ctx context.Context, opts *printing.PrintOptions) (*infraprinting.RenderResult, error) {
	if r.block {
		r.started <- struct{}{}
		<-ctx.Done()
		return nil, infraprinting.NewRenderError(infraprinting.ErrCodeRenderCancelled, "PDF rendering was cancelled", ctx.Err())
	}
	return &infraprinting.RenderResult{PDFData: []byte("%PDF-1.7 " + opts.HTML), PageCount: r.pages}, nil
}

func (r *stubRenderer) Close() error { return nil }

type apiFixture struct {
	engine   *gin.Engine
	renderer *stubRenderer
}

func newAPI(t *testing.T, renderer *stubRenderer, opts ...PrintHandlerOption) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	s, err := session.New(session.Config{SharedMemoryDir: t.TempDir()}, renderer, logger)
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(s.Close)

	engine := router.NewEngine(router.EngineConfig{ServiceName: "test", MaxBodySize: 1 << 20}, logger)
	printHandler := NewPrintHandler(s.Handler(), idgen.NewAtomicGenerator(0), opts...)
	router.NewRouter(engine).Register(PrintRoutes(printHandler)).Setup()
	engine.GET("/health", NewHealthHandler(s.Handler()).Health)

	return &apiFixture{engine: engine, renderer: renderer}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, map[string]any) {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func TestPrintPDF_ReturnsDocument(t *testing.T) {
	f := newAPI(t, &stubRenderer{pages: 1})

	w := f.do(http.MethodPost, "/api/v1/print/pdf", `{"html":"<p>hello</p>","paper_size":"A4"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Print-Request-ID"))
	assert.Equal(t, "%PDF-1.7 <p>hello</p>", w.Body.String())
}

func TestPrintPDF_StoreAndDownload(t *testing.T) {
	storage, err := infraprinting.NewFileSystemStorage(&infraprinting.FileSystemStorageConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	f := newAPI(t, &stubRenderer{pages: 1}, WithStorage(storage))

	w := f.do(http.MethodPost, "/api/v1/print/pdf?store=true", `{"request_id":77,"html":"archived"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp, data := decode(t, w)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 77, data["request_id"])
	key, _ := data["key"].(string)
	require.True(t, strings.HasPrefix(key, "http/"), key)
	assert.Equal(t, "/api/v1/print/documents/"+key, data["url"])

	w = f.do(http.MethodGet, "/api/v1/print/documents/"+key, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.7 archived", w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/print/documents/http/2020/01/missing.pdf", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrintPDF_StoreWithoutStorage(t *testing.T) {
	f := newAPI(t, &stubRenderer{pages: 1})

	w := f.do(http.MethodPost, "/api/v1/print/pdf?store=true", `{"html":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/print/pdf?store=maybe", `{"html":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrintPDF_BadInput(t *testing.T) {
	f := newAPI(t, &stubRenderer{pages: 1})

	w := f.do(http.MethodPost, "/api/v1/print/pdf", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	w = f.do(http.MethodPost, "/api/v1/print/pdf", `{"title":"nothing to print"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ = decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestPrintPDF_ProtocolViolation(t *testing.T) {
	f := newAPI(t, &stubRenderer{pages: 0})

	w := f.do(http.MethodPost, "/api/v1/print/pdf", `{"html":"x"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeRendererFault, resp.Error.Code)
}

func TestPrintPDF_Timeout(t *testing.T) {
	renderer := &stubRenderer{block: true, started: make(chan struct{}, 1)}
	f := newAPI(t, renderer, WithRequestTimeout(50*time.Millisecond))

	w := f.do(http.MethodPost, "/api/v1/print/pdf", `{"html":"slow"}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	w = f.do(http.MethodGet, "/api/v1/print/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.EqualValues(t, 0, data["count"])
}

func TestPendingAndCancel(t *testing.T) {
	renderer := &stubRenderer{block: true, started: make(chan struct{}, 1)}
	f := newAPI(t, renderer)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.do(http.MethodPost, "/api/v1/print/pdf", `{"request_id":5,"html":"held"}`)
	}()
	select {
	case <-renderer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("render did not start")
	}

	w := f.do(http.MethodGet, "/api/v1/print/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.EqualValues(t, 1, data["count"])
	assert.Equal(t, []any{float64(5)}, data["request_ids"])

	w = f.do(http.MethodDelete, "/api/v1/print/requests/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, data = decode(t, w)
	assert.Equal(t, true, data["cancelled"])

	select {
	case w := <-done:
		assert.Equal(t, http.StatusConflict, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, dto.ErrCodeRequestCanceled, resp.Error.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled request did not complete")
	}

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/print/requests/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/v1/print/requests/abc", "").Code)
}

func TestHealth(t *testing.T) {
	f := newAPI(t, &stubRenderer{pages: 1})

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "healthy", data["status"])
	assert.EqualValues(t, 0, data["pending"])
}
