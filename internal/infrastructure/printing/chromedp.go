package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/erp/pdfpreview/internal/domain/printing"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	// header and footer templates need room inside the page margin
	minHeaderFooterMarginMM = 10
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// DefaultTimeout bounds a single render
	DefaultTimeout time.Duration
	// RemoteURL of a running Chrome DevTools endpoint. Empty launches a local browser.
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default: true)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRenderer renders documents to PDF using the Chrome DevTools Protocol
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a chromedp-based PDF renderer. The browser is
// started lazily on the first render.
func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{Headless: true, DisableGPU: true}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{
		config: config,
		logger: logger,
	}
	r.initAllocator()
	return r, nil
}

func (r *ChromedpRenderer) initAllocator() {
	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-gpu", r.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Render loads the HTML or URL from opts into a fresh browser tab and prints it
func (r *ChromedpRenderer) Render(ctx context.Context, opts *printing.PrintOptions) (*RenderResult, error) {
	if opts == nil {
		return nil, NewRenderError(ErrCodeInvalidContent, "print options are nil", nil)
	}
	if strings.TrimSpace(opts.HTML) == "" && opts.URL == "" {
		return nil, NewRenderError(ErrCodeInvalidContent, "neither HTML nor URL given", nil)
	}
	resolved := opts.WithDefaults()
	if !resolved.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(resolved.PaperSize), nil)
	}

	start := time.Now()
	timeout := r.config.DefaultTimeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Tie the tab to both the allocator and the caller so StopWorker aborts it
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	params := buildPrintParams(&resolved)
	var pdfData []byte

	err := chromedp.Run(tabCtx,
		r.loadAction(&resolved),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(params.printBackground).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.marginTop).
				WithMarginRight(params.marginRight).
				WithMarginBottom(params.marginBottom).
				WithMarginLeft(params.marginLeft).
				WithScale(params.scale).
				WithLandscape(params.landscape).
				WithPageRanges(params.pageRanges).
				WithDisplayHeaderFooter(params.displayHeaderFooter).
				WithHeaderTemplate(params.headerTemplate).
				WithFooterTemplate(params.footerTemplate).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderCancelled, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	pageCount := estimatePageCount(pdfData)
	duration := time.Since(start)

	r.logger.Info("PDF rendered",
		zap.Int("request_id", int(opts.RequestID)),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", pageCount),
		zap.Duration("duration", duration))

	return &RenderResult{
		PDFData:        pdfData,
		PageCount:      pageCount,
		RenderDuration: duration,
	}, nil
}

// loadAction navigates to the URL or injects the HTML into a blank page
func (r *ChromedpRenderer) loadAction(opts *printing.PrintOptions) chromedp.Action {
	if opts.URL != "" {
		return chromedp.Tasks{
			chromedp.Navigate(opts.URL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}

	content := buildCompleteHTML(opts)
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, content).Do(ctx)
		}),
	}
}

// Close shuts down the browser
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

// printParams holds page.PrintToPDF arguments in inches
type printParams struct {
	paperWidth          float64
	paperHeight         float64
	marginTop           float64
	marginRight         float64
	marginBottom        float64
	marginLeft          float64
	scale               float64
	landscape           bool
	printBackground     bool
	pageRanges          string
	displayHeaderFooter bool
	headerTemplate      string
	footerTemplate      string
}

func buildPrintParams(opts *printing.PrintOptions) *printParams {
	width, height := opts.PaperSize.Dimensions()
	params := &printParams{
		paperWidth:      mmToInches(float64(width)),
		paperHeight:     mmToInches(float64(height)),
		marginTop:       mmToInches(float64(opts.Margins.Top)),
		marginRight:     mmToInches(float64(opts.Margins.Right)),
		marginBottom:    mmToInches(float64(opts.Margins.Bottom)),
		marginLeft:      mmToInches(float64(opts.Margins.Left)),
		scale:           opts.Scale,
		landscape:       opts.Orientation == printing.OrientationLandscape,
		printBackground: opts.PrintBackground,
		pageRanges:      strings.ReplaceAll(opts.PageRanges, " ", ""),
	}
	if params.scale == 0 {
		params.scale = 1.0
	}

	if opts.HeaderHTML != "" || opts.FooterHTML != "" {
		params.displayHeaderFooter = true
		params.headerTemplate = opts.HeaderHTML
		params.footerTemplate = opts.FooterHTML

		minMargin := mmToInches(minHeaderFooterMarginMM)
		if params.headerTemplate != "" && params.marginTop < minMargin {
			params.marginTop = minMargin
		}
		if params.footerTemplate != "" && params.marginBottom < minMargin {
			params.marginBottom = minMargin
		}
	}
	return params
}

// buildCompleteHTML wraps a fragment in a full document; complete documents
// pass through unchanged.
func buildCompleteHTML(opts *printing.PrintOptions) string {
	lower := strings.ToLower(opts.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return opts.HTML
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if opts.Title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(opts.Title))
		b.WriteString("</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(opts.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
