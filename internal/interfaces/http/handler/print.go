package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/idgen"
	"github.com/erp/pdfpreview/internal/infrastructure/logger"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/interfaces/http/dto"
)

// storageNamespace groups documents archived through the HTTP API
const storageNamespace = "http"

// PreviewService is the part of the preview handler the API needs
type PreviewService interface {
	PrintToPDFSync(ctx context.Context, options *printing.PrintOptions) ([]byte, error)
	Cancel(ctx context.Context, id printing.RequestID) (bool, error)
	Pending(ctx context.Context) ([]printing.RequestID, error)
}

// PrintHandler serves the print endpoints
type PrintHandler struct {
	BaseHandler
	service PreviewService
	ids     idgen.Generator
	storage infraprinting.PDFStorage
	timeout time.Duration
}

// PrintHandlerOption configures a PrintHandler
type PrintHandlerOption func(*PrintHandler)

// WithStorage enables ?store=true and the document download endpoint
func WithStorage(storage infraprinting.PDFStorage) PrintHandlerOption {
	return func(h *PrintHandler) {
		h.storage = storage
	}
}

// WithRequestTimeout bounds each print request. Zero means the HTTP
// request context alone decides.
func WithRequestTimeout(d time.Duration) PrintHandlerOption {
	return func(h *PrintHandler) {
		h.timeout = d
	}
}

// NewPrintHandler creates a PrintHandler
func NewPrintHandler(service PreviewService, ids idgen.Generator, opts ...PrintHandlerOption) *PrintHandler {
	h := &PrintHandler{service: service, ids: ids}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PrintPDF renders the posted options.
// POST /api/v1/print/pdf[?store=true]
func (h *PrintHandler) PrintPDF(c *gin.Context) {
	var options printing.PrintOptions
	if err := c.ShouldBindJSON(&options); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	store := false
	if raw := c.Query("store"); raw != "" {
		var err error
		if store, err = strconv.ParseBool(raw); err != nil {
			h.BadRequest(c, "store must be a boolean")
			return
		}
	}
	if store && h.storage == nil {
		h.BadRequest(c, "document storage is not configured")
		return
	}

	ctx := c.Request.Context()
	if options.RequestID == 0 {
		id, err := h.ids.Next(ctx)
		if err != nil {
			h.ErrorWithCode(c, dto.ErrCodeUnavailable, err.Error())
			return
		}
		options.RequestID = id
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	pdf, err := h.service.PrintToPDFSync(ctx, &options)
	if err != nil {
		h.HandlePreviewError(c, err)
		return
	}

	requestID := strconv.Itoa(int(options.RequestID))
	c.Header("X-Print-Request-ID", requestID)

	if !store {
		c.Data(http.StatusOK, "application/pdf", pdf)
		return
	}

	result, err := h.storage.Store(ctx, &infraprinting.StoreRequest{
		Namespace:  storageNamespace,
		DocumentID: uuid.New(),
		PDFData:    pdf,
	})
	if err != nil {
		logger.L(ctx).Error("failed to archive PDF", zap.String("print_request_id", requestID), zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeStorageFailed, "failed to store PDF")
		return
	}
	h.Created(c, dto.StoredDocumentResponse{
		RequestID: int(options.RequestID),
		Key:       result.Key,
		URL:       result.URL,
		Size:      result.Size,
	})
}

// ListPending returns the unresolved request ids.
// GET /api/v1/print/pending
func (h *PrintHandler) ListPending(c *gin.Context) {
	ids, err := h.service.Pending(c.Request.Context())
	if err != nil {
		h.HandlePreviewError(c, err)
		return
	}
	resp := dto.PendingResponse{Count: len(ids), RequestIDs: make([]int, 0, len(ids))}
	for _, id := range ids {
		resp.RequestIDs = append(resp.RequestIDs, int(id))
	}
	h.Success(c, resp)
}

// CancelRequest resolves a pending request as cancelled.
// DELETE /api/v1/print/requests/:id
func (h *PrintHandler) CancelRequest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.BadRequest(c, "request id must be a positive integer")
		return
	}
	cancelled, err := h.service.Cancel(c.Request.Context(), printing.RequestID(id))
	if err != nil {
		h.HandlePreviewError(c, err)
		return
	}
	if !cancelled {
		h.NotFound(c, "no pending request with id "+strconv.Itoa(id))
		return
	}
	h.Success(c, dto.CancelResponse{RequestID: id, Cancelled: true})
}

// DownloadDocument streams an archived PDF.
// GET /api/v1/print/documents/*key
func (h *PrintHandler) DownloadDocument(c *gin.Context) {
	if h.storage == nil {
		h.NotFound(c, "document storage is not configured")
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	body, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		var renderErr *infraprinting.RenderError
		if errors.As(err, &renderErr) && renderErr.Code == infraprinting.ErrCodeDocumentNotFound {
			h.NotFound(c, "PDF not found")
			return
		}
		h.BadRequest(c, err.Error())
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, "application/pdf", body, nil)
}
