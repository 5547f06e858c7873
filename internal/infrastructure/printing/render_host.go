package printing

import (
	"context"
	"sync"
	"time"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/sharedmem"
	"github.com/erp/pdfpreview/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultRenderWorkers = 2

// SessionEndpoint is the renderer side of a render session
type SessionEndpoint interface {
	SessionID() uuid.UUID
	Send(ctx context.Context, msg printing.Message) error
	Receive() <-chan printing.Message
}

// RegionWriter publishes rendered documents into shared memory
type RegionWriter interface {
	Create(data []byte) (sharedmem.Region, error)
	Release(handle printing.SharedMemoryHandle) error
}

// RenderHostConfig configures a RenderHost
type RenderHostConfig struct {
	// Workers bounds concurrent renders
	Workers int
}

// RenderHost plays the rendering process: it renders every
// PrintPreviewRequest it receives and answers through shared memory.
type RenderHost struct {
	endpoint SessionEndpoint
	renderer PDFRenderer
	regions  RegionWriter
	queue    *QueryQueue
	slots    *semaphore.Weighted
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewRenderHost creates a RenderHost
func NewRenderHost(
	endpoint SessionEndpoint,
	renderer PDFRenderer,
	regions RegionWriter,
	queue *QueryQueue,
	config RenderHostConfig,
	logger *zap.Logger,
) *RenderHost {
	if config.Workers <= 0 {
		config.Workers = defaultRenderWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderHost{
		endpoint: endpoint,
		renderer: renderer,
		regions:  regions,
		queue:    queue,
		slots:    semaphore.NewWeighted(int64(config.Workers)),
		logger:   logger.With(zap.String("session", endpoint.SessionID().String())),
	}
}

// Run serves requests until ctx is done or the endpoint closes, then waits
// for in-flight renders to finish.
func (h *RenderHost) Run(ctx context.Context) error {
	defer h.wg.Wait()

	inbound := h.endpoint.Receive()
	for {
		select {
		case <-ctx.Done():
			h.queue.StopAll()
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			req, ok := msg.(*printing.PrintPreviewRequest)
			if !ok {
				h.logger.Warn("unexpected message for renderer",
					zap.String("kind", string(msg.Kind())))
				continue
			}
			h.wg.Add(1)
			go h.serve(ctx, req)
		}
	}
}

func (h *RenderHost) serve(ctx context.Context, req *printing.PrintPreviewRequest) {
	defer h.wg.Done()

	ids := printing.PreviewIds{RequestID: req.RequestID}
	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	query := h.queue.Add(cancel)
	logger := h.logger.With(
		zap.Int("request_id", int(req.RequestID)),
		zap.Int("cookie", int(query.Cookie())))

	if err := h.slots.Acquire(renderCtx, 1); err != nil {
		logger.Warn("render cancelled before start", zap.Error(err))
		h.fail(ctx, query.Cookie(), ids)
		return
	}
	start := time.Now()
	spanCtx, span := telemetry.StartSpan(renderCtx, "preview.render",
		attribute.Int("request_id", int(req.RequestID)))
	result, err := h.renderer.Render(spanCtx, &req.Options)
	telemetry.RecordError(span, err)
	span.End()
	h.slots.Release(1)
	if err != nil {
		logger.Warn("render failed", zap.Error(err))
		h.fail(ctx, query.Cookie(), ids)
		return
	}

	region, err := h.regions.Create(result.PDFData)
	if err != nil {
		logger.Error("failed to publish document to shared memory", zap.Error(err))
		h.fail(ctx, query.Cookie(), ids)
		return
	}

	reply := &printing.MetafileReadyForPrinting{
		SessionID: h.endpoint.SessionID(),
		Params: printing.PreviewParams{
			DocumentCookie:    query.Cookie(),
			ExpectedPageCount: result.PageCount,
			Content: printing.ContentData{
				Handle: region.Handle,
				Size:   region.Size,
			},
		},
		Ids: ids,
	}
	if err := h.endpoint.Send(ctx, reply); err != nil {
		logger.Warn("failed to send preview reply", zap.Error(err))
		h.queue.PopQuery(query.Cookie())
		if err := h.regions.Release(region.Handle); err != nil {
			logger.Warn("failed to release undelivered region", zap.Error(err))
		}
		return
	}

	logger.Debug("preview ready",
		zap.Int("pages", result.PageCount),
		zap.Uint32("size", region.Size),
		zap.Duration("duration", time.Since(start)))
}

func (h *RenderHost) fail(ctx context.Context, cookie printing.DocumentCookie, ids printing.PreviewIds) {
	reply := &printing.PrintPreviewFailed{
		SessionID:      h.endpoint.SessionID(),
		DocumentCookie: cookie,
		Ids:            ids,
	}
	if err := h.endpoint.Send(ctx, reply); err != nil {
		h.logger.Warn("failed to send failure reply",
			zap.Int("request_id", int(ids.RequestID)),
			zap.Error(err))
		h.queue.PopQuery(cookie)
	}
}
