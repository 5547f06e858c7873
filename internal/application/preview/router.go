package preview

import (
	"fmt"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/taskrunner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Router handles inbound messages it owns and reports whether it did
type Router interface {
	OnMessageReceived(msg printing.Message) bool
}

// RouterFunc adapts a function to Router
type RouterFunc func(msg printing.Message) bool

// OnMessageReceived calls f(msg)
func (f RouterFunc) OnMessageReceived(msg printing.Message) bool {
	return f(msg)
}

// RouterChain offers each message to its routers in order until one owns it
type RouterChain []Router

// OnMessageReceived implements Router
func (c RouterChain) OnMessageReceived(msg printing.Message) bool {
	for _, r := range c {
		if r.OnMessageReceived(msg) {
			return true
		}
	}
	return false
}

// MessageRouter owns the preview replies of one render session
type MessageRouter struct {
	session    uuid.UUID
	stopper    *WorkerStopper
	transfer   *BufferTransfer
	dispatcher *ResultDispatcher
	background taskrunner.Runner
	primary    taskrunner.Runner
	logger     *zap.Logger
}

// NewMessageRouter creates a MessageRouter for session
func NewMessageRouter(
	session uuid.UUID,
	stopper *WorkerStopper,
	transfer *BufferTransfer,
	dispatcher *ResultDispatcher,
	background taskrunner.Runner,
	primary taskrunner.Runner,
	logger *zap.Logger,
) *MessageRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageRouter{
		session:    session,
		stopper:    stopper,
		transfer:   transfer,
		dispatcher: dispatcher,
		background: background,
		primary:    primary,
		logger:     logger,
	}
}

// OnMessageReceived handles MetafileReadyForPrinting and PrintPreviewFailed
// for this router's session. Must be called on the primary context.
func (r *MessageRouter) OnMessageReceived(msg printing.Message) bool {
	if msg == nil || msg.Session() != r.session {
		return false
	}

	switch m := msg.(type) {
	case *printing.MetafileReadyForPrinting:
		r.onMetafileReadyForPrinting(m.Params, m.Ids)
		return true
	case *printing.PrintPreviewFailed:
		r.onPrintPreviewFailed(m.DocumentCookie, m.Ids)
		return true
	default:
		return false
	}
}

func (r *MessageRouter) onMetafileReadyForPrinting(params printing.PreviewParams, ids printing.PreviewIds) {
	r.stopper.StopWorker(params.DocumentCookie)

	content := params.Content
	if !r.dispatcher.Advance(ids.RequestID, printing.RequestStateMetafileReady) {
		// unknown, already resolved or already transferring
		r.releaseRegion(content.Handle)
		return
	}
	if params.ExpectedPageCount <= 0 {
		r.logger.Error("renderer reported a document without pages",
			zap.Int("request_id", int(ids.RequestID)),
			zap.Int("cookie", int(params.DocumentCookie)),
			zap.Int("expected_page_count", params.ExpectedPageCount))
		r.releaseRegion(content.Handle)
		r.dispatcher.Fail(ids.RequestID, printing.NewPreviewError(
			printing.ErrCodeProtocolViolation,
			printing.ErrProtocolViolation.Message,
			fmt.Errorf("expected page count %d", params.ExpectedPageCount),
		))
		return
	}

	id := ids.RequestID
	r.dispatcher.Advance(id, printing.RequestStateTransferring)
	err := taskrunner.PostTaskAndReplyWithResult(r.background, r.primary,
		func() []byte {
			return r.transfer.CopyFromSharedRegion(content.Handle, content.Size)
		},
		func(pdf []byte) {
			r.dispatcher.Deliver(id, content.Size, pdf)
		},
		func(pdf []byte, err error) {
			// the primary context is gone; shutdown resolves the request
			r.logger.Warn("transfer result dropped",
				zap.Int("request_id", int(id)),
				zap.Int("size", len(pdf)),
				zap.Error(err))
		},
	)
	if err != nil {
		r.logger.Warn("background context unavailable for transfer",
			zap.Int("request_id", int(id)),
			zap.Error(err))
		r.dispatcher.Deliver(id, content.Size, nil)
	}
}

func (r *MessageRouter) onPrintPreviewFailed(cookie printing.DocumentCookie, ids printing.PreviewIds) {
	r.stopper.StopWorker(cookie)
	if !r.dispatcher.Advance(ids.RequestID, printing.RequestStatePreviewFailed) {
		return
	}
	r.dispatcher.Deliver(ids.RequestID, 0, nil)
}

func (r *MessageRouter) releaseRegion(handle printing.SharedMemoryHandle) {
	if handle == "" {
		return
	}
	if err := r.background.PostTask(func() { r.transfer.Release(handle) }); err != nil {
		r.logger.Warn("background context unavailable, region not released",
			zap.String("handle", string(handle)),
			zap.Error(err))
	}
}
