package preview

import (
	"github.com/erp/pdfpreview/internal/domain/printing"
	"go.uber.org/zap"
)

// ResultDispatcher is the single place reply paths resolve requests.
// It runs on the primary context.
type ResultDispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewResultDispatcher creates a ResultDispatcher
func NewResultDispatcher(registry *Registry, logger *zap.Logger) *ResultDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultDispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Deliver resolves id with the first dataSize bytes of pdf, or with
// ErrPDFGenerationFailed when pdf is nil. Ownership of pdf moves to the handler.
func (d *ResultDispatcher) Deliver(id printing.RequestID, dataSize uint32, pdf []byte) {
	if pdf == nil {
		d.logger.Info("print to pdf failed",
			zap.Int("request_id", int(id)))
		d.registry.Resolve(id, printing.ErrPDFGenerationFailed, nil)
		return
	}

	if uint32(len(pdf)) > dataSize {
		pdf = pdf[:dataSize]
	}
	d.logger.Info("print to pdf succeeded",
		zap.Int("request_id", int(id)),
		zap.Int("size", len(pdf)))
	d.registry.Resolve(id, nil, pdf)
}

// Fail resolves id with err
func (d *ResultDispatcher) Fail(id printing.RequestID, err error) {
	d.logger.Info("print to pdf failed",
		zap.Int("request_id", int(id)),
		zap.Error(err))
	d.registry.Resolve(id, err, nil)
}

// Advance records that id reached state and reports whether the move was
// allowed. Reply paths must not act on a request when it returns false.
func (d *ResultDispatcher) Advance(id printing.RequestID, state printing.RequestState) bool {
	return d.registry.Advance(id, state)
}
