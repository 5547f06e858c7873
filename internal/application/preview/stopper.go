package preview

import (
	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/taskrunner"
	"go.uber.org/zap"
)

// WorkerStopper halts the render worker behind a document cookie
type WorkerStopper struct {
	queue      printing.PrinterQueryQueue
	background taskrunner.Runner
	logger     *zap.Logger
}

// NewWorkerStopper creates a WorkerStopper
func NewWorkerStopper(queue printing.PrinterQueryQueue, background taskrunner.Runner, logger *zap.Logger) *WorkerStopper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerStopper{
		queue:      queue,
		background: background,
		logger:     logger,
	}
}

// StopWorker pops the query for cookie and stops its worker on the
// background context. Cookies of zero or less are ignored.
func (s *WorkerStopper) StopWorker(cookie printing.DocumentCookie) {
	if !cookie.Valid() {
		return
	}

	query := s.queue.PopQuery(cookie)
	if query == nil {
		s.logger.Debug("no printer query for cookie",
			zap.Int("cookie", int(cookie)))
		return
	}

	if err := s.background.PostTask(query.StopWorker); err != nil {
		// Background context is gone; stopping inline still frees the worker
		s.logger.Warn("background context unavailable, stopping worker inline",
			zap.Int("cookie", int(cookie)),
			zap.Error(err))
		query.StopWorker()
	}
}
