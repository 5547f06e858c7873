package preview

import (
	"time"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/sharedmem"
	"go.uber.org/zap"
)

// BufferTransfer copies rendered documents out of shared memory.
// Its methods block on I/O and belong on the background context.
type BufferTransfer struct {
	mapper   sharedmem.Mapper
	observer Observer
	logger   *zap.Logger
}

// NewBufferTransfer creates a BufferTransfer
func NewBufferTransfer(mapper sharedmem.Mapper, logger *zap.Logger) *BufferTransfer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BufferTransfer{
		mapper:   mapper,
		observer: NopObserver{},
		logger:   logger,
	}
}

// CopyFromSharedRegion returns a private copy of the first size bytes of the
// region, or nil when the region cannot be mapped. The region is unmapped and
// released before returning in every case.
func (t *BufferTransfer) CopyFromSharedRegion(handle printing.SharedMemoryHandle, size uint32) []byte {
	start := time.Now()
	defer t.Release(handle)

	mapping, err := t.mapper.Map(handle, size)
	if err != nil {
		t.logger.Warn("failed to map shared memory region",
			zap.String("handle", string(handle)),
			zap.Uint32("size", size),
			zap.Error(err))
		return nil
	}
	defer func() {
		if err := mapping.Close(); err != nil {
			t.logger.Warn("failed to unmap shared memory region",
				zap.String("handle", string(handle)),
				zap.Error(err))
		}
	}()

	buf := make([]byte, size)
	copy(buf, mapping.Bytes())

	t.observer.BufferTransferred(len(buf), time.Since(start))
	return buf
}

// Release drops the region without reading it
func (t *BufferTransfer) Release(handle printing.SharedMemoryHandle) {
	if handle == "" {
		return
	}
	if err := t.mapper.Release(handle); err != nil {
		t.logger.Warn("failed to release shared memory region",
			zap.String("handle", string(handle)),
			zap.Error(err))
	}
}
