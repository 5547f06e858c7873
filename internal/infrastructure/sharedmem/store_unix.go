//go:build unix

package sharedmem

import (
	"fmt"
	"math"
	"os"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Mapping is a read-only view of a region
type Mapping struct {
	data []byte
}

// Bytes returns the mapped memory. It is invalid after Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Close unmaps the region
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Create writes data into a new region and returns its handle
func (s *Store) Create(data []byte) (Region, error) {
	if len(data) == 0 {
		return Region{}, ErrEmptyRegion
	}
	if len(data) > math.MaxUint32 {
		return Region{}, fmt.Errorf("document of %d bytes exceeds region limit", len(data))
	}

	handle := newHandle()
	path, err := s.path(handle)
	if err != nil {
		return Region{}, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return Region{}, fmt.Errorf("failed to create shared memory region: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(len(data))); err != nil {
		_ = os.Remove(path)
		return Region{}, fmt.Errorf("failed to size shared memory region: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, len(data), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = os.Remove(path)
		return Region{}, fmt.Errorf("failed to map shared memory region for writing: %w", err)
	}
	copy(mem, data)
	if err := unix.Munmap(mem); err != nil {
		_ = os.Remove(path)
		return Region{}, fmt.Errorf("failed to unmap shared memory region: %w", err)
	}

	s.logger.Debug("shared memory region created",
		zap.String("handle", string(handle)),
		zap.Int("size", len(data)))

	return Region{Handle: handle, Size: uint32(len(data))}, nil
}

// Map maps the first size bytes of the region read-only.
// The caller must Close the returned Mapping.
func (s *Store) Map(handle printing.SharedMemoryHandle, size uint32) (*Mapping, error) {
	if size == 0 {
		return nil, ErrEmptyRegion
	}
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared memory region: %w", err)
	}
	// The mapping outlives the descriptor
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat shared memory region: %w", err)
	}
	if info.Size() < int64(size) {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrRegionTooSmall, info.Size(), size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map shared memory region: %w", err)
	}
	return &Mapping{data: data}, nil
}

// Supported reports whether shared memory is available on this platform
func Supported() bool {
	return true
}
