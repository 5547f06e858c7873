//go:build !unix

package sharedmem

import (
	"errors"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

// ErrUnsupported is returned on platforms without mmap support
var ErrUnsupported = errors.New("shared memory is not supported on this platform")

// Mapping is a read-only view of a region
type Mapping struct{}

// Bytes returns nil on unsupported platforms
func (m *Mapping) Bytes() []byte { return nil }

// Close is a no-op on unsupported platforms
func (m *Mapping) Close() error { return nil }

// Create always fails on unsupported platforms
func (s *Store) Create(data []byte) (Region, error) {
	return Region{}, ErrUnsupported
}

// Map always fails on unsupported platforms
func (s *Store) Map(handle printing.SharedMemoryHandle, size uint32) (*Mapping, error) {
	return nil, ErrUnsupported
}

// Supported reports whether shared memory is available on this platform
func Supported() bool {
	return false
}
