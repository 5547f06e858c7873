package sharedmem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultDir   = "/dev/shm"
	regionPrefix = "pdfpreview-"
)

var (
	// ErrInvalidHandle is returned for handles that do not name a region in the store
	ErrInvalidHandle = errors.New("invalid shared memory handle")
	// ErrEmptyRegion is returned when asked to map zero bytes
	ErrEmptyRegion = errors.New("shared memory region is empty")
	// ErrRegionTooSmall is returned when the region is shorter than the requested size
	ErrRegionTooSmall = errors.New("shared memory region is smaller than requested size")
)

// Region describes a region written by Create
type Region struct {
	Handle printing.SharedMemoryHandle
	Size   uint32
}

// Mapper maps regions written by the rendering process.
// *Store is the production implementation.
type Mapper interface {
	Map(handle printing.SharedMemoryHandle, size uint32) (*Mapping, error)
	Release(handle printing.SharedMemoryHandle) error
}

var _ Mapper = (*Store)(nil)

// Store creates, maps and releases regions under a single directory
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a Store rooted at dir. An empty dir selects /dev/shm when
// available and the system temp directory otherwise.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = defaultDir
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = os.TempDir()
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create shared memory directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger,
	}, nil
}

// Dir returns the directory that backs the store
func (s *Store) Dir() string {
	return s.dir
}

// Release removes the region named by handle. Mappings that are still open
// stay valid until they are closed.
func (s *Store) Release(handle printing.SharedMemoryHandle) error {
	path, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release shared memory region %s: %w", handle, err)
	}
	return nil
}

// newHandle returns a fresh, unused region name
func newHandle() printing.SharedMemoryHandle {
	return printing.SharedMemoryHandle(regionPrefix + uuid.New().String())
}

// path resolves handle to a file inside the store directory
func (s *Store) path(handle printing.SharedMemoryHandle) (string, error) {
	name := string(handle)
	if !strings.HasPrefix(name, regionPrefix) ||
		strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, name)
	}
	return filepath.Join(s.dir, name), nil
}
