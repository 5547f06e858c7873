package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PDFStorage archives generated documents
type PDFStorage interface {
	// Store saves a PDF and returns where it can be fetched
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get opens a stored PDF by its key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a stored PDF. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// StoreRequest contains the parameters for storing a PDF
type StoreRequest struct {
	// Namespace groups documents by origin, for example "http" or a script name
	Namespace string
	// DocumentID names the stored file
	DocumentID uuid.UUID
	// PDFData is the raw PDF content
	PDFData []byte
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	// Key is the storage key, relative to the storage root
	Key string
	// URL is where the PDF can be fetched
	URL string
	// Size is the file size in bytes
	Size int64
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// objectKey builds {namespace}/{yyyy}/{mm}/{document_id}.pdf
func objectKey(req *StoreRequest, now time.Time) (string, error) {
	if req == nil {
		return "", NewRenderError(ErrCodeStorageFailed, "store request is nil", nil)
	}
	if !namespacePattern.MatchString(req.Namespace) || req.Namespace == "." || req.Namespace == ".." {
		return "", NewRenderError(ErrCodeStorageFailed, "invalid namespace: "+req.Namespace, nil)
	}
	if req.DocumentID == uuid.Nil {
		return "", NewRenderError(ErrCodeStorageFailed, "document ID is required", nil)
	}
	if len(req.PDFData) == 0 {
		return "", NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}
	return fmt.Sprintf("%s/%d/%02d/%s.pdf", req.Namespace, now.Year(), now.Month(), req.DocumentID), nil
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for PDF storage
	// Default: /data/prints
	BasePath string
	// BaseURL is the URL prefix for accessing PDFs
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores PDFs on the local file system
type FileSystemStorage struct {
	config *FileSystemStorageConfig
	logger *zap.Logger
}

// NewFileSystemStorage creates a new file system based PDF storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "/data/prints"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/api/v1/print/documents"
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed,
			fmt.Sprintf("failed to create storage directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		config: config,
		logger: logger,
	}, nil
}

// Store writes the PDF under its object key
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	key, err := objectKey(req, time.Now())
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(s.config.BasePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create directory", err)
	}
	if err := os.WriteFile(fullPath, req.PDFData, 0644); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write PDF file", err)
	}

	url := s.GetURL(key)
	s.logger.Info("PDF stored",
		zap.String("path", fullPath),
		zap.Int("size", len(req.PDFData)),
		zap.String("url", url))

	return &StoreResult{
		Key:  key,
		URL:  url,
		Size: int64(len(req.PDFData)),
	}, nil
}

// Get opens the PDF stored under key
func (s *FileSystemStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeDocumentNotFound, "PDF not found", err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open PDF file", err)
	}
	return file, nil
}

// Delete removes the PDF stored under key
func (s *FileSystemStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete PDF file", err)
	}
	s.logger.Info("PDF deleted", zap.String("key", key))
	return nil
}

// CleanupOlderThan removes stored PDFs last modified more than age ago
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deleted := 0

	err := filepath.WalkDir(s.config.BasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".pdf" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
				s.logger.Debug("deleted old PDF", zap.String("path", path))
			}
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return deleted, NewRenderError(ErrCodeStorageFailed, "cleanup walk failed", err)
	}

	s.logger.Info("cleanup completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// GetURL returns the accessible URL for a stored PDF
func (s *FileSystemStorage) GetURL(key string) string {
	return strings.TrimSuffix(s.config.BaseURL, "/") + "/" + filepath.ToSlash(filepath.Clean(key))
}

// resolve maps key to a path under BasePath, rejecting traversal
func (s *FileSystemStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || containsDotDot(key) {
		s.logger.Warn("blocked potentially malicious path", zap.String("key", key))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, clean))
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("key", key),
			zap.String("absPath", absPath))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}
	return absPath, nil
}

func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(parts, "..")
}

var _ PDFStorage = (*FileSystemStorage)(nil)
