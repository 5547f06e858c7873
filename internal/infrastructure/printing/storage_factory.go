package printing

import (
	"context"
	"fmt"
	"strings"
	"time"

	infraconfig "github.com/erp/pdfpreview/internal/infrastructure/config"
	"go.uber.org/zap"
)

// StorageType values accepted by NewStorage
const (
	StorageTypeFileSystem = "fs"
	StorageTypeS3         = "s3"
)

// RetentionCleaner is implemented by storages that can expire old documents
type RetentionCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// NewStorage builds the PDFStorage selected by cfg.Type. An S3 bucket is
// created when missing.
func NewStorage(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (PDFStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Type) {
	case "", StorageTypeFileSystem:
		s, err := NewFileSystemStorage(&FileSystemStorageConfig{
			BasePath: cfg.BasePath,
			BaseURL:  cfg.BaseURL,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeS3:
		s, err := NewS3Storage(cfg, WithS3Logger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// RunRetention removes documents older than retention every interval until
// ctx is done. Storages that cannot expire documents return immediately.
func RunRetention(ctx context.Context, storage PDFStorage, retention, interval time.Duration, logger *zap.Logger) {
	cleaner, ok := storage.(RetentionCleaner)
	if !ok || retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := cleaner.CleanupOlderThan(ctx, retention); err != nil {
			logger.Warn("document retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
