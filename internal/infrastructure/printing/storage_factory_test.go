package printing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	infraconfig "github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorage_FileSystem(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(context.Background(), &infraconfig.StorageConfig{
		Type:     "FS",
		BasePath: dir,
		BaseURL:  "/docs",
	}, nil)
	require.NoError(t, err)

	fs, ok := storage.(*FileSystemStorage)
	require.True(t, ok)
	assert.Equal(t, dir, fs.config.BasePath)
	assert.Equal(t, "/docs", fs.config.BaseURL)
}

func TestNewStorage_Errors(t *testing.T) {
	_, err := NewStorage(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = NewStorage(context.Background(), &infraconfig.StorageConfig{Type: "ftp"}, nil)
	assert.ErrorContains(t, err, "unsupported storage type")

	// s3 without a bucket fails before any network call
	_, err = NewStorage(context.Background(), &infraconfig.StorageConfig{Type: "s3"}, nil)
	assert.ErrorContains(t, err, "bucket")
}

func TestRunRetention_RemovesOldDocuments(t *testing.T) {
	storage, dir := newTestFSStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old, err := storage.Store(ctx, &StoreRequest{Namespace: "http", DocumentID: uuid.New(), PDFData: []byte("%PDF old")})
	require.NoError(t, err)
	fresh, err := storage.Store(ctx, &StoreRequest{Namespace: "http", DocumentID: uuid.New(), PDFData: []byte("%PDF new")})
	require.NoError(t, err)

	oldPath := filepath.Join(dir, filepath.FromSlash(old.Key))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	done := make(chan struct{})
	go func() {
		RunRetention(ctx, storage, 24*time.Hour, time.Hour, nil)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(oldPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(fresh.Key)))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetention did not stop after cancel")
	}
}

func TestRunRetention_DisabledReturnsImmediately(t *testing.T) {
	storage, _ := newTestFSStorage(t)
	done := make(chan struct{})
	go func() {
		RunRetention(context.Background(), storage, 0, time.Millisecond, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRetention should return when retention is zero")
	}
}
