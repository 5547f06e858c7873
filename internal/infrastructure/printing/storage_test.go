package printing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSStorage(t *testing.T) (*FileSystemStorage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileSystemStorage(&FileSystemStorageConfig{
		BasePath: dir,
		BaseURL:  "https://example.com/prints/",
	})
	require.NoError(t, err)
	return storage, dir
}

func TestNewFileSystemStorage_Defaults(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: dir})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/print/documents", storage.config.BaseURL)
}

func TestFileSystemStorage_StoreGetDelete(t *testing.T) {
	storage, dir := newTestFSStorage(t)
	ctx := context.Background()
	docID := uuid.New()
	pdf := []byte("%PDF-1.4 stored")

	result, err := storage.Store(ctx, &StoreRequest{Namespace: "http", DocumentID: docID, PDFData: pdf})
	require.NoError(t, err)

	now := time.Now()
	assert.Equal(t, filepath.ToSlash(filepath.Join("http", now.Format("2006"), now.Format("01"), docID.String()+".pdf")), result.Key)
	assert.Equal(t, "https://example.com/prints/"+result.Key, result.URL)
	assert.Equal(t, int64(len(pdf)), result.Size)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(result.Key)))

	rc, err := storage.Get(ctx, result.Key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pdf, got)

	require.NoError(t, storage.Delete(ctx, result.Key))
	assert.NoFileExists(t, filepath.Join(dir, filepath.FromSlash(result.Key)))
	// deleting again is fine
	assert.NoError(t, storage.Delete(ctx, result.Key))

	_, err = storage.Get(ctx, result.Key)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeDocumentNotFound, renderErr.Code)
}

func TestFileSystemStorage_StoreValidation(t *testing.T) {
	storage, _ := newTestFSStorage(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *StoreRequest
	}{
		{"nil request", nil},
		{"empty namespace", &StoreRequest{DocumentID: uuid.New(), PDFData: []byte("x")}},
		{"traversal namespace", &StoreRequest{Namespace: "..", DocumentID: uuid.New(), PDFData: []byte("x")}},
		{"slash in namespace", &StoreRequest{Namespace: "a/b", DocumentID: uuid.New(), PDFData: []byte("x")}},
		{"nil document id", &StoreRequest{Namespace: "http", PDFData: []byte("x")}},
		{"empty data", &StoreRequest{Namespace: "http", DocumentID: uuid.New()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.Store(ctx, tt.req)
			var renderErr *RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, ErrCodeStorageFailed, renderErr.Code)
		})
	}
}

func TestFileSystemStorage_RejectsTraversal(t *testing.T) {
	storage, _ := newTestFSStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "/etc/passwd", "http/../../secret.pdf"} {
		_, err := storage.Get(ctx, key)
		assert.Error(t, err, key)
		assert.Error(t, storage.Delete(ctx, key), key)
	}
}

func TestFileSystemStorage_CancelledContext(t *testing.T) {
	storage, _ := newTestFSStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.Store(ctx, &StoreRequest{Namespace: "http", DocumentID: uuid.New(), PDFData: []byte("x")})
	assert.Error(t, err)
}

func TestFileSystemStorage_CleanupOlderThan(t *testing.T) {
	storage, dir := newTestFSStorage(t)
	ctx := context.Background()

	old, err := storage.Store(ctx, &StoreRequest{Namespace: "old", DocumentID: uuid.New(), PDFData: []byte("a")})
	require.NoError(t, err)
	fresh, err := storage.Store(ctx, &StoreRequest{Namespace: "new", DocumentID: uuid.New(), PDFData: []byte("b")})
	require.NoError(t, err)

	oldPath := filepath.Join(dir, filepath.FromSlash(old.Key))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	deleted, err := storage.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(fresh.Key)))
}
