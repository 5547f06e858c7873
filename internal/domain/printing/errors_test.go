package printing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewError_Is(t *testing.T) {
	cause := errors.New("mmap: permission denied")
	err := NewPreviewError(ErrCodeGenerationFailed, "Failed to generate PDF", cause)

	assert.True(t, errors.Is(err, ErrPDFGenerationFailed))
	assert.False(t, errors.Is(err, ErrProtocolViolation))
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("delivering request 7: %w", ErrRequestTimeout)
	assert.True(t, errors.Is(wrapped, ErrRequestTimeout))
}

func TestPreviewError_Error(t *testing.T) {
	assert.Equal(t, "Failed to generate PDF", ErrPDFGenerationFailed.Error())

	err := NewPreviewError(ErrCodeSendFailed, "send failed", errors.New("pipe closed"))
	assert.Equal(t, "send failed: pipe closed", err.Error())
}

func TestPendingRequest_Expired(t *testing.T) {
	now := mustTime(t)

	p := &PendingRequest{ID: 1}
	assert.False(t, p.Expired(now), "zero deadline never expires")

	p.Deadline = now.Add(-1)
	assert.True(t, p.Expired(now))

	p.Deadline = now.Add(1)
	assert.False(t, p.Expired(now))
}

func TestDocumentCookie_Valid(t *testing.T) {
	assert.True(t, DocumentCookie(7).Valid())
	assert.False(t, DocumentCookie(0).Valid())
	assert.False(t, DocumentCookie(-3).Valid())
}
