package printing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2024-01-15T10:30:00Z")
	require.NoError(t, err)
	return ts
}

func TestDecodeMessage_MetafileReady(t *testing.T) {
	session := uuid.New()
	data, err := EncodeMessage(&MetafileReadyForPrinting{
		SessionID: session,
		Params: PreviewParams{
			DocumentCookie:    7,
			ExpectedPageCount: 3,
			Content:           ContentData{Handle: "preview-42", Size: 2048},
		},
		Ids: PreviewIds{RequestID: 42},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"MetafileReadyForPrinting"`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)

	ready, ok := msg.(*MetafileReadyForPrinting)
	require.True(t, ok)
	assert.Equal(t, session, ready.Session())
	assert.Equal(t, DocumentCookie(7), ready.Params.DocumentCookie)
	assert.Equal(t, uint32(2048), ready.Params.Content.Size)
	assert.Equal(t, RequestID(42), ready.Ids.RequestID)
}

func TestDecodeMessage_UnknownKind(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"kind":"PrintPreviewCancelled","payload":{}}`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}
