package printing

// PreviewError is the error type surfaced to print-to-PDF callers.
// Two PreviewErrors match under errors.Is when their codes are equal, so a
// wrapped instance carrying a cause still matches the sentinel values below.
type PreviewError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *PreviewError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PreviewError with the same code
func (e *PreviewError) Is(target error) bool {
	t, ok := target.(*PreviewError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewPreviewError creates a new PreviewError
func NewPreviewError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes for preview failures
const (
	ErrCodeGenerationFailed  = "PDF_GENERATION_FAILED"
	ErrCodeProtocolViolation = "PROTOCOL_VIOLATION"
	ErrCodeCancelled         = "REQUEST_CANCELLED"
	ErrCodeTimeout           = "REQUEST_TIMEOUT"
	ErrCodeTooManyPending    = "TOO_MANY_PENDING"
	ErrCodeSuperseded        = "REQUEST_SUPERSEDED"
	ErrCodeInvalidOptions    = "INVALID_OPTIONS"
	ErrCodeContextClosed     = "CONTEXT_CLOSED"
	ErrCodeSendFailed        = "SEND_FAILED"
)

var (
	// ErrPDFGenerationFailed is delivered when the renderer reports failure or
	// the rendered bytes could not be read back. Callers get no further detail.
	ErrPDFGenerationFailed = NewPreviewError(ErrCodeGenerationFailed, "Failed to generate PDF", nil)
	// ErrProtocolViolation marks a reply from the renderer that broke the
	// message contract, such as a non-positive expected page count.
	ErrProtocolViolation = NewPreviewError(ErrCodeProtocolViolation, "renderer violated the preview protocol", nil)
	ErrRequestCancelled  = NewPreviewError(ErrCodeCancelled, "print request cancelled", nil)
	ErrRequestTimeout    = NewPreviewError(ErrCodeTimeout, "print request timed out", nil)
	ErrTooManyPending    = NewPreviewError(ErrCodeTooManyPending, "too many pending print requests", nil)
	ErrRequestSuperseded = NewPreviewError(ErrCodeSuperseded, "print request replaced by a newer request with the same id", nil)
	ErrInvalidOptions    = NewPreviewError(ErrCodeInvalidOptions, "invalid print options", nil)
	ErrContextClosed     = NewPreviewError(ErrCodeContextClosed, "execution context is closed", nil)
	ErrSendFailed        = NewPreviewError(ErrCodeSendFailed, "failed to send print request to renderer", nil)
)
