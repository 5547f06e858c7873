package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

// Error codes
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeTimeout     = "ERR_TIMEOUT"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"

	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeConflict        = "ERR_CONFLICT"
	ErrCodeRenderFailed    = "ERR_RENDER_FAILED"
	ErrCodeRendererFault   = "ERR_RENDERER_FAULT"
	ErrCodeStorageFailed   = "ERR_STORAGE_FAILED"
	ErrCodeRequestCanceled = "ERR_REQUEST_CANCELLED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeConflict:        http.StatusConflict,
	ErrCodeRenderFailed:    http.StatusBadGateway,
	ErrCodeRendererFault:   http.StatusBadGateway,
	ErrCodeStorageFailed:   http.StatusInternalServerError,
	ErrCodeRequestCanceled: http.StatusConflict,
}

// previewCodes maps PreviewError codes onto API error codes
var previewCodes = map[string]string{
	printing.ErrCodeGenerationFailed:  ErrCodeRenderFailed,
	printing.ErrCodeProtocolViolation: ErrCodeRendererFault,
	printing.ErrCodeSendFailed:        ErrCodeRendererFault,
	printing.ErrCodeCancelled:         ErrCodeRequestCanceled,
	printing.ErrCodeTimeout:           ErrCodeTimeout,
	printing.ErrCodeTooManyPending:    ErrCodeRateLimited,
	printing.ErrCodeSuperseded:        ErrCodeConflict,
	printing.ErrCodeInvalidOptions:    ErrCodeValidation,
	printing.ErrCodeContextClosed:     ErrCodeUnavailable,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCodeFor classifies err, which may come from the preview handler or
// from the request context.
func ErrorCodeFor(err error) string {
	var pe *printing.PreviewError
	switch {
	case errors.As(err, &pe):
		if code, ok := previewCodes[pe.Code]; ok {
			return code
		}
		return ErrCodeInternal
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeRequestCanceled
	default:
		return ErrCodeInternal
	}
}
