// Package dto holds the JSON envelopes of the HTTP API.
package dto

// Response is the standard API envelope
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// StoredDocumentResponse is returned when a generated PDF is archived
type StoredDocumentResponse struct {
	RequestID int    `json:"request_id"`
	Key       string `json:"key"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
}

// PendingResponse lists unresolved print requests
type PendingResponse struct {
	Count      int   `json:"count"`
	RequestIDs []int `json:"request_ids"`
}

// CancelResponse reports the outcome of a cancellation
type CancelResponse struct {
	RequestID int  `json:"request_id"`
	Cancelled bool `json:"cancelled"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Pending int    `json:"pending"`
}
