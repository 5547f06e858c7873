package printing

import (
	"strconv"
	"time"
)

// RequestID is the caller-supplied token that correlates a print request
// with the reply the renderer eventually sends back.
type RequestID int

// String returns the decimal form of the id
func (id RequestID) String() string {
	return strconv.Itoa(int(id))
}

// DocumentCookie identifies a render job inside the rendering process.
// A value of zero or less means no job was created.
type DocumentCookie int

// Valid reports whether the cookie refers to a job that may need stopping
func (c DocumentCookie) Valid() bool {
	return c > 0
}

// SharedMemoryHandle names a shared memory region written by the renderer
type SharedMemoryHandle string

// ContentData locates the rendered document inside shared memory
type ContentData struct {
	Handle SharedMemoryHandle `json:"handle"`
	Size   uint32             `json:"size"`
}

// PreviewParams is produced by the renderer when a preview succeeds
type PreviewParams struct {
	DocumentCookie    DocumentCookie `json:"document_cookie"`
	ExpectedPageCount int            `json:"expected_page_count"`
	Content           ContentData    `json:"content"`
}

// PreviewIds correlates a reply with the request that produced it
type PreviewIds struct {
	RequestID RequestID `json:"request_id"`
	UIID      int       `json:"ui_id,omitempty"`
}

// CompletionHandler receives the outcome of a print-to-PDF request.
// Exactly one of err and pdf is non-nil.
type CompletionHandler func(err error, pdf []byte)

// PendingRequest is a request that has been issued but not yet resolved
type PendingRequest struct {
	ID       RequestID
	Handler  CompletionHandler
	IssuedAt time.Time
	// Deadline is zero when the request never expires
	Deadline time.Time
	// Token distinguishes this registration from others that reused ID
	Token uint64
	// State is where the request is in its lifecycle; empty means idle
	State RequestState
}

// TransitionTo moves the request to target when the lifecycle allows it
// and reports whether it did.
func (p *PendingRequest) TransitionTo(target RequestState) bool {
	from := p.State
	if from == "" {
		from = RequestStateIdle
	}
	if !from.CanTransitionTo(target) {
		return false
	}
	p.State = target
	return true
}

// Expired reports whether the request deadline has passed at now
func (p *PendingRequest) Expired(now time.Time) bool {
	return !p.Deadline.IsZero() && !now.Before(p.Deadline)
}
