package preview

import (
	"errors"
	"strings"
	"time"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

// Outcome labels how a request was resolved
type Outcome string

// OutcomeSuccess is reported for requests resolved with a document
const OutcomeSuccess Outcome = "success"

// OutcomeOf derives the outcome label for an error handed to a completion handler
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var pe *printing.PreviewError
	if errors.As(err, &pe) {
		return Outcome(strings.ToLower(pe.Code))
	}
	return Outcome("error")
}

// Observer receives lifecycle events for metrics
type Observer interface {
	RequestIssued(id printing.RequestID)
	RequestResolved(id printing.RequestID, outcome Outcome, latency time.Duration)
	BufferTransferred(size int, elapsed time.Duration)
}

// NopObserver discards every event
type NopObserver struct{}

func (NopObserver) RequestIssued(printing.RequestID)                           {}
func (NopObserver) RequestResolved(printing.RequestID, Outcome, time.Duration) {}
func (NopObserver) BufferTransferred(int, time.Duration)                       {}
