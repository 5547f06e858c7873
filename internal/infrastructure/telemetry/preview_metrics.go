package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/pdfpreview/internal/application/preview"
	"github.com/erp/pdfpreview/internal/domain/printing"
)

// AttrOutcome labels resolved requests
var AttrOutcome = attribute.Key("outcome")

var _ preview.Observer = (*PreviewMetrics)(nil)

// PreviewMetrics records request lifecycle and shared memory transfer metrics.
// Every callback is issued from the context that observed the event, so
// recording must not block.
type PreviewMetrics struct {
	issued       *Counter
	resolved     *Counter
	latency      *Histogram
	transferSize *Histogram
	transferTime *Histogram
}

// NewPreviewMetrics registers the preview instruments on meter.
func NewPreviewMetrics(meter metric.Meter) (*PreviewMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		pm  PreviewMetrics
		err error
	)
	if pm.issued, err = NewCounter(meter,
		"pdfpreview_requests_issued_total", "Print preview requests sent to the renderer", "{requests}"); err != nil {
		return nil, err
	}
	if pm.resolved, err = NewCounter(meter,
		"pdfpreview_requests_resolved_total", "Print preview requests resolved, by outcome", "{requests}"); err != nil {
		return nil, err
	}
	if pm.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "pdfpreview_request_duration_seconds",
		Description: "Time from issue to resolution",
		Unit:        "s",
		Boundaries:  []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}); err != nil {
		return nil, err
	}
	if pm.transferSize, err = NewHistogram(meter, HistogramOpts{
		Name:        "pdfpreview_transfer_bytes",
		Description: "Size of documents copied out of shared memory",
		Unit:        "By",
		Boundaries:  []float64{1 << 10, 16 << 10, 128 << 10, 1 << 20, 8 << 20, 64 << 20},
	}); err != nil {
		return nil, err
	}
	if pm.transferTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "pdfpreview_transfer_duration_seconds",
		Description: "Time spent mapping and copying a shared region",
		Unit:        "s",
	}); err != nil {
		return nil, err
	}
	return &pm, nil
}

func (pm *PreviewMetrics) RequestIssued(printing.RequestID) {
	pm.issued.Inc(context.Background())
}

func (pm *PreviewMetrics) RequestResolved(_ printing.RequestID, outcome preview.Outcome, latency time.Duration) {
	ctx := context.Background()
	attr := AttrOutcome.String(string(outcome))
	pm.resolved.Inc(ctx, attr)
	pm.latency.RecordDuration(ctx, latency, attr)
}

func (pm *PreviewMetrics) BufferTransferred(size int, elapsed time.Duration) {
	ctx := context.Background()
	pm.transferSize.Record(ctx, float64(size))
	pm.transferTime.RecordDuration(ctx, elapsed)
}
