package printing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

// WorkerQuery is the handle of one in-flight render
type WorkerQuery struct {
	cookie  printing.DocumentCookie
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// Cookie returns the document cookie assigned to the render
func (q *WorkerQuery) Cookie() printing.DocumentCookie {
	return q.cookie
}

// StopWorker cancels the render. Repeated calls are no-ops.
func (q *WorkerQuery) StopWorker() {
	if q.stopped.CompareAndSwap(false, true) {
		q.cancel()
	}
}

// Stopped reports whether StopWorker has been called
func (q *WorkerQuery) Stopped() bool {
	return q.stopped.Load()
}

// QueryQueue tracks in-flight renders by document cookie. Safe for concurrent use.
type QueryQueue struct {
	next    atomic.Int64
	mu      sync.Mutex
	queries map[printing.DocumentCookie]*WorkerQuery
}

// NewQueryQueue creates an empty QueryQueue
func NewQueryQueue() *QueryQueue {
	return &QueryQueue{
		queries: make(map[printing.DocumentCookie]*WorkerQuery),
	}
}

// Add registers a render whose worker is stopped by cancel and returns its query.
// Cookies start at 1 and are never reused.
func (q *QueryQueue) Add(cancel context.CancelFunc) *WorkerQuery {
	query := &WorkerQuery{
		cookie: printing.DocumentCookie(q.next.Add(1)),
		cancel: cancel,
	}

	q.mu.Lock()
	q.queries[query.cookie] = query
	q.mu.Unlock()
	return query
}

// PopQuery removes and returns the query for cookie, or nil when there is none
func (q *QueryQueue) PopQuery(cookie printing.DocumentCookie) printing.PrinterQuery {
	q.mu.Lock()
	defer q.mu.Unlock()

	query, ok := q.queries[cookie]
	if !ok {
		return nil
	}
	delete(q.queries, cookie)
	return query
}

// Len returns the number of queued queries
func (q *QueryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queries)
}

// StopAll stops and removes every queued query
func (q *QueryQueue) StopAll() int {
	q.mu.Lock()
	queries := q.queries
	q.queries = make(map[printing.DocumentCookie]*WorkerQuery)
	q.mu.Unlock()

	for _, query := range queries {
		query.StopWorker()
	}
	return len(queries)
}

var _ printing.PrinterQueryQueue = (*QueryQueue)(nil)
