package printing

// PrinterQuery is an outstanding render-worker job inside the rendering process
type PrinterQuery interface {
	// StopWorker halts the background worker producing this job
	StopWorker()
}

// PrinterQueryQueue is the rendering subsystem's queue of outstanding
// worker queries.
type PrinterQueryQueue interface {
	// PopQuery removes and returns the query registered for cookie.
	// It returns nil when no such query exists.
	PopQuery(cookie DocumentCookie) PrinterQuery
}
