package preview

import (
	"context"
	"errors"
	"time"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/sharedmem"
	"github.com/erp/pdfpreview/internal/infrastructure/taskrunner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Second
	// primaryDrainTimeout bounds how long shutdown waits for a closed
	// primary context to finish its queue before resolving inline
	primaryDrainTimeout = 5 * time.Second
)

// finisher is implemented by runners that report when their last task ran
type finisher interface {
	Finished() <-chan struct{}
}

// Endpoint is the host side of a render session
type Endpoint interface {
	SessionID() uuid.UUID
	Send(ctx context.Context, msg printing.Message) error
	Receive() <-chan printing.Message
}

// Config controls request bookkeeping
type Config struct {
	MaxPending    int
	RequestTTL    time.Duration
	SweepInterval time.Duration
}

// Option configures a MessageHandler
type Option func(*MessageHandler)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *MessageHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(h *MessageHandler) {
		if observer != nil {
			h.observer = observer
		}
	}
}

// WithClock overrides the time source used for deadlines and expiry
func WithClock(now func() time.Time) Option {
	return func(h *MessageHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithFallbackRouter receives messages the preview router does not own
func WithFallbackRouter(router Router) Option {
	return func(h *MessageHandler) {
		h.fallback = router
	}
}

// MessageHandler is the entry point for print-to-PDF requests on one render session
type MessageHandler struct {
	config     Config
	endpoint   Endpoint
	primary    taskrunner.Runner
	background taskrunner.Runner
	registry   *Registry
	router     Router
	fallback   Router
	observer   Observer
	now        func() time.Time
	logger     *zap.Logger

	// closed is set on the primary context once pending requests have been
	// resolved for shutdown; later requests fail immediately
	closed bool
}

// NewMessageHandler wires the registry, stopper, transfer, router and
// dispatcher for endpoint's session.
func NewMessageHandler(
	config Config,
	endpoint Endpoint,
	queue printing.PrinterQueryQueue,
	mapper sharedmem.Mapper,
	primary taskrunner.Runner,
	background taskrunner.Runner,
	opts ...Option,
) *MessageHandler {
	h := &MessageHandler{
		config:     config,
		endpoint:   endpoint,
		primary:    primary,
		background: background,
		observer:   NopObserver{},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("session", endpoint.SessionID().String()))

	h.registry = NewRegistry(RegistryConfig{
		MaxPending: config.MaxPending,
		TTL:        config.RequestTTL,
	}, h.logger)
	h.registry.now = h.now
	h.registry.observer = h.observer

	transfer := NewBufferTransfer(mapper, h.logger)
	transfer.observer = h.observer

	previewRouter := NewMessageRouter(
		endpoint.SessionID(),
		NewWorkerStopper(queue, background, h.logger),
		transfer,
		NewResultDispatcher(h.registry, h.logger),
		background,
		primary,
		h.logger,
	)
	if h.fallback != nil {
		h.router = RouterChain{previewRouter, h.fallback}
	} else {
		h.router = previewRouter
	}
	return h
}

// PrintToPDF asks the renderer to print options and calls callback exactly
// once with the outcome. When PrintToPDF returns an error the callback is
// never called.
func (h *MessageHandler) PrintToPDF(ctx context.Context, options *printing.PrintOptions, callback printing.CompletionHandler) error {
	return h.post(ctx, options, callback, nil)
}

// post validates options and issues the request on the primary context.
// onIssued, when set, receives the registration token on the primary context.
func (h *MessageHandler) post(ctx context.Context, options *printing.PrintOptions, callback printing.CompletionHandler, onIssued func(token uint64)) error {
	if callback == nil {
		return ErrNilHandler
	}
	if err := options.Validate(); err != nil {
		return err
	}
	opts := *options
	if err := h.primary.PostTask(func() {
		token := h.issue(ctx, &opts, callback)
		if onIssued != nil {
			onIssued(token)
		}
	}); err != nil {
		return printing.NewPreviewError(printing.ErrCodeContextClosed, printing.ErrContextClosed.Message, err)
	}
	return nil
}

// Issue is PrintToPDF for callers already running on the primary context
func (h *MessageHandler) Issue(ctx context.Context, options *printing.PrintOptions, callback printing.CompletionHandler) error {
	if callback == nil {
		return ErrNilHandler
	}
	if err := options.Validate(); err != nil {
		return err
	}
	opts := *options
	h.issue(ctx, &opts, callback)
	return nil
}

// issue registers and sends the request. It returns the registration token,
// or zero when the callback has already been resolved.
func (h *MessageHandler) issue(ctx context.Context, options *printing.PrintOptions, callback printing.CompletionHandler) uint64 {
	id := options.RequestID
	if h.closed {
		callback(printing.ErrContextClosed, nil)
		return 0
	}
	token, err := h.registry.register(id, callback)
	if err != nil {
		callback(err, nil)
		return 0
	}

	msg := &printing.PrintPreviewRequest{
		SessionID: h.endpoint.SessionID(),
		RequestID: id,
		Options:   options.WithDefaults(),
	}
	if err := h.endpoint.Send(ctx, msg); err != nil {
		h.logger.Warn("failed to send print preview request",
			zap.Int("request_id", int(id)),
			zap.Error(err))
		h.registry.Resolve(id, printing.NewPreviewError(printing.ErrCodeSendFailed, printing.ErrSendFailed.Message, err), nil)
		return 0
	}

	h.logger.Debug("print preview request sent",
		zap.Int("request_id", int(id)))
	return token
}

// PrintToPDFSync blocks until the request resolves or ctx is done.
// A done ctx cancels the request, but never a later request that reused
// the same id.
func (h *MessageHandler) PrintToPDFSync(ctx context.Context, options *printing.PrintOptions) ([]byte, error) {
	type result struct {
		err error
		pdf []byte
	}
	done := make(chan result, 1)
	// token is written and read only on the primary context
	var token uint64
	if err := h.post(ctx, options, func(err error, pdf []byte) {
		done <- result{err: err, pdf: pdf}
	}, func(t uint64) {
		token = t
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		return r.pdf, r.err
	case <-ctx.Done():
		id := options.RequestID
		if err := h.primary.PostTask(func() {
			h.registry.CancelToken(id, token)
		}); err != nil {
			return nil, ctx.Err()
		}
		// The cancellation may race with a real outcome
		r := <-done
		if r.err == nil {
			return r.pdf, nil
		}
		if errors.Is(r.err, printing.ErrRequestCancelled) {
			return nil, ctx.Err()
		}
		return nil, r.err
	}
}

// Cancel resolves the pending request id with ErrRequestCancelled.
// It reports whether such a request existed.
func (h *MessageHandler) Cancel(ctx context.Context, id printing.RequestID) (bool, error) {
	var cancelled bool
	err := taskrunner.PostTaskAndWait(ctx, h.primary, func() {
		cancelled = h.registry.Cancel(id)
	})
	return cancelled, err
}

// Pending returns the ids of unresolved requests
func (h *MessageHandler) Pending(ctx context.Context) ([]printing.RequestID, error) {
	var ids []printing.RequestID
	err := taskrunner.PostTaskAndWait(ctx, h.primary, func() {
		ids = h.registry.IDs()
	})
	return ids, err
}

// Run pumps replies from the endpoint onto the primary context and expires
// stale requests until ctx is done or the endpoint closes. Requests still
// pending when Run returns are resolved with ErrContextClosed.
func (h *MessageHandler) Run(ctx context.Context) error {
	var sweep <-chan time.Time
	if h.config.RequestTTL > 0 {
		interval := h.config.SweepInterval
		if interval <= 0 {
			interval = defaultSweepInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweep = ticker.C
	}
	defer h.shutdown()

	inbound := h.endpoint.Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				h.logger.Info("render session closed")
				return nil
			}
			if err := h.primary.PostTask(func() { h.route(msg) }); err != nil {
				return err
			}
		case <-sweep:
			if err := h.primary.PostTask(func() { h.registry.Expire(h.now()) }); err != nil {
				return err
			}
		}
	}
}

func (h *MessageHandler) route(msg printing.Message) {
	if !h.router.OnMessageReceived(msg) {
		h.logger.Debug("unhandled message",
			zap.String("kind", string(msg.Kind())))
	}
}

func (h *MessageHandler) shutdown() {
	resolve := func() {
		h.closed = true
		if n := h.registry.ResolveAll(printing.ErrContextClosed); n > 0 {
			h.logger.Info("resolved pending requests on shutdown", zap.Int("count", n))
		}
	}
	err := h.primary.PostTask(resolve)
	if err == nil {
		return
	}

	f, ok := h.primary.(finisher)
	if !ok {
		h.logger.Error("primary context closed before pending requests were resolved", zap.Error(err))
		return
	}
	select {
	case <-f.Finished():
		// nothing runs on the primary context any more, so the registry is ours
		h.logger.Warn("primary context closed first, resolving pending requests inline")
		resolve()
	case <-time.After(primaryDrainTimeout):
		h.logger.Error("primary context never finished, pending requests left unresolved", zap.Error(err))
	}
}
