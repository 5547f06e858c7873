package preview

import (
	"errors"
	"slices"
	"time"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"go.uber.org/zap"
)

// ErrNilHandler is returned when registering a request without a handler
var ErrNilHandler = errors.New("completion handler must not be nil")

// RegistryConfig bounds the registry
type RegistryConfig struct {
	// MaxPending caps the number of unresolved requests. Zero means unbounded.
	MaxPending int
	// TTL is how long a request may stay pending. Zero means forever.
	TTL time.Duration
}

// Registry maps request ids to the handlers waiting for them.
// It is not safe for concurrent use; only the primary context touches it.
type Registry struct {
	pending  map[printing.RequestID]*printing.PendingRequest
	tokens   uint64
	config   RegistryConfig
	now      func() time.Time
	observer Observer
	logger   *zap.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(config RegistryConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		pending:  make(map[printing.RequestID]*printing.PendingRequest),
		config:   config,
		now:      time.Now,
		observer: NopObserver{},
		logger:   logger,
	}
}

// Register stores handler under id.
// A handler already registered under the same id is replaced and resolved
// with ErrRequestSuperseded.
func (r *Registry) Register(id printing.RequestID, handler printing.CompletionHandler) error {
	_, err := r.register(id, handler)
	return err
}

// register is Register returning the token of the new registration
func (r *Registry) register(id printing.RequestID, handler printing.CompletionHandler) (uint64, error) {
	if handler == nil {
		return 0, ErrNilHandler
	}

	displaced, exists := r.pending[id]
	if !exists && r.config.MaxPending > 0 && len(r.pending) >= r.config.MaxPending {
		r.logger.Warn("pending request limit reached",
			zap.Int("request_id", int(id)),
			zap.Int("max_pending", r.config.MaxPending))
		return 0, printing.ErrTooManyPending
	}

	now := r.now()
	r.tokens++
	req := &printing.PendingRequest{
		ID:       id,
		Handler:  handler,
		IssuedAt: now,
		Token:    r.tokens,
	}
	if r.config.TTL > 0 {
		req.Deadline = now.Add(r.config.TTL)
	}
	req.TransitionTo(printing.RequestStateIssued)
	r.pending[id] = req
	r.observer.RequestIssued(id)

	if exists {
		r.logger.Warn("request id reused while pending",
			zap.Int("request_id", int(id)))
		r.finish(displaced, printing.ErrRequestSuperseded, nil)
	}
	return req.Token, nil
}

// Advance moves the pending request to state. It reports false, leaving the
// request untouched, when id is not pending or the lifecycle forbids the move,
// e.g. a second MetafileReady for a request already transferring.
func (r *Registry) Advance(id printing.RequestID, state printing.RequestState) bool {
	req, ok := r.pending[id]
	if !ok {
		r.logger.Debug("no pending request to advance",
			zap.Int("request_id", int(id)),
			zap.String("state", string(state)))
		return false
	}
	from := req.State
	if !req.TransitionTo(state) {
		r.logger.Warn("rejected request state transition",
			zap.Int("request_id", int(id)),
			zap.String("from", string(from)),
			zap.String("to", string(state)))
		return false
	}
	return true
}

// State returns the lifecycle state of a pending request
func (r *Registry) State(id printing.RequestID) (printing.RequestState, bool) {
	req, ok := r.pending[id]
	if !ok {
		return "", false
	}
	return req.State, true
}

// Resolve removes the request and invokes its handler with either err or pdf.
// It reports false when no request is registered under id.
func (r *Registry) Resolve(id printing.RequestID, err error, pdf []byte) bool {
	req, ok := r.pending[id]
	if !ok {
		r.logger.Debug("no pending request to resolve",
			zap.Int("request_id", int(id)))
		return false
	}
	delete(r.pending, id)
	r.finish(req, err, pdf)
	return true
}

// Cancel resolves the request with ErrRequestCancelled
func (r *Registry) Cancel(id printing.RequestID) bool {
	return r.Resolve(id, printing.ErrRequestCancelled, nil)
}

// CancelToken cancels id only while it still belongs to the registration
// that produced token. A later request that reused id is left alone.
func (r *Registry) CancelToken(id printing.RequestID, token uint64) bool {
	req, ok := r.pending[id]
	if !ok || req.Token != token {
		return false
	}
	return r.Resolve(id, printing.ErrRequestCancelled, nil)
}

// Expire resolves every request whose deadline is at or before now with
// ErrRequestTimeout and returns their ids in ascending order.
func (r *Registry) Expire(now time.Time) []printing.RequestID {
	var expired []printing.RequestID
	for id, req := range r.pending {
		if req.Expired(now) {
			expired = append(expired, id)
		}
	}
	slices.Sort(expired)

	for _, id := range expired {
		r.logger.Info("print request timed out",
			zap.Int("request_id", int(id)))
		r.Resolve(id, printing.ErrRequestTimeout, nil)
	}
	return expired
}

// ResolveAll resolves every pending request with err and returns how many there were
func (r *Registry) ResolveAll(err error) int {
	ids := r.IDs()
	for _, id := range ids {
		r.Resolve(id, err, nil)
	}
	return len(ids)
}

// Len returns the number of pending requests
func (r *Registry) Len() int {
	return len(r.pending)
}

// Contains reports whether id is pending
func (r *Registry) Contains(id printing.RequestID) bool {
	_, ok := r.pending[id]
	return ok
}

// IDs returns the pending ids in ascending order
func (r *Registry) IDs() []printing.RequestID {
	ids := make([]printing.RequestID, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// finish runs the handler after the registry state is final, so a handler
// may re-enter the registry.
func (r *Registry) finish(req *printing.PendingRequest, err error, pdf []byte) {
	if err != nil {
		pdf = nil
	} else if pdf == nil {
		err = printing.ErrPDFGenerationFailed
	}
	if !req.TransitionTo(printing.RequestStateResolved) {
		r.logger.Warn("request resolved twice",
			zap.Int("request_id", int(req.ID)),
			zap.String("state", string(req.State)))
		return
	}
	r.observer.RequestResolved(req.ID, OutcomeOf(err), r.now().Sub(req.IssuedAt))
	req.Handler(err, pdf)
}
