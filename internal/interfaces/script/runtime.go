package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/idgen"
	"github.com/erp/pdfpreview/internal/infrastructure/taskrunner"
)

const (
	// idBlockSize is how many request ids a runtime reserves per round trip
	idBlockSize           = 32
	defaultReserveTimeout = 2 * time.Second
)

// ErrRuntimeClosed is returned by Run after Close
var ErrRuntimeClosed = errors.New("script: runtime closed")

// Printer issues preview requests from the primary context
type Printer interface {
	Issue(ctx context.Context, options *printing.PrintOptions, callback printing.CompletionHandler) error
}

// DocumentSink receives every document a script obtains. It is called on
// the primary context and must hand slow work elsewhere.
type DocumentSink func(id printing.RequestID, pdf []byte)

// Option configures a Runtime
type Option func(*Runtime)

// WithLogger sets the logger used for script output and callback errors
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDocumentSink installs sink
func WithDocumentSink(sink DocumentSink) Option {
	return func(r *Runtime) {
		r.sink = sink
	}
}

// Runtime owns one sandboxed Lua state
type Runtime struct {
	L       *lua.LState
	printer Printer
	ids     *idgen.Prefetcher
	primary taskrunner.Runner
	sink    DocumentSink
	logger  *zap.Logger

	reserveTimeout time.Duration

	// primary context only
	ctx         context.Context
	outstanding int
	callbackErr []error
	closed      bool

	settled   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a runtime. The Lua state is built here but used only
// from tasks posted to primary.
func NewRuntime(printer Printer, ids idgen.Generator, primary taskrunner.Runner, opts ...Option) *Runtime {
	r := &Runtime{
		printer: printer,
		primary: primary,
		logger:  zap.NewNop(),
		ctx:     context.Background(),
		settled: make(chan struct{}, 1),

		reserveTimeout: defaultReserveTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ids = idgen.NewPrefetcher(ids, idBlockSize, r.logger)

	r.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(r.L)
	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
	r.L.SetGlobal("print_to_pdf", r.L.NewFunction(r.printToPDF))
	return r
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	// io, os, debug and package stay closed
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// RunString executes code and waits until every request it issued has been
// resolved and its callback has returned.
func (r *Runtime) RunString(ctx context.Context, code string) error {
	return r.run(ctx, func() error { return r.L.DoString(code) })
}

// RunFile is RunString for a file on disk
func (r *Runtime) RunFile(ctx context.Context, path string) error {
	return r.run(ctx, func() error { return r.L.DoFile(path) })
}

func (r *Runtime) run(ctx context.Context, exec func() error) error {
	// ids are reserved here so that print_to_pdf never waits on the
	// generator while holding the primary context
	fillCtx, cancel := context.WithTimeout(ctx, r.reserveTimeout)
	if err := r.ids.Fill(fillCtx); err != nil {
		r.logger.Warn("failed to reserve request ids", zap.Error(err))
	}
	cancel()

	var execErr error
	err := taskrunner.PostTaskAndWait(ctx, r.primary, func() {
		if r.closed {
			execErr = ErrRuntimeClosed
			return
		}
		r.ctx = ctx
		r.callbackErr = nil
		r.L.SetContext(ctx)
		execErr = protect(exec)
	})
	if err != nil {
		return err
	}
	if execErr != nil {
		return execErr
	}
	return r.wait(ctx)
}

func (r *Runtime) wait(ctx context.Context) error {
	for {
		var (
			outstanding int
			errs        []error
		)
		if err := taskrunner.PostTaskAndWait(ctx, r.primary, func() {
			outstanding = r.outstanding
			errs = r.callbackErr
		}); err != nil {
			return err
		}
		if outstanding == 0 {
			return errors.Join(errs...)
		}
		select {
		case <-r.settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the Lua state on the primary context
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		err = taskrunner.PostTaskAndWait(ctx, r.primary, func() {
			r.closed = true
			r.L.Close()
		})
	})
	return err
}

func protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	return fn()
}

func (r *Runtime) luaPrint(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.logger.Info("script output", zap.Strings("values", parts))
	return 0
}

func (r *Runtime) settle() {
	r.outstanding--
	select {
	case r.settled <- struct{}{}:
	default:
	}
}
