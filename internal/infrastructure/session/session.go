// Package session assembles one in-process render session: the host-side
// preview handler, the rendering process and the pipe between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/application/preview"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/erp/pdfpreview/internal/infrastructure/ipc"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/sharedmem"
	"github.com/erp/pdfpreview/internal/infrastructure/taskrunner"
)

// Config sizes a Session
type Config struct {
	Preview           preview.Config
	BackgroundWorkers int
	PrimaryQueueSize  int
	PipeBufferSize    int
	RenderWorkers     int
	SharedMemoryDir   string
}

// ConfigFrom maps application configuration onto a session Config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Preview: preview.Config{
			MaxPending:    cfg.Preview.MaxPending,
			RequestTTL:    cfg.Preview.RequestTTL,
			SweepInterval: cfg.Preview.SweepInterval,
		},
		BackgroundWorkers: cfg.Preview.BackgroundWorkers,
		PrimaryQueueSize:  cfg.Preview.PrimaryQueueSize,
		PipeBufferSize:    cfg.Preview.PipeBufferSize,
		RenderWorkers:     cfg.Renderer.Workers,
		SharedMemoryDir:   cfg.SharedMemory.Dir,
	}
}

// Session owns every goroutine of a render session
type Session struct {
	handler    *preview.MessageHandler
	primary    *taskrunner.Sequence
	background *taskrunner.Pool
	host       *ipc.Endpoint
	renderHost *infraprinting.RenderHost
	logger     *zap.Logger

	cancelRender context.CancelFunc
	handlerDone  chan struct{}
	renderDone   chan struct{}
	startOnce    sync.Once
	closeOnce    sync.Once
	started      bool
}

// New wires a session around renderer. opts are passed to the preview handler.
func New(cfg Config, renderer infraprinting.PDFRenderer, logger *zap.Logger, opts ...preview.Option) (*Session, error) {
	if renderer == nil {
		return nil, errors.New("session: renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	regions, err := sharedmem.NewStore(cfg.SharedMemoryDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared memory store: %w", err)
	}

	host, rendererSide := ipc.Pipe(cfg.PipeBufferSize, logger)
	queue := infraprinting.NewQueryQueue()
	primary := taskrunner.NewSequence("primary", cfg.PrimaryQueueSize, logger)
	background := taskrunner.NewPool(cfg.BackgroundWorkers, logger)

	opts = append([]preview.Option{preview.WithLogger(logger)}, opts...)
	handler := preview.NewMessageHandler(cfg.Preview, host, queue, regions, primary, background, opts...)
	renderHost := infraprinting.NewRenderHost(rendererSide, renderer, regions, queue,
		infraprinting.RenderHostConfig{Workers: cfg.RenderWorkers}, logger)

	return &Session{
		handler:     handler,
		primary:     primary,
		background:  background,
		host:        host,
		renderHost:  renderHost,
		logger:      logger.With(zap.String("session", host.SessionID().String())),
		handlerDone: make(chan struct{}),
		renderDone:  make(chan struct{}),
	}, nil
}

// Start launches the primary context, the handler pump and the render host.
// ctx bounds the handler pump and the render host. The primary context
// outlives ctx so that the handler can still resolve pending requests on it
// when ctx is cancelled; only Close stops it.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started = true
		go s.primary.Run(context.WithoutCancel(ctx))

		renderCtx, cancel := context.WithCancel(ctx)
		s.cancelRender = cancel
		go func() {
			defer close(s.renderDone)
			if err := s.renderHost.Run(renderCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("render host stopped", zap.Error(err))
			}
		}()
		go func() {
			defer close(s.handlerDone)
			if err := s.handler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("preview handler stopped", zap.Error(err))
			}
		}()
		s.logger.Info("render session started")
	})
}

// Handler is the preview entry point of the session
func (s *Session) Handler() *preview.MessageHandler {
	return s.handler
}

// Primary is the context that owns the registry. Lua states and other
// primary-only state must be driven through it.
func (s *Session) Primary() taskrunner.Runner {
	return s.primary
}

// Close stops rendering, resolves every pending request with
// ErrContextClosed and waits for the session goroutines to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if !s.started {
			s.background.Close()
			s.primary.Close()
			_ = s.host.Close()
			return
		}
		s.cancelRender()
		<-s.renderDone
		_ = s.host.Close()
		<-s.handlerDone
		s.background.Close()
		s.primary.Close()
		<-s.primary.Finished()
		s.logger.Info("render session closed")
	})
}
