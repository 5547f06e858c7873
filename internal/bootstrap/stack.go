// Package bootstrap assembles the runtime shared by the server and the
// script runner: telemetry, renderer, render session, id allocation and
// document storage.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/pdfpreview/internal/application/preview"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/erp/pdfpreview/internal/infrastructure/idgen"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/session"
	"github.com/erp/pdfpreview/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Stack is a started render session plus everything around it
type Stack struct {
	Session *session.Session
	IDs     idgen.Generator
	Storage infraprinting.PDFStorage

	renderer infraprinting.PDFRenderer
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// Option customizes Build
type Option func(*options)

type options struct {
	renderer infraprinting.PDFRenderer
}

// WithRenderer replaces the chromedp renderer
func WithRenderer(r infraprinting.PDFRenderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// Build wires and starts the stack described by cfg. Call Shutdown when done.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*Stack, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Stack{logger: log}
	ok := false
	defer func() {
		if !ok {
			s.Shutdown(context.Background())
		}
	}()

	var err error
	s.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.TraceConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics, err := telemetry.NewPreviewMetrics(s.meter.Meter(telemetry.MeterName))
	if err != nil {
		return nil, err
	}

	s.renderer = o.renderer
	if s.renderer == nil {
		chrome, err := infraprinting.NewChromedpRenderer(&infraprinting.ChromedpConfig{
			DefaultTimeout: cfg.Renderer.Timeout,
			RemoteURL:      cfg.Renderer.RemoteURL,
			Headless:       cfg.Renderer.Headless,
			DisableGPU:     cfg.Renderer.DisableGPU,
			NoSandbox:      cfg.Renderer.NoSandbox,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		s.renderer = chrome
	}

	s.Storage, err = infraprinting.NewStorage(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.IDs = idgen.New(cfg.Redis, log)

	s.Session, err = session.New(session.ConfigFrom(cfg), s.renderer, log, preview.WithObserver(metrics))
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Session.Start(runCtx)
	ok = true
	return s, nil
}

// Shutdown closes the session first so every pending request is resolved,
// then releases the renderer, the id allocator and telemetry exporters.
func (s *Stack) Shutdown(ctx context.Context) error {
	var errs []error
	if s.Session != nil {
		s.Session.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.renderer != nil {
		if err := s.renderer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("renderer: %w", err))
		}
	}
	if closer, ok := s.IDs.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("id generator: %w", err))
		}
	}
	if s.meter != nil {
		if err := s.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	return err
}
