package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/pdfpreview/internal/bootstrap"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/erp/pdfpreview/internal/infrastructure/logger"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/interfaces/http/handler"
	"github.com/erp/pdfpreview/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting PDF preview server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	stack, err := bootstrap.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to start render stack", zap.Error(err))
	}

	retentionCtx, stopRetention := context.WithCancel(context.Background())
	if cfg.Storage.RetentionDays > 0 {
		go infraprinting.RunRetention(retentionCtx, stack.Storage,
			time.Duration(cfg.Storage.RetentionDays)*24*time.Hour, time.Hour, log)
	}

	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Release:        cfg.App.Env == "production",
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing:        cfg.Telemetry.Enabled,
	}, log)

	printHandler := handler.NewPrintHandler(stack.Session.Handler(), stack.IDs,
		handler.WithStorage(stack.Storage),
		handler.WithRequestTimeout(cfg.Renderer.Timeout),
	)
	router.NewRouter(engine).Register(handler.PrintRoutes(printHandler)).Setup()

	healthHandler := handler.NewHealthHandler(stack.Session.Handler())
	engine.GET("/health", healthHandler.Health)
	engine.GET("/api/v1/health", healthHandler.Health)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopRetention()
	_ = stack.Shutdown(ctx)

	log.Info("Server exited gracefully")
}
