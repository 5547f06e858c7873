package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/bootstrap"
	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
	"github.com/erp/pdfpreview/internal/infrastructure/logger"
	infraprinting "github.com/erp/pdfpreview/internal/infrastructure/printing"
	"github.com/erp/pdfpreview/internal/interfaces/script"
)

var unsafeNamespaceChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func main() {
	var (
		configPath string
		logLevel   string
		namespace  string
		timeout    time.Duration
		store      bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config.toml (default: search ./ and /etc/pdfpreview)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&namespace, "namespace", "", "Storage namespace for generated documents (default: script name)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time a script may run")
	flag.BoolVar(&store, "store", true, "Archive every generated PDF in the configured storage")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		printUsage()
		os.Exit(1)
	}
	scriptPath := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if namespace == "" {
		namespace = namespaceFor(scriptPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start render stack", zap.Error(err))
	}

	var pending sync.WaitGroup
	opts := []script.Option{script.WithLogger(log)}
	if store {
		opts = append(opts, script.WithDocumentSink(archiver(stack.Storage, namespace, &pending, log)))
	}
	runtime := script.NewRuntime(stack.Session.Handler(), stack.IDs, stack.Session.Primary(), opts...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	runErr := runtime.RunFile(runCtx, scriptPath)
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := runtime.Close(closeCtx); err != nil {
		log.Warn("Failed to close script runtime", zap.Error(err))
	}
	pending.Wait()
	_ = stack.Shutdown(closeCtx)

	if runErr != nil {
		log.Error("Script failed", zap.String("script", scriptPath), zap.Error(runErr))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Script finished", zap.String("script", scriptPath))
}

// archiver stores documents off the primary context so a slow backend never
// delays callback delivery.
func archiver(storage infraprinting.PDFStorage, namespace string, pending *sync.WaitGroup, log *zap.Logger) script.DocumentSink {
	return func(id printing.RequestID, pdf []byte) {
		pending.Add(1)
		go func() {
			defer pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			result, err := storage.Store(ctx, &infraprinting.StoreRequest{
				Namespace:  namespace,
				DocumentID: uuid.New(),
				PDFData:    pdf,
			})
			if err != nil {
				log.Error("Failed to archive document", zap.Int("request_id", int(id)), zap.Error(err))
				return
			}
			log.Info("Document archived",
				zap.Int("request_id", int(id)),
				zap.String("key", result.Key),
				zap.String("url", result.URL))
		}()
	}
}

func namespaceFor(scriptPath string) string {
	base := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	ns := strings.Trim(unsafeNamespaceChars.ReplaceAllString(base, "-"), ".-")
	if ns == "" {
		return "script"
	}
	return ns
}

func printUsage() {
	fmt.Println("Usage: printscript [options] <script.lua>")
	fmt.Println()
	fmt.Println("Runs a Lua script against a local render session. The script calls")
	fmt.Println("print_to_pdf{...} with a callback(err, pdf) for every document it wants.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}
