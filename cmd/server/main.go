package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/tflite-handler/internal/assets"
	"github.com/Brownie44l1/tflite-handler/internal/config"
	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/engine/onnx"
	"github.com/Brownie44l1/tflite-handler/internal/engine/tflite"
	"github.com/Brownie44l1/tflite-handler/internal/handlers"
	"github.com/Brownie44l1/tflite-handler/internal/logger"
	"github.com/Brownie44l1/tflite-handler/internal/metrics"
	"github.com/Brownie44l1/tflite-handler/internal/model"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		stop()
		os.Exit(1)
	}
}

// run wires the server and blocks until ctx is done and in-flight requests
// have drained. Deferred cleanup runs after the drain.
func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitLogger(cfg.LogLevel, cfg.AppName); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := metrics.InitMetrics(cfg.StatsdAddr, cfg.MetricsSamplingRate, []string{"service:" + cfg.AppName}); err != nil {
		logger.Error("StatsD client initialization failed, metrics will be unavailable", err)
	}
	defer metrics.Close()

	tflite.Threads = cfg.EngineThreads
	onnx.SetLibraryPath(cfg.OnnxLibraryPath)
	defer onnx.Shutdown()

	factory, err := engine.Lookup(cfg.EngineKind)
	if err != nil {
		return fmt.Errorf("failed to select engine: %w", err)
	}

	metadataPath := cfg.MetadataPath
	if metadataPath != "" && !filepath.IsAbs(metadataPath) {
		metadataPath = filepath.Join(cfg.ModelDir, metadataPath)
	}
	metadata, err := model.LoadMetadata(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to load model metadata: %w", err)
	}

	modelHandler := model.NewHandler(assets.NewDirBundle(cfg.ModelDir), factory, model.Options{
		ModelName:  cfg.ModelName,
		ModelExt:   cfg.ModelExt,
		Persistent: cfg.EnginePersistent,
		Metadata:   metadata,
	})
	defer modelHandler.Close()

	mux := http.NewServeMux()
	handlers.NewHandler(modelHandler, cfg.TopK).Routes(mux)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}

	logger.Info(fmt.Sprintf("Server starting on port %s", cfg.Port))
	logger.Info(fmt.Sprintf("Model: %s/%s.%s (engine %s, persistent %t)", cfg.ModelDir, cfg.ModelName, cfg.ModelExt, cfg.EngineKind, cfg.EnginePersistent))
	if len(metadata.Classes) > 0 {
		logger.Info(fmt.Sprintf("Classes: %v", metadata.Classes))
	}
	logger.Info("Endpoints: GET /health, POST /predict, POST /predict/image")

	if err := serve(ctx, server, ln, shutdownTimeout); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// serve runs server on ln until ctx is done, then shuts it down and returns
// only once Shutdown has finished draining requests or timed out.
func serve(ctx context.Context, server *http.Server, ln net.Listener, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down, draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
