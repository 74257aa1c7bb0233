package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"medrisk/config"
	"medrisk/db"
	qhttp "medrisk/http"
	"medrisk/inference"
	"medrisk/logging"
	"medrisk/monitoring"
)

type args struct {
	Config string `arg:"-c,--config" default:"config.yaml" help:"path to the YAML config"`
	Debug  bool   `arg:"--debug" help:"console logging at debug level"`
	Port   int    `arg:"-p,--port" help:"listen port (overrides server.port)"`
}

func (args) Description() string {
	return "medrisk serves disease risk predictions from a trained model"
}

func main() {
	var a args
	arg.MustParse(&a)

	// 1. Load config
	cfg, err := config.Load(a.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if a.Port > 0 {
		cfg.Server.Port = a.Port
	}
	logger, err := logging.New(cfg.Log, a.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2. Load the model once; it is never replaced while serving
	svc, err := inference.Load(cfg.Model.Artifact, cfg.Model.Type)
	if errors.Is(err, inference.ErrModelNotFound) {
		logger.Error("model not found, run train_model first", zap.String("path", cfg.Model.Artifact))
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to load model", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("model loaded", zap.String("path", cfg.Model.Artifact), zap.Int("trees", svc.Trees()))

	// 3. Expose the training run log when one has been written
	var runs qhttp.RunLog
	if path := cfg.Training.RunLog; path != "" {
		if _, err := os.Stat(path); err == nil {
			store, err := db.Open(path)
			if err != nil {
				logger.Error("failed to open run log", zap.String("path", path), zap.Error(err))
				os.Exit(1)
			}
			defer store.Close()
			runs = store
		}
	}

	// 4. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, svc, runs, monitoring.NewMetrics(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	if err := server.Stop(context.Background()); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
