package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/printfarm/gcodemux/internal/config"
	"github.com/printfarm/gcodemux/internal/runtime"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := os.Getenv("GCODEMUX_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLogLevel(level),
	}
	// Without a config file the service runs on environment variables and
	// built-in defaults, so a missing file is not an error.
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, runtime.WithConfigFile(path))
	}

	svc, err := runtime.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
