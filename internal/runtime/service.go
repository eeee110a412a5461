// Package runtime assembles the full service and manages its lifecycle:
// config, logging, telemetry, storage, event publishing, and the HTTP API.
// Service can be embedded in larger programs or run standalone from cmd.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/printfarm/gcodemux/internal/config"
	"github.com/printfarm/gcodemux/internal/events"
	"github.com/printfarm/gcodemux/internal/server"
	"github.com/printfarm/gcodemux/internal/storage"
	"github.com/printfarm/gcodemux/internal/storage/memory"
	"github.com/printfarm/gcodemux/internal/storage/sqlite"
	"github.com/printfarm/gcodemux/internal/telemetry"
	"github.com/printfarm/gcodemux/internal/web"
)

// Service wires the pipeline's HTTP API to its supporting pieces.
type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	level   *slog.LevelVar
	store   storage.Store
	events  events.Publisher
	watcher *config.Watcher

	server        *server.Server
	stopTelemetry func(context.Context) error

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New creates a Service with the given options. Without an explicit config
// the default config file path is loaded, falling back to built-in defaults
// when the file does not exist.
func New(opts ...Option) (*Service, error) {
	s := &Service{log: slog.Default()}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
	}

	if s.level != nil {
		if lvl, err := ParseLevel(s.cfg.Logging.Level); err == nil {
			s.level.Set(lvl)
		} else {
			s.log.Warn("ignoring invalid log level", slog.String("error", err.Error()))
		}
	}

	if s.store == nil {
		store, err := newStore(s.cfg.Storage)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	if s.events == nil {
		s.events = newPublisher(s.store, s.log)
	}

	return s, nil
}

// newStore builds the configured job store. Driver "none" disables job
// history entirely.
func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		return store, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

// newPublisher composes the default event publishers: structured logging
// always, direct persistence when a store exists.
func newPublisher(store storage.Store, log *slog.Logger) events.Publisher {
	pubs := events.Multi{events.NewLogger(log)}
	if store != nil {
		if direct, err := events.NewDirect(store); err == nil {
			pubs = append(pubs, direct)
		}
	}
	return pubs
}

// Start brings the service up: telemetry, routes, the listener, and the
// config watcher. It returns once the listener goroutine is running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	stopTelemetry, err := telemetry.Setup(s.cfg.Telemetry, s.log)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	s.stopTelemetry = stopTelemetry

	s.server = server.New(s.cfg.Server, s.log)

	fetcher := web.NewFetcher(s.cfg.Fetch)
	handler := web.New(s.log, s.store, s.events, fetcher, s.cfg.Pipeline.Strict)
	handler.Routes(s.server.Router)

	go func() {
		if err := s.server.Start(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	if s.watcher != nil {
		if err := s.watcher.Watch(s.ctx, s.applyConfig); err != nil {
			s.log.Error("config watch failed", slog.String("error", err.Error()))
		}
	}

	s.log.Info("service started",
		slog.String("host", s.cfg.Server.Host),
		slog.Int("port", s.cfg.Server.Port),
		slog.String("storage", s.cfg.Storage.Driver),
		slog.Bool("strict", s.cfg.Pipeline.Strict))

	return nil
}

// Shutdown stops the service, closing every resource it opened. Close
// failures are logged, not returned; only a listener that refuses to stop
// fails the shutdown.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("shutting down service")

	if s.cancel != nil {
		s.cancel()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Error("failed to close config watcher", slog.String("error", err.Error()))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.log.Error("failed to close events", slog.String("error", err.Error()))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	if s.stopTelemetry != nil {
		if err := s.stopTelemetry(ctx); err != nil {
			s.log.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
		}
	}

	s.log.Info("service shutdown complete")
	return nil
}

// applyConfig adopts the dynamic parts of a reloaded config. Only the log
// level takes effect without a restart.
func (s *Service) applyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	if s.level == nil {
		return
	}
	lvl, err := ParseLevel(cfg.Logging.Level)
	if err != nil {
		s.log.Warn("ignoring invalid log level", slog.String("error", err.Error()))
		return
	}
	s.level.Set(lvl)
	s.log.Info("log level updated", slog.String("level", cfg.Logging.Level))
}

// ParseLevel maps a config logging level to its slog value. An empty string
// means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", level)
}
