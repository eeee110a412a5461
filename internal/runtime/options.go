package runtime

import (
	"fmt"
	"log/slog"

	"github.com/printfarm/gcodemux/internal/config"
	"github.com/printfarm/gcodemux/internal/events"
	"github.com/printfarm/gcodemux/internal/storage"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfig injects an already-loaded config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		s.cfg = cfg
		return nil
	}
}

// WithConfigFile loads config from a file and watches it for changes while
// the service runs.
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		watcher, err := config.NewWatcher(path, s.log)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		cfg, err := watcher.Load()
		if err != nil {
			return err
		}
		s.watcher = watcher
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger. Pass this before options that log.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// WithLogLevel hands the service the level var behind its logger so config
// reloads can adjust verbosity at runtime.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(s *Service) error {
		s.level = level
		return nil
	}
}

// WithStore sets a custom job store, overriding the configured driver.
func WithStore(store storage.Store) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithPublisher sets a custom event publisher, replacing the default
// logging-plus-persistence pair.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Service) error {
		s.events = pub
		return nil
	}
}
