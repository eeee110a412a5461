// Package events publishes job lifecycle events to decoupled consumers. The
// handlers emit events instead of writing to storage themselves; publishers
// decide what sticks.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/printfarm/gcodemux/internal/storage"
)

// Type identifies a job lifecycle event.
type Type string

const (
	TypeStarted   Type = "job.started"
	TypeCompleted Type = "job.completed"
	TypeFailed    Type = "job.failed"
)

// Event is one job lifecycle notification.
type Event struct {
	Type      Type         `json:"type"`
	Job       *storage.Job `json:"job"`
	Timestamp time.Time    `json:"timestamp"`
}

// New builds an event for the job, stamped now.
func New(typ Type, job *storage.Job) *Event {
	return &Event{Type: typ, Job: job, Timestamp: time.Now()}
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Direct writes terminal job events straight to storage. This is the default
// for single-instance deployments.
type Direct struct {
	store storage.Store
}

// NewDirect creates a direct publisher over the given store.
func NewDirect(store storage.Store) (*Direct, error) {
	if store == nil {
		return nil, fmt.Errorf("job store required")
	}
	return &Direct{store: store}, nil
}

// Publish persists completed and failed jobs. Started events carry no final
// counters yet and are not stored.
func (p *Direct) Publish(ctx context.Context, event *Event) error {
	switch event.Type {
	case TypeCompleted, TypeFailed:
		if err := p.store.CreateJob(ctx, event.Job); err != nil {
			return fmt.Errorf("failed to persist job event: %w", err)
		}
	}
	return nil
}

// Close is a no-op for direct publisher.
func (p *Direct) Close() error {
	return nil
}

// Logger reports every event to the log and never fails.
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a logging publisher.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (p *Logger) Publish(_ context.Context, event *Event) error {
	p.log.Info("job event",
		slog.String("type", string(event.Type)),
		slog.String("job_id", event.Job.ID),
		slog.String("kind", event.Job.Kind),
	)
	return nil
}

func (p *Logger) Close() error {
	return nil
}

// Multi fans each event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
