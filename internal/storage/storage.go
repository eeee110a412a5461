// Package storage persists job records, one per processed stream or merge.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Job kinds, one per API operation that touches the pipeline.
const (
	KindNormalize = "normalize"
	KindMerge     = "merge"
	KindLayers    = "layers"
)

// Job records one processing request: what came in, what the pipeline
// produced and how long it took. Error holds the first failure message for
// requests that were accepted but did not finish.
type Job struct {
	ID        string        `json:"id" db:"id"`
	Kind      string        `json:"kind" db:"kind"`
	SourceA   string        `json:"source_a" db:"source_a"`
	SourceB   string        `json:"source_b,omitempty" db:"source_b"`
	Records   int           `json:"records" db:"records"`
	Layers    int           `json:"layers" db:"layers"`
	Duration  time.Duration `json:"duration_ns" db:"duration_ns"`
	Error     string        `json:"error,omitempty" db:"error"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// ListOptions narrows and pages ListJobs results. A zero Limit means no cap.
type ListOptions struct {
	Kind   string
	Limit  int
	Offset int
}

// Store persists jobs. Implementations are safe for concurrent use.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, opts ListOptions) ([]*Job, error)
	Close() error
}

// NotFoundError reports a job id with no stored record.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.ID)
}

// NewNotFound creates a NotFoundError for the given job id.
func NewNotFound(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}
