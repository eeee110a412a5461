package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/printfarm/gcodemux/internal/storage"
)

// Store is an in-memory implementation of storage.Store. There is no
// persistence across restarts; it backs tests and the default deployment.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*storage.Job
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*storage.Job),
	}
}

func (s *Store) CreateJob(ctx context.Context, job *storage.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, storage.NewNotFound(id)
	}

	out := *job
	return &out, nil
}

func (s *Store) ListJobs(ctx context.Context, opts storage.ListOptions) ([]*storage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Job
	for _, job := range s.jobs {
		if opts.Kind != "" && job.Kind != opts.Kind {
			continue
		}
		out := *job
		result = append(result, &out)
	}

	// Newest first, ties broken by id so pages are stable.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*storage.Job{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
