package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/printfarm/gcodemux/internal/storage"
)

// Store is a SQLite implementation of storage.Store. The schema is created
// on open, so a DSN pointing at a fresh file is enough to get going.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New opens the database at the given DSN and ensures the schema exists.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
id TEXT PRIMARY KEY,
kind TEXT NOT NULL,
source_a TEXT NOT NULL,
source_b TEXT NOT NULL DEFAULT '',
records INTEGER NOT NULL DEFAULT 0,
layers INTEGER NOT NULL DEFAULT 0,
duration_ns INTEGER NOT NULL DEFAULT 0,
error TEXT NOT NULL DEFAULT '',
created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_kind ON jobs(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateJob(ctx context.Context, job *storage.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	query := `INSERT INTO jobs (id, kind, source_a, source_b, records, layers, duration_ns, error, created_at)
	          VALUES (:id, :kind, :source_a, :source_b, :records, :layers, :duration_ns, :error, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	query := `SELECT id, kind, source_a, source_b, records, layers, duration_ns, error, created_at
	          FROM jobs WHERE id = ?`

	var job storage.Job
	err := s.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NewNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, opts storage.ListOptions) ([]*storage.Job, error) {
	query := `SELECT id, kind, source_a, source_b, records, layers, duration_ns, error, created_at FROM jobs`
	var args []any

	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, opts.Kind)
	}

	query += ` ORDER BY created_at DESC, id`

	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1 // SQLite reads this as unlimited
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	jobs := []*storage.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
