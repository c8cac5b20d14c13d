// Package data provides the persistence layer for the repograder analysis
// system: postgres repositories over database/sql with the pgx driver, and
// the Redis cache repository.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hackeval/repograder/internal/domain/model"
)

// RepoConfig holds configuration options for the data repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for analysis job rows.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  repo_url,
  team_name,
  stage,
  progress,
  status,
  error_detail,
  created_at,
  started_at,
  completed_at
`

// Create inserts a freshly admitted job row.
func (r *JobRepo) Create(ctx context.Context, job *model.AnalysisJob) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job with id is required")
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO analysis_jobs
		  (id, repo_url, team_name, stage, progress, status, error_detail, created_at, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		job.ID, job.RepoURL, job.TeamName, job.Stage, job.Progress, job.Status,
		job.ErrorDetail, job.CreatedAt, job.StartedAt, job.CompletedAt, r.timeProvider.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update mirrors a state machine transition into the job row.
func (r *JobRepo) Update(ctx context.Context, job *model.AnalysisJob) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job with id is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET stage = $2,
		    progress = $3,
		    status = $4,
		    error_detail = $5,
		    started_at = $6,
		    completed_at = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		job.ID, job.Stage, job.Progress, job.Status, job.ErrorDetail,
		job.StartedAt, job.CompletedAt, r.timeProvider.Now(),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if rows, rowsErr := res.RowsAffected(); rowsErr == nil && rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetByID fetches one job row.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("job id is required")
	}

	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns job rows, newest first, with optional status filtering.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.AnalysisJob, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + ` FROM analysis_jobs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, opts.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "close job rows", "error", closeErr)
		}
	}()

	var jobs []*model.AnalysisJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&job.ID, &job.RepoURL, &job.TeamName, &job.Stage, &job.Progress,
		&job.Status, &job.ErrorDetail, &job.CreatedAt, &startedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
