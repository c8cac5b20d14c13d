package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackeval/repograder/internal/domain/model"
)

// ReportRepo provides database operations for finished analysis reports.
// The whole report is stored as a JSONB document; the columns needed for
// leaderboard ranking are extracted alongside it.
type ReportRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewReportRepo creates a new ReportRepo instance with the given database connection and configuration.
func NewReportRepo(db *sql.DB, cfg RepoConfig) *ReportRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &ReportRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// Create persists a finished report. A job produces at most one report;
// a duplicate insert for the same job id is treated as already persisted
// so a retried save after a partial success stays idempotent.
func (r *ReportRepo) Create(ctx context.Context, report *model.Report) error {
	if report == nil || strings.TrimSpace(report.ID) == "" {
		return errors.New("report with id is required")
	}
	if strings.TrimSpace(report.JobID) == "" {
		return errors.New("report job id is required")
	}

	document, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report document: %w", err)
	}
	scores, err := json.Marshal(report.Scores)
	if err != nil {
		return fmt.Errorf("encode report scores: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO analysis_reports
		  (id, job_id, repo_url, team_name, total_score, scores, document, generated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		report.ID, report.JobID, report.RepoURL, report.TeamName,
		report.TotalScore, scores, document, report.GeneratedAt, r.timeProvider.Now(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if r.logger != nil {
				r.logger.WarnContext(ctx, "report already persisted", "job_id", report.JobID)
			}
			return nil
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByJobID fetches the report produced by one job.
func (r *ReportRepo) GetByJobID(ctx context.Context, jobID string) (*model.Report, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("job id is required")
	}

	var document []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT document FROM analysis_reports WHERE job_id = $1`, jobID,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal(document, &report); err != nil {
		return nil, fmt.Errorf("decode report document: %w", err)
	}
	return &report, nil
}

// Leaderboard returns the top completed reports by total score. Ties break
// on generation time so earlier submissions rank first.
func (r *ReportRepo) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT job_id, repo_url, team_name, total_score, scores, generated_at
		FROM analysis_reports
		ORDER BY total_score DESC, generated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "close leaderboard rows", "error", closeErr)
		}
	}()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var entry model.LeaderboardEntry
		var scores []byte
		if err := rows.Scan(
			&entry.JobID, &entry.RepoURL, &entry.TeamName,
			&entry.TotalScore, &scores, &entry.AnalyzedAt,
		); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		if err := json.Unmarshal(scores, &entry.Scores); err != nil {
			return nil, fmt.Errorf("decode leaderboard scores: %w", err)
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}
