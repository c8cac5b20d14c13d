// Package core defines the ports between the orchestration layer and its
// adapters (hexagonal architecture). Services depend on these interfaces,
// never on concrete implementations.
package core

import (
	"context"
	"encoding/json"

	"github.com/hackeval/repograder/internal/domain/model"
)

// JobRepository defines the interface for persisted job rows. The in-memory
// state machine is authoritative while a job runs; the repository mirrors
// transitions so status survives restarts and feeds historical queries.
type JobRepository interface {
	Create(ctx context.Context, job *model.AnalysisJob) error
	Update(ctx context.Context, job *model.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*model.AnalysisJob, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.AnalysisJob, error)
}

// ReportRepository defines the interface for persisted analysis reports.
type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	GetByJobID(ctx context.Context, jobID string) (*model.Report, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// Checkout is a local working copy of a fetched repository. Release must be
// called exactly once when the pipeline is done with it.
type Checkout struct {
	// Path is the root directory of the working copy.
	Path string
	// Release removes the working copy from disk.
	Release func() error
}

// RepoFetcher defines the interface for obtaining a local working copy of a
// remote repository. Fetch honors ctx cancellation and deadlines.
type RepoFetcher interface {
	Fetch(ctx context.Context, repoURL string) (*Checkout, error)
}

// AnalyzeRequest carries everything a stage analyzer needs for one run.
type AnalyzeRequest struct {
	Stage    string
	RepoURL  string
	RepoPath string
}

// Analyzer defines the interface for one pipeline stage's analysis backend.
// The returned payload is opaque to the runner; the normalizer interprets it.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (json.RawMessage, error)
}
