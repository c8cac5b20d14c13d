// Package service provides the orchestration services for the repograder
// analysis system.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hackeval/repograder/internal/core"
	"github.com/hackeval/repograder/internal/data"
	jobstate "github.com/hackeval/repograder/internal/domain/job"
	"github.com/hackeval/repograder/internal/domain/model"
	apperrors "github.com/hackeval/repograder/internal/errors"
	"github.com/hackeval/repograder/internal/pipeline"
)

// SchedulerConfig holds configuration for the analysis scheduler.
type SchedulerConfig struct {
	// Concurrency is the number of pipeline workers.
	Concurrency int `json:"concurrency"`
	// QueueSize bounds the number of admitted jobs waiting for a worker.
	QueueSize int `json:"queue_size"`
	// LeaderboardLimit is the default number of leaderboard rows.
	LeaderboardLimit int `json:"leaderboard_limit"`
}

// DefaultSchedulerConfig returns a SchedulerConfig with sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Concurrency:      2,
		QueueSize:        64,
		LeaderboardLimit: 20,
	}
}

// Sanitize applies guardrails to scheduler configuration values.
func (c *SchedulerConfig) Sanitize() {
	def := DefaultSchedulerConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.LeaderboardLimit <= 0 {
		c.LeaderboardLimit = def.LeaderboardLimit
	}
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Runner  *pipeline.Runner
	Jobs    core.JobRepository
	Reports core.ReportRepository

	// Optional collaborators.
	ReportCache  *core.ReportCacheService
	Config       *SchedulerConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// SchedulerService admits analysis jobs, deduplicates concurrent submissions
// for the same target, and feeds a bounded worker pool that drives the
// pipeline runner. The admission table and the per-job state registry live
// in memory; persisted rows mirror them for durability and history.
type SchedulerService struct {
	runner       *pipeline.Runner
	jobs         core.JobRepository
	reports      core.ReportRepository
	reportCache  *core.ReportCacheService
	cfg          SchedulerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger

	// admission maps normalized target to the active job ID, targets is
	// its reverse index, and states keeps every job's state machine so
	// Status can answer for finished jobs too.
	mu        sync.Mutex
	admission map[string]string
	targets   map[string]string
	states    map[string]*jobstate.State
	queue     chan *jobstate.State
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}
	if opts.Jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if opts.Reports == nil {
		return nil, fmt.Errorf("report repository is required")
	}

	cfg := DefaultSchedulerConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	cfg.Sanitize()

	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SchedulerService{
		runner:       opts.Runner,
		jobs:         opts.Jobs,
		reports:      opts.Reports,
		reportCache:  opts.ReportCache,
		cfg:          cfg,
		timeProvider: tp,
		logger:       logger,
		admission:    make(map[string]string),
		targets:      make(map[string]string),
		states:       make(map[string]*jobstate.State),
		queue:        make(chan *jobstate.State, cfg.QueueSize),
	}, nil
}

// Run starts the worker pool and blocks until the context is cancelled.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting analysis scheduler",
		"workers", s.cfg.Concurrency, "queue_size", s.cfg.QueueSize)

	var wg sync.WaitGroup
	for range s.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (s *SchedulerService) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-s.queue:
			s.runner.Run(ctx, state)
			s.release(state.Snapshot().ID)
		}
	}
}

// release frees the admission slot for a terminal job. The state entry stays
// in the registry so Status keeps answering for finished jobs.
func (s *SchedulerService) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.targets[jobID]
	if !ok {
		return
	}
	delete(s.targets, jobID)
	if s.admission[target] == jobID {
		delete(s.admission, target)
	}
}

// Submit admits a new analysis job for the given repository. A target that
// already has a queued or running job is rejected with a Conflict error.
func (s *SchedulerService) Submit(ctx context.Context, req model.SubmitRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid submission")
	}

	target := normalizeTarget(req.RepoURL)
	jobID := uuid.NewString()

	now := s.timeProvider.Now()
	state := jobstate.New(jobstate.Options{
		Job: model.AnalysisJob{
			ID:        jobID,
			RepoURL:   strings.TrimSpace(req.RepoURL),
			TeamName:  strings.TrimSpace(req.TeamName),
			Status:    model.JobStatusQueued,
			CreatedAt: now,
		},
		TotalStages: s.runner.TotalStages(),
		Clock:       s.timeProvider.Now,
	})

	if err := s.admit(target, jobID, state); err != nil {
		return "", err
	}

	snap := state.Snapshot()
	if err := s.jobs.Create(ctx, &snap); err != nil {
		s.evict(target, jobID)
		return "", apperrors.Wrap(err, apperrors.ErrCodeStorage, "persist job")
	}

	select {
	case s.queue <- state:
	default:
		s.evict(target, jobID)
		return "", apperrors.NotReady("analysis queue is full")
	}

	s.logger.InfoContext(ctx, "job admitted",
		"job_id", jobID, "repo_url", snap.RepoURL, "team", snap.TeamName)
	return jobID, nil
}

// admit reserves the admission slot for a target. An existing slot whose job
// is already terminal is stale and gets replaced.
func (s *SchedulerService) admit(target, jobID string, state *jobstate.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activeID, ok := s.admission[target]; ok {
		if active, found := s.states[activeID]; found && !active.Status().Terminal() {
			return apperrors.Conflictf(
				"analysis already %s for this repository (job %s)", active.Status(), activeID)
		}
		delete(s.targets, activeID)
	}

	s.admission[target] = jobID
	s.targets[jobID] = target
	s.states[jobID] = state
	return nil
}

// evict rolls back a reservation made by admit.
func (s *SchedulerService) evict(target, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.admission[target] == jobID {
		delete(s.admission, target)
	}
	delete(s.targets, jobID)
	delete(s.states, jobID)
}

// Status returns the current status snapshot for a job. In-memory state is
// authoritative; persisted rows answer for jobs from before a restart.
func (s *SchedulerService) Status(ctx context.Context, jobID string) (model.JobStatusResponse, error) {
	s.mu.Lock()
	state, ok := s.states[jobID]
	s.mu.Unlock()

	if ok {
		snap := state.Snapshot()
		return statusResponse(snap), nil
	}

	stored, err := s.jobs.GetByID(ctx, jobID)
	if err != nil || stored == nil {
		return model.JobStatusResponse{}, apperrors.NotFoundf("job %s not found", jobID)
	}
	return statusResponse(*stored), nil
}

// Report returns the persisted report for a completed job.
func (s *SchedulerService) Report(ctx context.Context, jobID string) (*model.Report, error) {
	status, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch status.Status {
	case model.JobStatusQueued, model.JobStatusRunning:
		return nil, apperrors.NotReady(fmt.Sprintf("job %s is still %s", jobID, status.Status))
	case model.JobStatusFailed:
		return nil, apperrors.NotFoundf("job %s failed and produced no report", jobID)
	}

	if s.reportCache != nil {
		if cached, cacheErr := s.reportCache.GetReport(ctx, jobID); cacheErr == nil && cached != nil {
			return cached, nil
		}
	}

	report, err := s.reports.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "report for job %s", jobID)
	}
	if s.reportCache != nil {
		if cacheErr := s.reportCache.PutReport(ctx, report); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache report", "job_id", jobID, "error", cacheErr)
		}
	}
	return report, nil
}

// Leaderboard returns completed reports ranked by total score.
func (s *SchedulerService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	useCache := s.reportCache != nil && (limit <= 0 || limit == s.cfg.LeaderboardLimit)
	if limit <= 0 {
		limit = s.cfg.LeaderboardLimit
	}

	if useCache {
		if cached, err := s.reportCache.GetLeaderboard(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	entries, err := s.reports.Leaderboard(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load leaderboard")
	}

	if useCache {
		if err := s.reportCache.PutLeaderboard(ctx, entries); err != nil {
			s.logger.WarnContext(ctx, "cache leaderboard", "error", err)
		}
	}
	return entries, nil
}

// List returns persisted jobs, newest first.
func (s *SchedulerService) List(ctx context.Context, opts model.JobListOptions) ([]*model.AnalysisJob, error) {
	jobs, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "list jobs")
	}
	return jobs, nil
}

func statusResponse(job model.AnalysisJob) model.JobStatusResponse {
	return model.JobStatusResponse{
		JobID:       job.ID,
		Stage:       job.Stage,
		Progress:    job.Progress,
		Status:      job.Status,
		ErrorDetail: job.ErrorDetail,
	}
}

// normalizeTarget canonicalizes a repository URL for admission dedup so the
// same repository submitted with trivial URL variations maps to one slot.
func normalizeTarget(repoURL string) string {
	target := strings.TrimSpace(repoURL)
	target = strings.TrimRight(target, "/")
	target = strings.TrimSuffix(target, ".git")
	return strings.ToLower(target)
}
