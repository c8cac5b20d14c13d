package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackeval/repograder/internal/core"
	jobstate "github.com/hackeval/repograder/internal/domain/job"
	"github.com/hackeval/repograder/internal/domain/model"
	"github.com/hackeval/repograder/internal/observability/metrics"
	"github.com/hackeval/repograder/internal/observability/notify"
	"github.com/hackeval/repograder/internal/observability/statsd"
	"github.com/hackeval/repograder/internal/scoring"
	"github.com/hackeval/repograder/internal/service/failurenotifier"
)

// RunnerOptions configures the pipeline runner.
type RunnerOptions struct {
	Fetcher  core.RepoFetcher
	Analyzer core.Analyzer
	Jobs     core.JobRepository
	Reports  core.ReportRepository

	// Optional collaborators.
	ReportCache     *core.ReportCacheService
	FailureNotifier *failurenotifier.Service
	Metrics         statsd.Sink
	Logger          *slog.Logger

	Stages  []StageDefinition
	Scoring scoring.Config

	// Clock and NewID are injectable for tests.
	Clock func() time.Time
	NewID func() string
}

// Runner drives one analysis job through the stage registry. A single
// goroutine owns a job for its whole run; the state machine takes care of
// concurrent status readers.
type Runner struct {
	fetcher     core.RepoFetcher
	analyzer    core.Analyzer
	jobs        core.JobRepository
	reports     core.ReportRepository
	reportCache *core.ReportCacheService
	notifier    *failurenotifier.Service
	metrics     statsd.Sink
	logger      *slog.Logger
	stages      []StageDefinition
	scoring     scoring.Config
	clock       func() time.Time
	newID       func() string
}

// NewRunner validates options and constructs a pipeline runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Reports == nil {
		return nil, errors.New("report repository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stages := opts.Stages
	if len(stages) == 0 {
		stages = Stages(Timeouts{})
	}
	cfg := opts.Scoring
	cfg.Sanitize()
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Runner{
		fetcher:     opts.Fetcher,
		analyzer:    opts.Analyzer,
		jobs:        opts.Jobs,
		reports:     opts.Reports,
		reportCache: opts.ReportCache,
		notifier:    opts.FailureNotifier,
		metrics:     opts.Metrics,
		logger:      logger,
		stages:      stages,
		scoring:     cfg,
		clock:       clock,
		newID:       newID,
	}, nil
}

// TotalStages returns the number of registered stages.
func (r *Runner) TotalStages() int {
	return len(r.stages)
}

// Run executes the full pipeline for one job. Terminal state, persistence
// and notification are all handled here; the caller only observes the state
// machine afterwards.
func (r *Runner) Run(ctx context.Context, state *jobstate.State) {
	snap := state.Snapshot()
	start := r.clock()

	if err := state.TransitionToRunning(); err != nil {
		r.logger.ErrorContext(ctx, "start job", "job_id", snap.ID, "error", err)
		return
	}
	r.persistJob(ctx, state)
	r.logger.InfoContext(ctx, "analysis started", "job_id", snap.ID, "repo_url", snap.RepoURL)

	results, checkout, failed := r.runStages(ctx, state, snap)
	if checkout != nil && checkout.Release != nil {
		defer func() {
			if err := checkout.Release(); err != nil {
				r.logger.WarnContext(ctx, "release checkout", "job_id", snap.ID, "error", err)
			}
		}()
	}
	if failed {
		r.finishFailed(ctx, state, start)
		return
	}

	r.finalize(ctx, state, snap, results)
	r.emitJobOutcome(ctx, state, start)
}

// runStages executes every registered stage in order. It returns failed=true
// only when a fatal stage failure or cancellation already moved the job to
// its terminal failed state.
func (r *Runner) runStages(
	ctx context.Context,
	state *jobstate.State,
	snap model.AnalysisJob,
) (model.StageResults, *core.Checkout, bool) {
	results := model.StageResults{}
	var checkout *core.Checkout
	total := len(r.stages)

	for i, def := range r.stages {
		stageStart := r.clock()
		output, co, err := r.executeStage(ctx, def, snap, checkout)
		if co != nil {
			checkout = co
		}

		if err != nil {
			reason := stageFailureReason(def, err)
			results[def.Name] = model.StageResult{Stage: def.Name, Err: reason}
			metrics.EmitStage(r.metrics, metrics.StageMetric{
				Stage:    def.Name,
				Result:   metrics.ResultError,
				Duration: r.clock().Sub(stageStart),
				Err:      err,
			})

			if ctx.Err() != nil {
				state.Fail(fmt.Sprintf("analysis canceled during %s", def.Name))
				return results, checkout, true
			}
			if def.Fatal {
				r.logger.ErrorContext(ctx, "fatal stage failed",
					"job_id", snap.ID, "stage", def.Name, "error", err)
				state.Fail(reason)
				return results, checkout, true
			}
			r.logger.WarnContext(ctx, "stage failed, continuing",
				"job_id", snap.ID, "stage", def.Name, "error", err)
		} else {
			results[def.Name] = model.StageResult{Stage: def.Name, Output: output}
			metrics.EmitStage(r.metrics, metrics.StageMetric{
				Stage:    def.Name,
				Result:   metrics.ResultSuccess,
				Duration: r.clock().Sub(stageStart),
			})
		}

		percent := (i + 1) * 100 / total
		if advErr := state.AdvanceStage(def.Name, percent); advErr != nil {
			r.logger.ErrorContext(ctx, "advance stage",
				"job_id", snap.ID, "stage", def.Name, "error", advErr)
		}
		r.persistJob(ctx, state)
	}

	return results, checkout, false
}

// executeStage runs a single stage against its backend. The clone stage goes
// through the fetcher; every other stage calls the analyzer with the local
// checkout path when one exists.
func (r *Runner) executeStage(
	ctx context.Context,
	def StageDefinition,
	snap model.AnalysisJob,
	checkout *core.Checkout,
) (json.RawMessage, *core.Checkout, error) {
	stageCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	if def.Name == model.StageClone {
		co, err := r.fetcher.Fetch(stageCtx, snap.RepoURL)
		if err != nil {
			return nil, nil, err
		}
		output, _ := json.Marshal(map[string]string{"path": co.Path})
		return output, co, nil
	}

	req := core.AnalyzeRequest{Stage: def.Name, RepoURL: snap.RepoURL}
	if checkout != nil {
		req.RepoPath = checkout.Path
	}
	output, err := r.analyzer.Analyze(stageCtx, req)
	return output, nil, err
}

// finalize normalizes, aggregates and persists the report, then completes
// the job. A persistence failure after one retry fails the job even though
// the report was computed.
func (r *Runner) finalize(
	ctx context.Context,
	state *jobstate.State,
	snap model.AnalysisJob,
	results model.StageResults,
) {
	records := scoring.NormalizeAll(results)
	report := scoring.Aggregate(scoring.AggregateInput{
		ReportID: r.newID(),
		JobID:    snap.ID,
		RepoURL:  snap.RepoURL,
		TeamName: snap.TeamName,
	}, records, r.scoring, r.clock())

	if err := r.saveReport(ctx, &report); err != nil {
		r.logger.ErrorContext(ctx, "persist report",
			"job_id", snap.ID, "report_id", report.ID, "error", err)
		state.Fail(fmt.Sprintf("report computed but not persisted: %v", err))
		return
	}

	if err := state.Complete(); err != nil {
		r.logger.ErrorContext(ctx, "complete job", "job_id", snap.ID, "error", err)
		state.Fail(fmt.Sprintf("completion rejected: %v", err))
		return
	}

	if r.reportCache != nil {
		if err := r.reportCache.PutReport(ctx, &report); err != nil {
			r.logger.WarnContext(ctx, "cache report", "job_id", snap.ID, "error", err)
		}
	}
	r.logger.InfoContext(ctx, "analysis completed",
		"job_id", snap.ID, "report_id", report.ID, "total_score", report.TotalScore)
}

// saveReport writes the report with a single retry on failure.
func (r *Runner) saveReport(ctx context.Context, report *model.Report) error {
	err := r.reports.Create(ctx, report)
	if err == nil {
		return nil
	}
	r.logger.WarnContext(ctx, "report save failed, retrying",
		"job_id", report.JobID, "error", err)
	if retryErr := r.reports.Create(ctx, report); retryErr != nil {
		return retryErr
	}
	return nil
}

func (r *Runner) finishFailed(ctx context.Context, state *jobstate.State, start time.Time) {
	r.persistJob(ctx, state)
	r.notifyFailure(ctx, state.Snapshot())
	r.emitJob(state, start, "failed", metrics.ResultError)
}

func (r *Runner) emitJobOutcome(ctx context.Context, state *jobstate.State, start time.Time) {
	snap := state.Snapshot()
	r.persistJob(ctx, state)
	if snap.Status == model.JobStatusFailed {
		r.notifyFailure(ctx, snap)
		r.emitJob(state, start, "failed", metrics.ResultError)
		return
	}
	r.emitJob(state, start, "completed", metrics.ResultSuccess)
}

func (r *Runner) emitJob(state *jobstate.State, start time.Time, transition, result string) {
	snap := state.Snapshot()
	var err error
	if snap.ErrorDetail != "" {
		err = errors.New(snap.ErrorDetail)
	}
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Transition: transition,
		Result:     result,
		Duration:   r.clock().Sub(start),
		Err:        err,
	})
}

func (r *Runner) notifyFailure(ctx context.Context, snap model.AnalysisJob) {
	if !r.notifier.Enabled() {
		return
	}
	r.notifier.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:      snap.ID,
		RepoURL:    snap.RepoURL,
		TeamName:   snap.TeamName,
		Stage:      snap.Stage,
		Error:      snap.ErrorDetail,
		OccurredAt: r.clock(),
	})
}

func (r *Runner) persistJob(ctx context.Context, state *jobstate.State) {
	snap := state.Snapshot()
	if err := r.jobs.Update(ctx, &snap); err != nil {
		r.logger.WarnContext(ctx, "persist job state",
			"job_id", snap.ID, "status", snap.Status, "error", err)
	}
}

func stageFailureReason(def StageDefinition, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out after %s", def.Name, def.Timeout)
	}
	return fmt.Sprintf("%s failed: %v", def.Name, err)
}
