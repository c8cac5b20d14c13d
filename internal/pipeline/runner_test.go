package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeval/repograder/internal/core"
	jobstate "github.com/hackeval/repograder/internal/domain/job"
	"github.com/hackeval/repograder/internal/domain/model"
	"github.com/hackeval/repograder/internal/observability/notify"
	"github.com/hackeval/repograder/internal/service/failurenotifier"
)

type fakeFetcher struct {
	mu       sync.Mutex
	err      error
	released bool
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*core.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Checkout{
		Path: "/tmp/checkout",
		Release: func() error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.released = true
			return nil
		},
	}, nil
}

func (f *fakeFetcher) wasReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeAnalyzer struct {
	payloads map[string]string
	fail     map[string]error
	block    map[string]bool
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, req core.AnalyzeRequest) (json.RawMessage, error) {
	if a.block[req.Stage] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := a.fail[req.Stage]; err != nil {
		return nil, err
	}
	payload := a.payloads[req.Stage]
	if payload == "" {
		payload = "{}"
	}
	return json.RawMessage(payload), nil
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]model.AnalysisJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]model.AnalysisJob)}
}

func (r *memJobRepo) Create(_ context.Context, job *model.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) Update(_ context.Context, job *model.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &job, nil
}

func (r *memJobRepo) List(context.Context, model.JobListOptions) ([]*model.AnalysisJob, error) {
	return nil, nil
}

type memReportRepo struct {
	mu           sync.Mutex
	reports      []model.Report
	failuresLeft int
}

func (r *memReportRepo) Create(_ context.Context, report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("storage unavailable")
	}
	r.reports = append(r.reports, *report)
	return nil
}

func (r *memReportRepo) GetByJobID(_ context.Context, jobID string) (*model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reports {
		if r.reports[i].JobID == jobID {
			return &r.reports[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (r *memReportRepo) Leaderboard(context.Context, int) ([]model.LeaderboardEntry, error) {
	return nil, nil
}

func (r *memReportRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type runnerFixture struct {
	runner   *Runner
	fetcher  *fakeFetcher
	analyzer *fakeAnalyzer
	jobs     *memJobRepo
	reports  *memReportRepo
}

func newFixture(t *testing.T, mutate func(*RunnerOptions)) *runnerFixture {
	t.Helper()

	fx := &runnerFixture{
		fetcher:  &fakeFetcher{},
		analyzer: &fakeAnalyzer{payloads: map[string]string{}, fail: map[string]error{}, block: map[string]bool{}},
		jobs:     newMemJobRepo(),
		reports:  &memReportRepo{},
	}

	opts := RunnerOptions{
		Fetcher:  fx.fetcher,
		Analyzer: fx.analyzer,
		Jobs:     fx.jobs,
		Reports:  fx.reports,
		Stages:   Stages(Timeouts{Default: time.Second, Clone: time.Second}),
		NewID:    func() string { return "rep-1" },
	}
	if mutate != nil {
		mutate(&opts)
	}

	runner, err := NewRunner(opts)
	require.NoError(t, err)
	fx.runner = runner
	return fx
}

func newRunState(runner *Runner) *jobstate.State {
	return jobstate.New(jobstate.Options{
		Job: model.AnalysisJob{
			ID:      "job-1",
			RepoURL: "https://github.com/acme/demo",
		},
		TotalStages: runner.TotalStages(),
	})
}

func TestRunner_CompletesAndPersistsReport(t *testing.T) {
	fx := newFixture(t, nil)
	fx.analyzer.payloads[model.StageStackDetection] = `["Go"]`
	fx.analyzer.payloads[model.StageCommitForensics] = `{"total_commits": 42, "author_stats": {"alice": 42}}`
	fx.analyzer.payloads[model.StageAIJudge] = `{"implementation_score": 80, "verdict": "Good."}`

	state := newRunState(fx.runner)
	fx.runner.Run(context.Background(), state)

	snap := state.Snapshot()
	assert.Equal(t, model.JobStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)

	require.Equal(t, 1, fx.reports.count())
	report, err := fx.reports.GetByJobID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, report.TechStack)
	assert.Equal(t, 42, report.TotalCommits)
	assert.Equal(t, float64(42), report.Scores.Effort)

	// The checkout is always released.
	assert.True(t, fx.fetcher.wasReleased())

	// Persisted job row mirrors the terminal state.
	stored, err := fx.jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, stored.Status)
}

func TestRunner_FatalCloneFailureAbortsJob(t *testing.T) {
	var notified []notify.JobFailurePayload
	var mu sync.Mutex
	notifier := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{{
			Name: "test",
			Sink: notify.SinkFunc(func(_ context.Context, p notify.JobFailurePayload) error {
				mu.Lock()
				defer mu.Unlock()
				notified = append(notified, p)
				return nil
			}),
		}},
	})

	fx := newFixture(t, func(opts *RunnerOptions) {
		opts.FailureNotifier = notifier
	})
	fx.fetcher.err = errors.New("repository not found")

	state := newRunState(fx.runner)
	fx.runner.Run(context.Background(), state)

	snap := state.Snapshot()
	assert.Equal(t, model.JobStatusFailed, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "clone failed")
	assert.Zero(t, fx.reports.count())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notified, 1)
	assert.Equal(t, "job-1", notified[0].JobID)
}

func TestRunner_TolerantStageFailureStillCompletes(t *testing.T) {
	fx := newFixture(t, nil)
	fx.analyzer.fail[model.StageSecurityScan] = errors.New("scanner crashed")

	state := newRunState(fx.runner)
	fx.runner.Run(context.Background(), state)

	assert.Equal(t, model.JobStatusCompleted, state.Snapshot().Status)

	report, err := fx.reports.GetByJobID(context.Background(), "job-1")
	require.NoError(t, err)

	// The degraded category shows up as a warning, and the security score
	// keeps its no-scan baseline.
	assert.Equal(t, float64(100), report.Scores.Security)
	var found bool
	for _, w := range report.Warnings {
		if w.Stage == model.StageSecurityScan {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunner_StageTimeoutIsStageFailure(t *testing.T) {
	fx := newFixture(t, func(opts *RunnerOptions) {
		opts.Stages = Stages(Timeouts{Default: 20 * time.Millisecond, Clone: time.Second})
	})
	fx.analyzer.block[model.StageQualityCheck] = true

	state := newRunState(fx.runner)
	fx.runner.Run(context.Background(), state)

	// A tolerant stage timeout does not fail the job.
	assert.Equal(t, model.JobStatusCompleted, state.Snapshot().Status)

	report, err := fx.reports.GetByJobID(context.Background(), "job-1")
	require.NoError(t, err)
	var reason string
	for _, w := range report.Warnings {
		if w.Stage == model.StageQualityCheck {
			reason = w.Reason
		}
	}
	assert.Contains(t, reason, "timed out")
}

func TestRunner_ReportPersistence(t *testing.T) {
	t.Run("retries once and completes", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.reports.failuresLeft = 1

		state := newRunState(fx.runner)
		fx.runner.Run(context.Background(), state)

		assert.Equal(t, model.JobStatusCompleted, state.Snapshot().Status)
		assert.Equal(t, 1, fx.reports.count())
	})

	t.Run("fails after second storage error", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.reports.failuresLeft = 2

		state := newRunState(fx.runner)
		fx.runner.Run(context.Background(), state)

		snap := state.Snapshot()
		assert.Equal(t, model.JobStatusFailed, snap.Status)
		assert.Contains(t, snap.ErrorDetail, "report computed but not persisted")
		assert.Zero(t, fx.reports.count())
	})
}

func TestRunner_CancellationFailsJob(t *testing.T) {
	fx := newFixture(t, nil)
	fx.analyzer.block[model.StageMaturityCheck] = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	state := newRunState(fx.runner)
	fx.runner.Run(ctx, state)

	snap := state.Snapshot()
	assert.Equal(t, model.JobStatusFailed, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "canceled")
	assert.Zero(t, fx.reports.count())
}

func TestStages_RegistryShape(t *testing.T) {
	stages := Stages(Timeouts{})

	require.Len(t, stages, 9)
	assert.Equal(t, model.StageClone, stages[0].Name)
	assert.True(t, stages[0].Fatal)
	for _, def := range stages[1:] {
		assert.False(t, def.Fatal, def.Name)
		assert.Positive(t, def.Timeout)
	}
}
