package testutil

import (
	"time"

	"github.com/hackeval/repograder/internal/domain/model"
)

// JobBuilder provides a fluent interface for building AnalysisJob rows for testing.
type JobBuilder struct {
	job *model.AnalysisJob
}

// NewJob creates a new JobBuilder with sensible defaults.
func NewJob(id string) *JobBuilder {
	return &JobBuilder{
		job: &model.AnalysisJob{
			ID:        id,
			RepoURL:   "https://github.com/acme/demo",
			TeamName:  "acme",
			Status:    model.JobStatusQueued,
			CreatedAt: TestTime(),
		},
	}
}

// WithRepoURL sets the repository URL.
func (b *JobBuilder) WithRepoURL(url string) *JobBuilder {
	b.job.RepoURL = url
	return b
}

// WithTeamName sets the team name.
func (b *JobBuilder) WithTeamName(name string) *JobBuilder {
	b.job.TeamName = name
	return b
}

// WithStatus sets the job status.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithStage sets the current pipeline stage.
func (b *JobBuilder) WithStage(stage string) *JobBuilder {
	b.job.Stage = stage
	return b
}

// WithProgress sets the progress percentage.
func (b *JobBuilder) WithProgress(progress int) *JobBuilder {
	b.job.Progress = progress
	return b
}

// WithErrorDetail sets the failure detail.
func (b *JobBuilder) WithErrorDetail(detail string) *JobBuilder {
	b.job.ErrorDetail = detail
	return b
}

// WithCreatedAt sets the admission timestamp.
func (b *JobBuilder) WithCreatedAt(t time.Time) *JobBuilder {
	b.job.CreatedAt = t
	return b
}

// WithStartedAt sets the start timestamp.
func (b *JobBuilder) WithStartedAt(t time.Time) *JobBuilder {
	b.job.StartedAt = &t
	return b
}

// WithCompletedAt sets the completion timestamp.
func (b *JobBuilder) WithCompletedAt(t time.Time) *JobBuilder {
	b.job.CompletedAt = &t
	return b
}

// Build returns the constructed job.
func (b *JobBuilder) Build() *model.AnalysisJob {
	return b.job
}
