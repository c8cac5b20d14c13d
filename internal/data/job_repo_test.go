package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeval/repograder/internal/domain/model"
	"github.com/hackeval/repograder/internal/testutil"
)

func createTestJob(t *testing.T, repo *JobRepo, status model.JobStatus) *model.AnalysisJob {
	t.Helper()
	job := testutil.NewJob(uuid.NewString()).
		WithRepoURL(fmt.Sprintf("https://github.com/acme/demo-%d", time.Now().UnixNano())).
		WithStatus(status).
		Build()
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestJobRepo_Create_Get_Update(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})

		job := createTestJob(t, repo, model.JobStatusQueued)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, job.RepoURL, got.RepoURL)
		assert.Equal(t, model.JobStatusQueued, got.Status)
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.CompletedAt)

		clock.Advance(time.Minute)
		started := time.Now().UTC().Truncate(time.Second)
		job.Status = model.JobStatusRunning
		job.Stage = "clone"
		job.Progress = 11
		job.StartedAt = &started
		require.NoError(t, repo.Update(ctx, job))

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
		assert.Equal(t, "clone", got.Stage)
		assert.Equal(t, 11, got.Progress)
		require.NotNil(t, got.StartedAt)
		assert.WithinDuration(t, started, *got.StartedAt, time.Second)
	})
}

func TestJobRepo_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrJobNotFound)

		missing := testutil.NewJob(uuid.NewString()).Build()
		assert.ErrorIs(t, repo.Update(ctx, missing), ErrJobNotFound)
	})
}

func TestJobRepo_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		createTestJob(t, repo, model.JobStatusQueued)
		createTestJob(t, repo, model.JobStatusCompleted)
		createTestJob(t, repo, model.JobStatusCompleted)

		all, err := repo.List(ctx, model.JobListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		completed, err := repo.List(ctx, model.JobListOptions{Status: model.JobStatusCompleted})
		require.NoError(t, err)
		assert.Len(t, completed, 2)
		for _, j := range completed {
			assert.Equal(t, model.JobStatusCompleted, j.Status)
		}

		limited, err := repo.List(ctx, model.JobListOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
