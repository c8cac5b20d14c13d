package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hackeval/repograder/internal/domain/model"
	apperrors "github.com/hackeval/repograder/internal/errors"
	"github.com/hackeval/repograder/internal/mocks"
	"github.com/hackeval/repograder/internal/pipeline"
)

func TestSchedulerService_SubmitStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	reports := mocks.NewMockReportRepository(ctrl)
	fetcher := mocks.NewMockRepoFetcher(ctrl)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{
		Fetcher:  fetcher,
		Analyzer: analyzer,
		Jobs:     jobs,
		Reports:  reports,
	})
	require.NoError(t, err)

	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runner:  runner,
		Jobs:    jobs,
		Reports: reports,
	})
	require.NoError(t, err)

	// First insert fails; the retry after the slot is released succeeds.
	gomock.InOrder(
		jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
		jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err = svc.Submit(context.Background(), model.SubmitRequest{
		RepoURL: "https://github.com/acme/demo",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))

	// A failed insert must not leave the admission slot occupied.
	_, err = svc.Submit(context.Background(), model.SubmitRequest{
		RepoURL: "https://github.com/acme/demo",
	})
	require.NoError(t, err)
}

func TestSchedulerService_LeaderboardStorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	reports := mocks.NewMockReportRepository(ctrl)
	fetcher := mocks.NewMockRepoFetcher(ctrl)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{
		Fetcher:  fetcher,
		Analyzer: analyzer,
		Jobs:     jobs,
		Reports:  reports,
	})
	require.NoError(t, err)

	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runner:  runner,
		Jobs:    jobs,
		Reports: reports,
	})
	require.NoError(t, err)

	reports.EXPECT().Leaderboard(gomock.Any(), 20).Return(nil, errors.New("relation missing"))

	_, err = svc.Leaderboard(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
}
