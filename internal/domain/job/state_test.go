package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hackeval/repograder/internal/errors"
	"github.com/hackeval/repograder/internal/domain/model"
)

func newTestState(totalStages int) *State {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return New(Options{
		Job: model.AnalysisJob{
			ID:      "job-1",
			RepoURL: "https://github.com/acme/demo",
		},
		TotalStages: totalStages,
		Clock:       func() time.Time { return fixed },
	})
}

func TestState_TransitionToRunning(t *testing.T) {
	t.Run("succeeds from queued", func(t *testing.T) {
		s := newTestState(3)
		require.NoError(t, s.TransitionToRunning())

		snap := s.Snapshot()
		assert.Equal(t, model.JobStatusRunning, snap.Status)
		require.NotNil(t, snap.StartedAt)
	})

	t.Run("fails when already running", func(t *testing.T) {
		s := newTestState(3)
		require.NoError(t, s.TransitionToRunning())

		err := s.TransitionToRunning()
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("fails after terminal state", func(t *testing.T) {
		s := newTestState(3)
		s.Fail("boom")

		err := s.TransitionToRunning()
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})
}

func TestState_AdvanceStage(t *testing.T) {
	t.Run("rejects advance while queued", func(t *testing.T) {
		s := newTestState(3)
		err := s.AdvanceStage(model.StageClone, 11)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("progress is monotonically non-decreasing", func(t *testing.T) {
		s := newTestState(3)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.AdvanceStage(model.StageClone, 33))

		err := s.AdvanceStage(model.StageStackDetection, 20)
		require.Error(t, err)
		assert.True(t, apperrors.IsRegression(err))

		// Equal percentage is allowed.
		require.NoError(t, s.AdvanceStage(model.StageStackDetection, 33))
		assert.Equal(t, 33, s.Snapshot().Progress)
	})

	t.Run("caps progress at 100", func(t *testing.T) {
		s := newTestState(1)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.AdvanceStage(model.StageClone, 150))
		assert.Equal(t, 100, s.Snapshot().Progress)
	})
}

func TestState_Complete(t *testing.T) {
	t.Run("requires all stages recorded", func(t *testing.T) {
		s := newTestState(2)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.AdvanceStage(model.StageClone, 50))

		err := s.Complete()
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("forces progress to exactly 100", func(t *testing.T) {
		s := newTestState(2)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.AdvanceStage(model.StageClone, 50))
		require.NoError(t, s.AdvanceStage(model.StageStackDetection, 99))
		require.NoError(t, s.Complete())

		snap := s.Snapshot()
		assert.Equal(t, model.JobStatusCompleted, snap.Status)
		assert.Equal(t, 100, snap.Progress)
		assert.Equal(t, "completed", snap.Stage)
		require.NotNil(t, snap.CompletedAt)
	})

	t.Run("fails from queued", func(t *testing.T) {
		s := newTestState(0)
		err := s.Complete()
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})
}

func TestState_Fail(t *testing.T) {
	t.Run("valid from queued", func(t *testing.T) {
		s := newTestState(3)
		s.Fail("clone failed")

		snap := s.Snapshot()
		assert.Equal(t, model.JobStatusFailed, snap.Status)
		assert.Equal(t, "clone failed", snap.ErrorDetail)
	})

	t.Run("freezes progress at last computed percentage", func(t *testing.T) {
		s := newTestState(3)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.AdvanceStage(model.StageClone, 33))
		s.Fail("analyzer exploded")

		assert.Equal(t, 33, s.Snapshot().Progress)
	})

	t.Run("first failure wins", func(t *testing.T) {
		s := newTestState(3)
		require.NoError(t, s.TransitionToRunning())
		s.Fail("first reason")
		s.Fail("second reason")

		assert.Equal(t, "first reason", s.Snapshot().ErrorDetail)
	})

	t.Run("no-op after completion", func(t *testing.T) {
		s := newTestState(0)
		require.NoError(t, s.TransitionToRunning())
		require.NoError(t, s.Complete())
		s.Fail("too late")

		assert.Equal(t, model.JobStatusCompleted, s.Snapshot().Status)
		assert.Empty(t, s.Snapshot().ErrorDetail)
	})
}

func TestState_ConcurrentReads(t *testing.T) {
	// A single writer advances stages while many readers poll snapshots.
	// Every observed snapshot must be internally consistent and progress
	// must never move backwards for any reader.
	s := newTestState(10)
	require.NoError(t, s.TransitionToRunning())

	stages := []string{
		model.StageClone, model.StageStackDetection, model.StageStructureAnalysis,
		model.StageMaturityCheck, model.StageCommitForensics, model.StageQualityCheck,
		model.StageSecurityScan, model.StageForensicAnalysis, model.StageAIJudge, "final",
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				assert.GreaterOrEqual(t, snap.Progress, last)
				last = snap.Progress
				if snap.Status == model.JobStatusRunning {
					assert.LessOrEqual(t, snap.Progress, 100)
				}
			}
		}()
	}

	for i, stage := range stages {
		percent := (i + 1) * 10
		require.NoError(t, s.AdvanceStage(stage, percent))
	}
	require.NoError(t, s.Complete())
	close(stop)
	wg.Wait()

	assert.Equal(t, 100, s.Snapshot().Progress)
}
