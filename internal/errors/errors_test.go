package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NotFound("job abc not found")
		assert.Equal(t, "job abc not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, ErrCodeStorage, "persist report")
		assert.Equal(t, "persist report: connection refused", err.Error())
	})
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(cause, ErrCodeInternal, "load leaderboard")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("missing"), ErrCodeNotFound, "missing"},
		{"NotFoundf", NotFoundf("job %s not found", "j1"), ErrCodeNotFound, "job j1 not found"},
		{"Conflict", Conflict("already running"), ErrCodeConflict, "already running"},
		{"Conflictf", Conflictf("analysis already %s", "queued"), ErrCodeConflict, "analysis already queued"},
		{"Validation", Validation("repo_url is required"), ErrCodeValidation, "repo_url is required"},
		{"Validationf", Validationf("bad field %s", "team_name"), ErrCodeValidation, "bad field team_name"},
		{"NotReady", NotReady("analysis is still running"), ErrCodeNotReady, "analysis is still running"},
		{"InvalidTransition", InvalidTransition("cannot start a terminal job"), ErrCodeInvalidTransition, "cannot start a terminal job"},
		{"InvalidTransitionf", InvalidTransitionf("cannot advance from %s", "failed"), ErrCodeInvalidTransition, "cannot advance from failed"},
		{"Regressionf", Regressionf("progress %d below current %d", 10, 40), ErrCodeRegression, "progress 10 below current 40"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
		{"Internalf", Internalf("boom %d", 2), ErrCodeInternal, "boom 2"},
		{"Storage", Storage("report computed but not persisted"), ErrCodeStorage, "report computed but not persisted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.Nil(t, tt.err.Cause)
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeStorage, "persist"))
		assert.Nil(t, Wrapf(nil, ErrCodeStorage, "persist %s", "report"))
	})

	t.Run("preserves code and cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrapf(cause, ErrCodeStorage, "persist report for job %s", "j1")

		require.NotNil(t, err)
		assert.Equal(t, ErrCodeStorage, err.Code)
		assert.Equal(t, "persist report for job j1", err.Message)
		assert.True(t, errors.Is(err, cause))
	})
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name  string
		check func(error) bool
		err   error
	}{
		{"IsNotFound", IsNotFound, NotFound("x")},
		{"IsConflict", IsConflict, Conflict("x")},
		{"IsValidation", IsValidation, Validation("x")},
		{"IsNotReady", IsNotReady, NotReady("x")},
		{"IsInvalidTransition", IsInvalidTransition, InvalidTransition("x")},
		{"IsRegression", IsRegression, Regressionf("regressed")},
		{"IsInternal", IsInternal, Internal("x")},
		{"IsTimeout", IsTimeout, &AppError{Code: ErrCodeTimeout, Message: "x"}},
		{"IsStorage", IsStorage, Storage("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err), "should match its own code")
			assert.False(t, tt.check(errors.New("plain")), "should not match a plain error")
			assert.False(t, tt.check(nil), "should not match nil")
		})
	}
}

func TestCodePredicatesThroughWrapping(t *testing.T) {
	base := Conflict("analysis already running for this repository")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"app error", NotReady("x"), ErrCodeNotReady},
		{"wrapped app error", fmt.Errorf("outer: %w", Storage("x")), ErrCodeStorage},
		{"plain error", errors.New("plain"), ErrorCode("")},
		{"nil", nil, ErrorCode("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}
