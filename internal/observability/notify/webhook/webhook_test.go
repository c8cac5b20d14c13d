package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeval/repograder/internal/observability/notify"
)

func TestNewClient(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
	})

	t.Run("accepts a trimmed url", func(t *testing.T) {
		c, err := NewClient(Config{URL: "  https://hooks.example.com/x  "})
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/x", c.url)
	})
}

func TestSendJobFailure(t *testing.T) {
	t.Run("posts the failure document", func(t *testing.T) {
		var got failureDocument
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c, err := NewClient(Config{URL: srv.URL})
		require.NoError(t, err)

		err = c.SendJobFailure(context.Background(), notify.JobFailurePayload{
			JobID:   "job-1",
			RepoURL: "https://github.com/acme/demo",
			Stage:   "clone",
			Error:   "clone failed",
		})
		require.NoError(t, err)

		assert.Equal(t, "analysis_job_failed", got.Event)
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "clone", got.Stage)
		assert.Equal(t, notify.SeverityCritical, got.Severity)
		assert.False(t, got.OccurredAt.IsZero())
	})

	t.Run("retries on server error", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c, err := NewClient(Config{URL: srv.URL, RetryLimit: 1})
		require.NoError(t, err)

		err = c.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-2", Error: "boom"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("returns the last error when retries exhaust", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		c, err := NewClient(Config{URL: srv.URL, RetryLimit: 1, Timeout: time.Second})
		require.NoError(t, err)

		err = c.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-3", Error: "boom"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
