package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	t.Run("single service", func(t *testing.T) {
		services, err := ParseServices("http")
		require.NoError(t, err)
		assert.True(t, services[ServiceModeHTTP])
		assert.False(t, services[ServiceModeWorker])
	})

	t.Run("multiple services with spaces", func(t *testing.T) {
		services, err := ParseServices("http, worker")
		require.NoError(t, err)
		assert.True(t, services[ServiceModeHTTP])
		assert.True(t, services[ServiceModeWorker])
	})

	t.Run("invalid service name", func(t *testing.T) {
		_, err := ParseServices("http,bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bogus")
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ParseServices("")
		require.Error(t, err)
	})
}

func TestSchedulerConfigSanitize(t *testing.T) {
	cfg := SchedulerConfig{Concurrency: 0, QueueSize: -1, LeaderboardLimit: 0}
	cfg.Sanitize()
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 1, cfg.QueueSize)
	assert.Equal(t, 20, cfg.LeaderboardLimit)
}

func TestPipelineConfigSanitize(t *testing.T) {
	cfg := PipelineConfig{}
	cfg.Sanitize()
	assert.Equal(t, 120*time.Second, cfg.StageTimeout)
	assert.Equal(t, 300*time.Second, cfg.CloneTimeout)

	custom := PipelineConfig{StageTimeout: time.Minute, CloneTimeout: 10 * time.Minute}
	custom.Sanitize()
	assert.Equal(t, time.Minute, custom.StageTimeout)
	assert.Equal(t, 10*time.Minute, custom.CloneTimeout)
}

func TestScoringConfigSanitize(t *testing.T) {
	cfg := ScoringConfig{BurstWindowFraction: 1.5, BurstCommitFraction: -0.3}
	cfg.Sanitize()
	assert.Equal(t, 0.20, cfg.BurstWindowFraction)
	assert.Equal(t, 0.50, cfg.BurstCommitFraction)
	assert.Equal(t, 30*time.Minute, cfg.LastMinuteWindow)
	assert.Equal(t, 5, cfg.MaxFeedbackItems)
}

func TestObservabilityNotificationsSanitize(t *testing.T) {
	t.Run("disabled without webhook url", func(t *testing.T) {
		cfg := ObservabilityNotificationsConfig{Enabled: true}
		cfg.Sanitize()
		assert.False(t, cfg.IsEnabled())
	})

	t.Run("enabled with webhook url", func(t *testing.T) {
		cfg := ObservabilityNotificationsConfig{
			Enabled:    true,
			WebhookURL: " https://hooks.example.com/failures ",
		}
		cfg.Sanitize()
		assert.True(t, cfg.IsEnabled())
		assert.Equal(t, "https://hooks.example.com/failures", cfg.WebhookURL)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})
}

func TestAppConfigSanitize(t *testing.T) {
	cfg := AppConfig{Services: "http,worker"}
	cfg.Sanitize()

	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsWorkerEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Analyzer.Timeout)
}
