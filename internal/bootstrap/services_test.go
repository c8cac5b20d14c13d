package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeval/repograder/config"
)

func TestValidateServiceConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		require.Error(t, ValidateServiceConfig(nil))
	})

	t.Run("default services", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "http,worker"}
		require.NoError(t, ValidateServiceConfig(cfg))
	})

	t.Run("unknown service", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "http,ftp"}
		require.Error(t, ValidateServiceConfig(cfg))
	})
}

func TestGetEnabledServices(t *testing.T) {
	t.Run("nil config yields nothing", func(t *testing.T) {
		assert.Empty(t, GetEnabledServices(nil))
	})

	t.Run("both services", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "http,worker"}
		services := GetEnabledServices(cfg)
		assert.ElementsMatch(t, []string{"http", "worker"}, services)
	})

	t.Run("worker only", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "worker"}
		assert.Equal(t, []string{"worker"}, GetEnabledServices(cfg))
	})
}

func TestBuildFailureNotifier(t *testing.T) {
	t.Run("disabled without webhook url", func(t *testing.T) {
		cfg := config.ObservabilityNotificationsConfig{Enabled: true}
		cfg.Sanitize()

		notifier := buildFailureNotifier(nil, cfg)
		require.NotNil(t, notifier)
		assert.False(t, notifier.Enabled())
	})

	t.Run("registers the webhook sink", func(t *testing.T) {
		cfg := config.ObservabilityNotificationsConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.example.com/failures",
			Timeout:    5 * time.Second,
			RetryLimit: 2,
		}
		cfg.Sanitize()

		notifier := buildFailureNotifier(nil, cfg)
		require.NotNil(t, notifier)
		assert.True(t, notifier.Enabled())
	})
}

func TestBuildObservability(t *testing.T) {
	t.Run("metrics disabled leaves sink nil", func(t *testing.T) {
		var cfg config.ObservabilityConfig
		cfg.Sanitize()

		obs := buildObservability(nil, cfg)
		assert.Nil(t, obs.MetricsSink)
		require.NotNil(t, obs.FailureNotifier)
		assert.False(t, obs.FailureNotifier.Enabled())
	})

	t.Run("metrics enabled builds a sink", func(t *testing.T) {
		cfg := config.ObservabilityConfig{
			Metrics: config.ObservabilityMetricsConfig{
				Enabled:       true,
				StatsdAddress: "127.0.0.1:8125",
			},
		}
		cfg.Sanitize()

		obs := buildObservability(nil, cfg)
		assert.NotNil(t, obs.MetricsSink)
	})
}

func TestNewServicesRequiresDeps(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestRunServicesWithShutdownValidation(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		require.Error(t, RunServicesWithShutdown(nil))
	})

	t.Run("missing app config", func(t *testing.T) {
		require.Error(t, RunServicesWithShutdown(&ServiceOrchestrationConfig{}))
	})

	t.Run("invalid services", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "bogus"}
		err := RunServicesWithShutdown(&ServiceOrchestrationConfig{Config: cfg})
		require.Error(t, err)
	})
}
