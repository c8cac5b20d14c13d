package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the analysis pipeline workers.
	ServiceModeWorker ServiceMode = "worker"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains job admission and worker pool configuration.
type SchedulerConfig struct {
	// Concurrency is the number of concurrent pipeline workers.
	Concurrency int `env:"SCHEDULER_CONCURRENCY" envDefault:"2"`

	// QueueSize bounds the number of admitted jobs waiting for a worker.
	QueueSize int `env:"SCHEDULER_QUEUE_SIZE" envDefault:"64"`

	// LeaderboardLimit is the default number of leaderboard rows returned.
	LeaderboardLimit int `env:"SCHEDULER_LEADERBOARD_LIMIT" envDefault:"20"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.QueueSize < 1 {
		s.QueueSize = 1
	}
	if s.LeaderboardLimit < 1 {
		s.LeaderboardLimit = 20
	}
}

// PipelineConfig contains per-stage execution configuration.
type PipelineConfig struct {
	// StageTimeout bounds every analysis stage except clone.
	StageTimeout time.Duration `env:"PIPELINE_STAGE_TIMEOUT" envDefault:"120s"`

	// CloneTimeout bounds the repository clone stage. Clones of large
	// repositories dominate pipeline latency, so this is separate.
	CloneTimeout time.Duration `env:"PIPELINE_CLONE_TIMEOUT" envDefault:"300s"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.StageTimeout <= 0 {
		p.StageTimeout = 120 * time.Second
	}
	if p.CloneTimeout <= 0 {
		p.CloneTimeout = 300 * time.Second
	}
}

// ScoringConfig contains score aggregation configuration.
type ScoringConfig struct {
	// BurstWindowFraction is the trailing fraction of the commit timeline
	// examined for burst activity.
	BurstWindowFraction float64 `env:"SCORING_BURST_WINDOW_FRACTION" envDefault:"0.20"`

	// BurstCommitFraction is the share of total commits inside the trailing
	// window above which the burst warning fires.
	BurstCommitFraction float64 `env:"SCORING_BURST_COMMIT_FRACTION" envDefault:"0.50"`

	// LastMinuteWindow is the trailing window used to count last-minute commits.
	LastMinuteWindow time.Duration `env:"SCORING_LAST_MINUTE_WINDOW" envDefault:"30m"`

	// MaxFeedbackItems caps the strengths and improvements lists.
	MaxFeedbackItems int `env:"SCORING_MAX_FEEDBACK_ITEMS" envDefault:"5"`
}

// Sanitize applies guardrails to scoring configuration values.
func (s *ScoringConfig) Sanitize() {
	if s.BurstWindowFraction <= 0 || s.BurstWindowFraction > 1 {
		s.BurstWindowFraction = 0.20
	}
	if s.BurstCommitFraction <= 0 || s.BurstCommitFraction > 1 {
		s.BurstCommitFraction = 0.50
	}
	if s.LastMinuteWindow <= 0 {
		s.LastMinuteWindow = 30 * time.Minute
	}
	if s.MaxFeedbackItems < 1 {
		s.MaxFeedbackItems = 5
	}
}

// AnalyzerConfig contains configuration for the external analyzer service.
type AnalyzerConfig struct {
	// BaseURL is the analyzer service root, e.g. http://analyzer:9000.
	BaseURL string `env:"ANALYZER_BASE_URL" envDefault:"http://localhost:9000"`

	// Timeout bounds a single analyzer HTTP request.
	Timeout time.Duration `env:"ANALYZER_TIMEOUT" envDefault:"2m"`
}

// Sanitize applies guardrails to analyzer configuration values.
func (a *AnalyzerConfig) Sanitize() {
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	if a.Timeout <= 0 {
		a.Timeout = 2 * time.Minute
	}
}

// GitConfig contains configuration for the git repository fetcher.
type GitConfig struct {
	// WorkDir is where repository working copies are created.
	// Empty means the system temp directory.
	WorkDir string `env:"GIT_WORK_DIR" envDefault:""`

	// GitPath is the git binary to invoke.
	GitPath string `env:"GIT_PATH" envDefault:"git"`
}
