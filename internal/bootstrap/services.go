package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hackeval/repograder/config"
	"github.com/hackeval/repograder/internal/adapters/analyzerhttp"
	"github.com/hackeval/repograder/internal/adapters/gitfetch"
	"github.com/hackeval/repograder/internal/core"
	"github.com/hackeval/repograder/internal/data"
	"github.com/hackeval/repograder/internal/observability/notify/webhook"
	"github.com/hackeval/repograder/internal/observability/statsd"
	"github.com/hackeval/repograder/internal/pipeline"
	"github.com/hackeval/repograder/internal/scoring"
	"github.com/hackeval/repograder/internal/service"
	"github.com/hackeval/repograder/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Scheduler     *service.SchedulerService
	Runner        *pipeline.Runner
	Jobs          core.JobRepository
	Reports       core.ReportRepository
	ReportCache   *core.ReportCacheService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB         *sql.DB
	Redis      redis.UniversalClient
	JobRepo    *data.JobRepo
	ReportRepo *data.ReportRepo
	CacheRepo  *data.RedisCacheRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "repograder",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.IsEnabled() {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 1)

	client, err := webhook.NewClient(webhook.Config{
		URL:        cfg.WebhookURL,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		baseLogger.Error("failed to initialise webhook notifier", "error", err)
	} else {
		sinks = append(sinks, failurenotifier.SinkRegistration{
			Name: "webhook",
			Sink: client,
		})
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		DB:         db,
		Redis:      redisClient,
		JobRepo:    data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		ReportRepo: data.NewReportRepo(db, data.RepoConfig{Logger: logger}),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

func newReportCacheService(repos *serviceRepositories, cfg config.CacheConfig) *core.ReportCacheService {
	if repos.CacheRepo == nil {
		return nil
	}
	cacheCfg := core.DefaultReportCacheConfig()
	if cfg.ReportTTL > 0 {
		cacheCfg.TTL = cfg.ReportTTL
	}
	return core.NewReportCacheService(repos.CacheRepo, cacheCfg)
}

type pipelineRunnerDeps struct {
	Repos         *serviceRepositories
	Config        *config.AppConfig
	Observability ObservabilityContainer
	ReportCache   *core.ReportCacheService
	Logger        *slog.Logger
}

func newPipelineRunner(deps pipelineRunnerDeps) (*pipeline.Runner, error) {
	cfg := deps.Config
	logger := deps.Logger

	fetcher := gitfetch.New(gitfetch.Options{
		BaseDir: cfg.Git.WorkDir,
		GitPath: cfg.Git.GitPath,
		Logger:  logger,
	})

	analyzer, err := analyzerhttp.New(analyzerhttp.Options{
		BaseURL: cfg.Analyzer.BaseURL,
		Timeout: cfg.Analyzer.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build analyzer client: %w", err)
	}

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.BurstWindowFraction = cfg.Scoring.BurstWindowFraction
	scoringCfg.BurstCommitFraction = cfg.Scoring.BurstCommitFraction
	scoringCfg.LastMinuteWindow = cfg.Scoring.LastMinuteWindow
	scoringCfg.MaxFeedbackItems = cfg.Scoring.MaxFeedbackItems

	var metricsSink statsd.Sink
	if deps.Observability.MetricsSink != nil {
		metricsSink = deps.Observability.MetricsSink
	}

	return pipeline.NewRunner(pipeline.RunnerOptions{
		Fetcher:         fetcher,
		Analyzer:        analyzer,
		Jobs:            deps.Repos.JobRepo,
		Reports:         deps.Repos.ReportRepo,
		ReportCache:     deps.ReportCache,
		FailureNotifier: deps.Observability.FailureNotifier,
		Metrics:         metricsSink,
		Logger:          logger,
		Stages: pipeline.Stages(pipeline.Timeouts{
			Default: cfg.Pipeline.StageTimeout,
			Clone:   cfg.Pipeline.CloneTimeout,
		}),
		Scoring: scoringCfg,
	})
}

// NewServices wires repositories, the pipeline runner, and the scheduler.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
		appCfg.Sanitize()
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)
	reportCache := newReportCacheService(repos, appCfg.Cache)

	runner, err := newPipelineRunner(pipelineRunnerDeps{
		Repos:         repos,
		Config:        appCfg,
		Observability: observability,
		ReportCache:   reportCache,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	schedulerCfg := service.SchedulerConfig{
		Concurrency:      appCfg.Scheduler.Concurrency,
		QueueSize:        appCfg.Scheduler.QueueSize,
		LeaderboardLimit: appCfg.Scheduler.LeaderboardLimit,
	}
	scheduler, err := service.NewSchedulerService(service.SchedulerServiceOptions{
		Runner:      runner,
		Jobs:        repos.JobRepo,
		Reports:     repos.ReportRepo,
		ReportCache: reportCache,
		Config:      &schedulerCfg,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build scheduler: %w", err)
	}

	return ServiceContainer{
		Scheduler:     scheduler,
		Runner:        runner,
		Jobs:          repos.JobRepo,
		Reports:       repos.ReportRepo,
		ReportCache:   reportCache,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var httpServer *http.Server
	if enabledServices[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
	}

	group, groupCtx := errgroup.WithContext(serviceCtx)
	if enabledServices[config.ServiceModeWorker] {
		group.Go(func() error {
			logger.InfoContext(groupCtx, "background service started", "service", "worker")
			if runErr := cfg.Services.Scheduler.Run(groupCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("worker failed: %w", runErr)
			}
			return nil
		})
	}

	return waitForShutdown(shutdownConfig{
		ctx:        serviceCtx,
		cancel:     cancel,
		group:      group,
		groupCtx:   groupCtx,
		httpServer: httpServer,
		logger:     logger,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx        context.Context
	cancel     context.CancelFunc
	group      *errgroup.Group
	groupCtx   context.Context
	httpServer *http.Server
	logger     *slog.Logger
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case <-cfg.groupCtx.Done():
		err := cfg.group.Wait()
		if err != nil {
			cfg.logger.Error("service error", "error", err)
		}
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for the worker pool to drain.
	waitForWorkers(cfg.group, cfg.logger)
	return nil
}

// waitForWorkers waits for background services to finish with a timeout.
func waitForWorkers(group *errgroup.Group, logger *slog.Logger) {
	if group == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = group.Wait()
	}()

	select {
	case <-done:
		logger.Info("worker stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for worker to stop")
	}
}
