// Package core defines the ports between the orchestration layer and its
// adapters (hexagonal architecture). Services depend on these interfaces,
// never on concrete implementations.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hackeval/repograder/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ReportCacheService caches rendered reports and the leaderboard in front of
// the report repository. Reports are immutable once written, so cached
// entries never need invalidation; the leaderboard entry is invalidated
// whenever a new report lands.
type ReportCacheService struct {
	cache CacheRepository
	ttl   time.Duration
}

// ReportCacheConfig holds configuration for report caching.
type ReportCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// DefaultReportCacheConfig returns a ReportCacheConfig with sensible defaults.
func DefaultReportCacheConfig() ReportCacheConfig {
	return ReportCacheConfig{
		TTL: 30 * time.Minute,
	}
}

// NewReportCacheService creates a new ReportCacheService.
func NewReportCacheService(cache CacheRepository, cfg ReportCacheConfig) *ReportCacheService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultReportCacheConfig().TTL
	}
	return &ReportCacheService{cache: cache, ttl: ttl}
}

// GetReport returns the cached report for a job, or nil when not cached.
func (s *ReportCacheService) GetReport(ctx context.Context, jobID string) (*model.Report, error) {
	raw, err := s.cache.Get(ctx, reportKey(jobID))
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var report model.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		// A corrupt entry is treated as a miss; the repository is the
		// source of truth.
		return nil, nil
	}
	return &report, nil
}

// PutReport caches a report and invalidates the leaderboard entry.
func (s *ReportCacheService) PutReport(ctx context.Context, report *model.Report) error {
	if report == nil || report.JobID == "" {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, reportKey(report.JobID), raw, s.ttl); err != nil {
		return err
	}
	_, err = s.cache.Delete(ctx, leaderboardKey)
	return err
}

// GetLeaderboard returns the cached leaderboard, or nil when not cached.
func (s *ReportCacheService) GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	raw, err := s.cache.Get(ctx, leaderboardKey)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// PutLeaderboard caches the current leaderboard.
func (s *ReportCacheService) PutLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, leaderboardKey, raw, s.ttl)
}

const leaderboardKey = "report:leaderboard"

func reportKey(jobID string) string {
	return "report:job:" + jobID
}
