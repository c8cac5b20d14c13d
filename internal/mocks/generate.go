// Package mocks provides mock implementations for testing the repograder analysis system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, Update, GetByID, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/hackeval/repograder/internal/core JobRepository

// Generate mock for ReportRepository interface from internal/core package.
// This creates MockReportRepository with methods for all ReportRepository interface methods:
// Create, GetByJobID, Leaderboard
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=report_repository_mock.go github.com/hackeval/repograder/internal/core ReportRepository

// Generate mock for RepoFetcher interface from internal/core package.
// This creates MockRepoFetcher with methods for all RepoFetcher interface methods:
// Fetch
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=repo_fetcher_mock.go github.com/hackeval/repograder/internal/core RepoFetcher

// Generate mock for Analyzer interface from internal/core package.
// This creates MockAnalyzer with methods for all Analyzer interface methods:
// Analyze
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analyzer_mock.go github.com/hackeval/repograder/internal/core Analyzer

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Exists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/hackeval/repograder/internal/core CacheRepository
