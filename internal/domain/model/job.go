// Package model defines the core data types and structures used throughout the repograder analysis system.
package model

import (
	"errors"
	"strings"
	"time"
)

// JobStatus represents the current status of an analysis job.
type JobStatus string

const (
	// JobStatusQueued indicates a job is admitted and waiting for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a job is currently executing the pipeline.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job finished and produced a report.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job terminated without producing a report.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AnalysisJob represents one repository evaluation run.
// The job is owned by the state machine in internal/domain/job; everything
// outside observes immutable snapshots.
type AnalysisJob struct {
	ID          string     `json:"id"                     db:"id"`
	RepoURL     string     `json:"repo_url"               db:"repo_url"`
	TeamName    string     `json:"team_name,omitempty"    db:"team_name"`
	Stage       string     `json:"stage"                  db:"stage"`
	Progress    int        `json:"progress"               db:"progress"`
	Status      JobStatus  `json:"status"                 db:"status"`
	ErrorDetail string     `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt   time.Time  `json:"created_at"             db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// SubmitRequest represents a request to evaluate a repository.
type SubmitRequest struct {
	RepoURL  string `json:"repo_url"`
	TeamName string `json:"team_name,omitempty"`
}

// Validate validates the SubmitRequest fields.
func (r *SubmitRequest) Validate() error {
	url := strings.TrimSpace(r.RepoURL)
	if url == "" {
		return errors.New("repo_url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New("repo_url must be an http(s) URL")
	}
	return nil
}

// JobListOptions holds the filters for listing persisted jobs.
type JobListOptions struct {
	Status JobStatus `json:"status,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// JobStatusResponse is the status snapshot exposed to callers.
// Stage and Progress mirror the internal state machine exactly.
type JobStatusResponse struct {
	JobID       string    `json:"job_id"`
	Stage       string    `json:"stage"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}
