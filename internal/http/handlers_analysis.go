// Package httpx provides the JSON API for the repograder analysis system.
package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/hackeval/repograder/internal/domain/model"
)

var errInvalidStatus = errors.New("unknown job status filter")

// AnalysisService is the scheduler surface the API handlers depend on.
type AnalysisService interface {
	Submit(ctx context.Context, req model.SubmitRequest) (string, error)
	Status(ctx context.Context, jobID string) (model.JobStatusResponse, error)
	Report(ctx context.Context, jobID string) (*model.Report, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.AnalysisJob, error)
}

// AnalysisHandlers provides HTTP handlers for analysis job operations.
type AnalysisHandlers struct {
	Svc AnalysisService
}

// submitResponse is the body returned after a successful admission.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// Submit handles HTTP requests to admit a repository for analysis.
func (h *AnalysisHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	jobID, err := h.Svc.Submit(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

// Status handles HTTP requests for a job status snapshot.
func (h *AnalysisHandlers) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// Report handles HTTP requests for a completed job's report.
func (h *AnalysisHandlers) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.Svc.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// Leaderboard handles HTTP requests for the ranked report listing.
func (h *AnalysisHandlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)

	entries, err := h.Svc.Leaderboard(r.Context(), limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	WriteJSON(w, http.StatusOK, entries)
}

// List handles HTTP requests for the persisted job history.
func (h *AnalysisHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := model.JobListOptions{
		Status: model.JobStatus(r.URL.Query().Get("status")),
		Limit:  parseIntQuery(r, "limit", 0),
		Offset: parseIntQuery(r, "offset", 0),
	}
	if opts.Status != "" && !opts.Status.Valid() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_status",
			Err:     errInvalidStatus,
		})
		return
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.AnalysisJob{}
	}

	WriteJSON(w, http.StatusOK, jobs)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
