// Package webhook delivers job failure notifications to a generic JSON
// webhook endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hackeval/repograder/internal/observability/notify"
)

// Config captures the webhook behaviour we need.
type Config struct {
	URL        string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client posts failure payloads as JSON documents.
type Client struct {
	url        string
	retryLimit int
	client     *http.Client
}

// NewClient builds a webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:        url,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// failureDocument is the wire shape posted to the webhook.
type failureDocument struct {
	Event      string            `json:"event"`
	JobID      string            `json:"job_id"`
	RepoURL    string            `json:"repo_url"`
	TeamName   string            `json:"team_name,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Error      string            `json:"error"`
	ErrorClass string            `json:"error_class,omitempty"`
	Severity   string            `json:"severity"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SendJobFailure posts the failure payload, retrying with linear backoff.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	occurred := payload.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	doc := failureDocument{
		Event:      "analysis_job_failed",
		JobID:      payload.JobID,
		RepoURL:    payload.RepoURL,
		TeamName:   payload.TeamName,
		Stage:      payload.Stage,
		Error:      payload.Error,
		ErrorClass: payload.ErrorClass,
		Severity:   fallbackString(payload.Severity, notify.SeverityCritical),
		OccurredAt: occurred.UTC(),
		Metadata:   payload.Metadata,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	return drainSuccess(resp)
}

func drainSuccess(resp *http.Response) error {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("drain webhook response body: %w", err),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("drain webhook response body: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("read webhook error response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("read webhook error response: %w", readErr)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return fmt.Errorf("failure webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
