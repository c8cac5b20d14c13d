// Package analyzerhttp implements the analyzer port against the external
// analyzer service's JSON API. Each stage maps to one POST; the response
// body is passed through opaque for the normalizer to interpret.
package analyzerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hackeval/repograder/internal/core"
)

const maxResponseBodyBytes = 1 << 20 // analyzer payloads are small JSON documents

// Options configures the analyzer client.
type Options struct {
	// BaseURL is the analyzer service root, e.g. http://analyzer:9000.
	BaseURL string
	// Timeout bounds a single request when no Client is supplied.
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the analyzer service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// New validates options and constructs an analyzer client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("analyzer base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("analyzer base url: %w", err)
	}

	hc := opts.Client
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, client: hc}, nil
}

type analyzeRequestBody struct {
	RepoURL  string `json:"repo_url"`
	RepoPath string `json:"repo_path,omitempty"`
}

// Analyze posts the stage request and returns the raw response document.
func (c *Client) Analyze(ctx context.Context, req core.AnalyzeRequest) (json.RawMessage, error) {
	body, err := json.Marshal(analyzeRequestBody{
		RepoURL:  req.RepoURL,
		RepoPath: req.RepoPath,
	})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	endpoint := c.baseURL + "/analyze/" + url.PathEscape(req.Stage)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.Stage, err)
	}

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("read analyze response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyze %s: unexpected status %d: %s",
			req.Stage, resp.StatusCode, firstLine(payload))
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("analyze %s: response is not valid JSON", req.Stage)
	}

	return json.RawMessage(payload), nil
}

var _ core.Analyzer = (*Client)(nil)

func firstLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}
