package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// Remote job states. A job starts in waiting and resolves to exactly one
// of the terminal states.
const (
	JobStateWaiting = "waiting"
	JobStateSuccess = "success"
	JobStateFail    = "fail"
)

// successCode is the envelope code the API uses for accepted requests.
const successCode = 200

// DefaultPollInterval is the sleep between status checks when the config
// leaves it unset.
const DefaultPollInterval = 3 * time.Second

// Common client construction errors.
var (
	ErrEmptyAPIKey  = errors.New("api key cannot be empty")
	ErrEmptyBaseURL = errors.New("base url cannot be empty")
)

// Config holds the client's connection settings. Credentials are passed
// explicitly here and nowhere else; there is no module-level key state.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration

	// HTTPClient overrides the transport, primarily for tests.
	// When nil a default client with a request timeout is used.
	HTTPClient *http.Client
}

// Client speaks the create-job/poll-until-done protocol: submit a job,
// then poll its status until it reaches a terminal state. The client
// never retries a failed poll; retry policy belongs to the caller.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// JobStatus is one observation of a remote job. ResultURLs is only
// meaningful in the success state, FailMsg only in the fail state.
type JobStatus struct {
	State      string
	ResultURLs []string
	FailMsg    string
}

// NewClient creates a Client from the given config.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pollInterval: pollInterval,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Wire envelopes for the create and poll endpoints.

type createJobRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}

type createJobResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID   string `json:"taskId"`
		RecordID string `json:"recordId"`
	} `json:"data"`
}

type pollJobResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

type jobResult struct {
	ResultURLs []string `json:"resultUrls"`
}

// CreateJob submits a generation job and returns its opaque identifier.
// It fails with a transport error when the HTTP exchange fails, and with
// a protocol error when the envelope code is not the success code or no
// job identifier is present.
func (c *Client) CreateJob(ctx context.Context, model string, input map[string]any) (string, error) {
	body, err := json.Marshal(createJobRequest{Model: model, Input: input})
	if err != nil {
		return "", fmt.Errorf("failed to encode create request: %w", err)
	}

	var resp createJobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/jobs/createTask", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}

	if resp.Code != successCode {
		return "", fmt.Errorf("%w: create returned code %d: %s", domain.ErrProtocol, resp.Code, resp.Msg)
	}

	jobID := resp.Data.TaskID
	if jobID == "" {
		jobID = resp.Data.RecordID
	}
	if jobID == "" {
		return "", fmt.Errorf("%w: create response carries no job id", domain.ErrProtocol)
	}

	c.logger.Debug("remote job created", "job_id", jobID, "model", model)
	return jobID, nil
}

// PollJob performs a single status check. Transport errors propagate to
// the caller untouched; no retry is baked into this layer.
func (c *Client) PollJob(ctx context.Context, jobID string) (*JobStatus, error) {
	path := "/api/v1/jobs/recordInfo?taskId=" + jobID

	var resp pollJobResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Code != successCode {
		return nil, fmt.Errorf("%w: poll returned code %d: %s", domain.ErrProtocol, resp.Code, resp.Msg)
	}

	status := &JobStatus{
		State:   resp.Data.State,
		FailMsg: resp.Data.FailMsg,
	}

	if status.State == JobStateSuccess && resp.Data.ResultJSON != "" {
		var result jobResult
		if err := json.Unmarshal([]byte(resp.Data.ResultJSON), &result); err != nil {
			return nil, fmt.Errorf("%w: malformed result payload: %v", domain.ErrProtocol, err)
		}
		status.ResultURLs = result.ResultURLs
	}

	return status, nil
}

// WaitForTerminal polls the job until it leaves the waiting state. The
// sleep between polls races against ctx so cancellation latency is
// bounded by the race, not by the timer. On success it returns the
// result URLs, failing with a protocol error when the list is empty; on
// fail it returns the provider-supplied detail or a generic fallback.
func (c *Client) WaitForTerminal(ctx context.Context, jobID string) ([]string, error) {
	for {
		status, err := c.PollJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case JobStateSuccess:
			if len(status.ResultURLs) == 0 {
				return nil, fmt.Errorf("%w: job %s succeeded with no result urls", domain.ErrProtocol, jobID)
			}
			return status.ResultURLs, nil

		case JobStateFail:
			detail := status.FailMsg
			if detail == "" {
				detail = "generation failed"
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrProvider, detail)

		case JobStateWaiting:
			timer := time.NewTimer(c.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}

		default:
			return nil, fmt.Errorf("%w: unknown job state %q", domain.ErrProtocol, status.State)
		}
	}
}

// doJSON issues one request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", domain.ErrTransport, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrProtocol, err)
	}
	return nil
}
