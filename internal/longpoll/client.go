// Package longpoll provides a generic submit-then-poll HTTP client for
// asynchronous AI provider jobs. Every provider adapter in this codebase
// creates a remote task with Submit and drives it to completion with Poll;
// only the payload construction and result classification differ per
// provider.
package longpoll

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
)

// Static errors for long-poll operations.
var (
	// ErrSubmitFailed is returned when the create-job request is rejected.
	ErrSubmitFailed = errors.New("longpoll: submit failed")
	// ErrNoTaskID is returned when a successful submit response contains no
	// extractable task identifier. A 200 with no task ID is not success.
	ErrNoTaskID = errors.New("longpoll: submit response contains no task ID")
	// ErrTaskFailed is returned when the remote task reports failure.
	ErrTaskFailed = errors.New("longpoll: task failed")
	// ErrPollTimeout is returned when the task neither completes nor fails
	// within the configured number of attempts.
	ErrPollTimeout = errors.New("longpoll: polling timed out")
	// ErrTransientExhausted is returned after too many consecutive
	// transient errors while polling.
	ErrTransientExhausted = errors.New("longpoll: too many consecutive transient errors")
)

// State classifies a single poll response.
type State int

const (
	// StateRunning indicates the task is still in progress.
	StateRunning State = iota
	// StateDone indicates the task completed and a payload is available.
	StateDone
	// StateFailed indicates the task terminated with an error.
	StateFailed
	// StateTransient indicates a response that should be retried with a
	// longer backoff (e.g. "task not found" right after creation).
	StateTransient
)

// Outcome is the classified result of one poll attempt.
type Outcome struct {
	State State
	// Payload is the raw response body, set when State is StateDone.
	Payload json.RawMessage
	// Reason is the provider failure message, set when State is StateFailed.
	Reason string
}

// Classifier maps a raw poll response to an Outcome. It receives the HTTP
// status code and the full response body; providers are inconsistent between
// versions, so classifiers are expected to probe multiple response shapes.
type Classifier func(statusCode int, body []byte) Outcome

// PollOptions controls the polling loop.
type PollOptions struct {
	// Interval is the sleep between regular poll attempts.
	Interval time.Duration
	// MaxAttempts bounds the total number of poll attempts.
	MaxAttempts int
	// TransientBackoff is the (longer) sleep after a transient error.
	TransientBackoff time.Duration
	// MaxTransient bounds consecutive transient errors before giving up.
	MaxTransient int
}

// DefaultPollOptions returns sensible defaults for provider polling.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval:         5 * time.Second,
		MaxAttempts:      120,
		TransientBackoff: 15 * time.Second,
		MaxTransient:     5,
	}
}

// Client issues submit and poll requests against a provider API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(lc *Client) {
		lc.httpClient = c
	}
}

// WithLogger sets the logger used for poll diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(lc *Client) {
		lc.logger = l
	}
}

// NewClient creates a new long-poll client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// taskIDShape is one known location for the task identifier in a submit
// response. Shapes are tried in order; the first non-empty match wins.
type taskIDShape struct {
	name    string
	extract func(body []byte) string
}

// taskIDShapes covers the submit-response layouts seen across providers:
// PiAPI-style nested data objects, flat task_id fields, and bare id/job_id.
var taskIDShapes = []taskIDShape{
	{"data.task_id", func(body []byte) string {
		var r struct {
			Data struct {
				TaskID string `json:"task_id"`
			} `json:"data"`
		}
		_ = json.Unmarshal(body, &r)
		return r.Data.TaskID
	}},
	{"task_id", func(body []byte) string {
		var r struct {
			TaskID string `json:"task_id"`
		}
		_ = json.Unmarshal(body, &r)
		return r.TaskID
	}},
	{"id", func(body []byte) string {
		var r struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &r)
		return r.ID
	}},
	{"job_id", func(body []byte) string {
		var r struct {
			JobID string `json:"job_id"`
		}
		_ = json.Unmarshal(body, &r)
		return r.JobID
	}},
}

// Submit performs a single POST to the create-job endpoint and returns the
// task identifier extracted from the response.
func (c *Client) Submit(ctx context.Context, endpoint string, headers map[string]string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("longpoll: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("longpoll: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrSubmitFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmitFailed, resp.StatusCode, truncate(respBody, 512))
	}

	for _, shape := range taskIDShapes {
		if id := shape.extract(respBody); id != "" {
			c.logger.Debug("submit response matched shape",
				slog.String("shape", shape.name),
				slog.String("task_id", id),
			)
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoTaskID, truncate(respBody, 512))
}

// Poll repeatedly GETs the status endpoint until the classifier reports a
// terminal outcome, the attempt budget is exhausted, or too many consecutive
// transient errors occur. Network errors, 5xx responses, and 404s shortly
// after creation are treated as transient and retried with a longer backoff.
func (c *Client) Poll(ctx context.Context, endpoint string, headers map[string]string, classify Classifier, opts PollOptions) (json.RawMessage, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollOptions().Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollOptions().MaxAttempts
	}
	if opts.TransientBackoff <= 0 {
		opts.TransientBackoff = DefaultPollOptions().TransientBackoff
	}
	if opts.MaxTransient <= 0 {
		opts.MaxTransient = DefaultPollOptions().MaxTransient
	}

	transient := 0
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		delay := opts.Interval
		if transient > 0 {
			delay = opts.TransientBackoff
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("longpoll: poll cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		outcome, err := c.pollOnce(ctx, endpoint, headers, classify)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("longpoll: poll cancelled: %w", ctx.Err())
			}
			c.logger.Warn("poll attempt failed",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			outcome = Outcome{State: StateTransient}
		}

		switch outcome.State {
		case StateDone:
			return outcome.Payload, nil
		case StateFailed:
			return nil, fmt.Errorf("%w: %s", ErrTaskFailed, outcome.Reason)
		case StateTransient:
			transient++
			if transient >= opts.MaxTransient {
				return nil, fmt.Errorf("%w (%d in a row)", ErrTransientExhausted, transient)
			}
		default: // StateRunning
			transient = 0
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, opts.MaxAttempts)
}

// pollOnce performs a single status GET and classifies the response.
func (c *Client) pollOnce(ctx context.Context, endpoint string, headers map[string]string, classify Classifier) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("longpoll: create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("longpoll: poll request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("longpoll: read response: %w", err)
	}

	// 5xx and "not found shortly after creation" are transient; the
	// provider-specific classifier only sees responses worth classifying.
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusTooManyRequests {
		return Outcome{State: StateTransient}, nil
	}

	return classify(resp.StatusCode, body), nil
}

// truncate shortens a response body for error messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
