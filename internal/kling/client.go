package kling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/cgistudio-api/internal/longpoll"
)

// Static errors for Kling client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("kling: API key is not set")
	// ErrGenerationFailed is returned when the remote task reports failure.
	ErrGenerationFailed = errors.New("kling: video generation failed")
	// ErrVideoURLMissing is returned when a completed task carries no video
	// location in any known response shape.
	ErrVideoURLMissing = errors.New("kling: completed task has no video URL")
)

// Client is an HTTP client for Kling image-to-video tasks.
type Client struct {
	apiKey   string
	baseURL  string
	poller   *longpoll.Client
	pollOpts longpoll.PollOptions
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the task host.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithPoller sets the long-poll client used for submit and poll.
func WithPoller(p *longpoll.Client) ClientOption {
	return func(c *Client) {
		c.poller = p
	}
}

// WithPollOptions sets the polling parameters.
func WithPollOptions(opts longpoll.PollOptions) ClientOption {
	return func(c *Client) {
		c.pollOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Kling client. The API key may be empty; calls made
// without a key fail with ErrAPIKeyNotSet.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  "https://api.piapi.ai/api/v1",
		poller:   longpoll.NewClient(),
		pollOpts: longpoll.DefaultPollOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTask submits an image-to-video job and returns its task ID without
// waiting for completion, so the caller can checkpoint the ID before polling.
func (c *Client) CreateTask(ctx context.Context, task VideoTask) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	duration := task.DurationSeconds
	if duration != 5 && duration != 10 {
		duration = 5
	}

	req := createTaskRequest{
		Model:  "kling",
		TaskTy: "video_generation",
		Input: createInput{
			Prompt:         task.Prompt,
			NegativePrompt: task.NegativePrompt,
			Image:          task.ImageBase64,
			Duration:       duration,
			Mode:           "std",
			Version:        "1.6",
		},
	}

	taskID, err := c.poller.Submit(ctx, c.baseURL+"/task", c.headers(), req)
	if err != nil {
		return "", fmt.Errorf("kling: %w", err)
	}

	c.logger.Info("video task created", slog.String("task_id", taskID))
	return taskID, nil
}

// WaitForVideo polls the task until it terminates and returns the output
// video URL. A completed task with no extractable video location fails with
// ErrVideoURLMissing; a remote failure fails with ErrGenerationFailed.
func (c *Client) WaitForVideo(ctx context.Context, taskID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	payload, err := c.poller.Poll(ctx, c.baseURL+"/task/"+taskID, c.headers(), classify, c.pollOpts)
	if err != nil {
		if errors.Is(err, longpoll.ErrTaskFailed) {
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		return "", fmt.Errorf("kling: %w", err)
	}

	var env statusEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("kling: unmarshal completed task: %w", err)
	}

	url, shape := extractVideoURL(env.Data)
	if url == "" {
		return "", ErrVideoURLMissing
	}
	c.logger.Debug("video result matched shape", slog.String("shape", shape))

	return url, nil
}

// headers returns the auth headers for the task host.
func (c *Client) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}

// classify maps a task-status response to a poll outcome. Status strings
// differ between API versions, so both locations and several spellings of
// terminal states are accepted.
func classify(statusCode int, body []byte) longpoll.Outcome {
	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return longpoll.Outcome{State: longpoll.StateTransient}
	}

	status := env.Data.TaskStatus
	if status == "" {
		status = env.Data.Status
	}
	if status == "" {
		status = env.Status
	}

	switch strings.ToLower(status) {
	case "completed", "succeed", "succeeded", "success", "finished":
		return longpoll.Outcome{State: longpoll.StateDone, Payload: body}
	case "failed", "error":
		reason := env.Data.Error.Message
		if reason == "" {
			reason = "task failed"
		}
		return longpoll.Outcome{State: longpoll.StateFailed, Reason: reason}
	case "":
		return longpoll.Outcome{State: longpoll.StateTransient}
	default: // pending, processing, staged, ...
		return longpoll.Outcome{State: longpoll.StateRunning}
	}
}

// extractVideoURL probes the known output layouts in order and returns the
// first video location found, plus the name of the shape that matched.
func extractVideoURL(data statusData) (string, string) {
	if data.Output != nil && data.Output.VideoURL != "" {
		return data.Output.VideoURL, "output.video_url"
	}
	if data.Output != nil && len(data.Output.Works) > 0 {
		w := data.Output.Works[0].Video
		if w.ResourceWithoutWatermark != "" {
			return w.ResourceWithoutWatermark, "output.works.resource_without_watermark"
		}
		if w.Resource != "" {
			return w.Resource, "output.works.resource"
		}
	}
	if data.TaskResult != nil && len(data.TaskResult.Videos) > 0 && data.TaskResult.Videos[0].URL != "" {
		return data.TaskResult.Videos[0].URL, "task_result.videos"
	}
	return "", ""
}
