// Package piapi provides an HTTP client for PiAPI audio augmentation.
// It attaches a generated soundtrack to an already-completed video task,
// keyed by that task's identifier rather than by the video bytes.
package piapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/cgistudio-api/internal/longpoll"
)

// Static errors for PiAPI client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("piapi: API key is not set")
	// ErrAugmentationFailed is returned when the remote task reports failure.
	ErrAugmentationFailed = errors.New("piapi: audio augmentation failed")
	// ErrVideoURLMissing is returned when a completed task carries no video
	// location in any known response shape.
	ErrVideoURLMissing = errors.New("piapi: completed task has no video URL")
)

// Client is an HTTP client for PiAPI audio-augmentation tasks.
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

// NewClient creates a new PiAPI client. The API key may be empty; calls made
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

// createTaskRequest is the wire request for audio task creation.
type createTaskRequest struct {
	Model  string      `json:"model"`
	TaskTy string      `json:"task_type"`
	Input  createInput `json:"input"`
}

type createInput struct {
	OriginTaskID string `json:"origin_task_id"`
	Prompt       string `json:"prompt,omitempty"`
}

// statusEnvelope mirrors the task-status layouts of the task host.
type statusEnvelope struct {
	Status string     `json:"status"`
	Data   statusData `json:"data"`
}

type statusData struct {
	Status     string    `json:"status"`
	TaskStatus string    `json:"task_status"`
	Error      taskError `json:"error"`
	Output     *output   `json:"output"`
}

type taskError struct {
	Message string `json:"message"`
}

type output struct {
	VideoURL string `json:"video_url"`
	Works    []work `json:"works"`
}

type work struct {
	Video workVideo `json:"video"`
}

type workVideo struct {
	ResourceWithoutWatermark string `json:"resource_without_watermark"`
	Resource                 string `json:"resource"`
}

// CreateTask submits an audio-augmentation job for an already-completed
// video task and returns the new task's ID.
func (c *Client) CreateTask(ctx context.Context, originTaskID, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	req := createTaskRequest{
		Model:  "kling",
		TaskTy: "video2audio",
		Input: createInput{
			OriginTaskID: originTaskID,
			Prompt:       prompt,
		},
	}

	taskID, err := c.poller.Submit(ctx, c.baseURL+"/task", c.headers(), req)
	if err != nil {
		return "", fmt.Errorf("piapi: %w", err)
	}

	c.logger.Info("audio task created",
		slog.String("task_id", taskID),
		slog.String("origin_task_id", originTaskID),
	)
	return taskID, nil
}

// WaitForAudio polls the task until it terminates and returns the URL of the
// audio-augmented video.
func (c *Client) WaitForAudio(ctx context.Context, taskID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	payload, err := c.poller.Poll(ctx, c.baseURL+"/task/"+taskID, c.headers(), classify, c.pollOpts)
	if err != nil {
		if errors.Is(err, longpoll.ErrTaskFailed) {
			return "", fmt.Errorf("%w: %w", ErrAugmentationFailed, err)
		}
		return "", fmt.Errorf("piapi: %w", err)
	}

	var env statusEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("piapi: unmarshal completed task: %w", err)
	}

	if env.Data.Output != nil {
		if env.Data.Output.VideoURL != "" {
			return env.Data.Output.VideoURL, nil
		}
		if len(env.Data.Output.Works) > 0 {
			w := env.Data.Output.Works[0].Video
			if w.ResourceWithoutWatermark != "" {
				return w.ResourceWithoutWatermark, nil
			}
			if w.Resource != "" {
				return w.Resource, nil
			}
		}
	}

	return "", ErrVideoURLMissing
}

// headers returns the auth headers for the task host.
func (c *Client) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}

// classify maps a task-status response to a poll outcome.
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
	default:
		return longpoll.Outcome{State: longpoll.StateRunning}
	}
}
