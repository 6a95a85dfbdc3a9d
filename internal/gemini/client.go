package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("gemini: API key is not set")
	// ErrEmptyResponse is returned when the model returns no candidates.
	ErrEmptyResponse = errors.New("gemini: empty response")
	// ErrNoTextProduced is returned when a text call yields no text part.
	ErrNoTextProduced = errors.New("gemini: no text in response")
	// ErrNoImageProduced is returned when an image call yields no image data
	// in any known response shape.
	ErrNoImageProduced = errors.New("gemini: no image data in response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("gemini: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("gemini: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("gemini: request failed")
)

// Client is an HTTP client for the Gemini generateContent API.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	imageModel  string
	httpClient  *http.Client
	logger      *slog.Logger
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(gc *Client) {
		gc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(url string) ClientOption {
	return func(gc *Client) {
		gc.baseURL = url
	}
}

// WithModels sets the text and image model names.
func WithModels(textModel, imageModel string) ClientOption {
	return func(gc *Client) {
		gc.textModel = textModel
		gc.imageModel = imageModel
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(gc *Client) {
		gc.logger = l
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(gc *Client) {
		gc.maxRetries = n
	}
}

// NewClient creates a new Gemini client. The API key may be empty; calls
// made without a key fail with ErrAPIKeyNotSet so that a misconfigured
// deployment fails per run rather than at boot.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		textModel:   "gemini-2.0-flash",
		imageModel:  "gemini-2.0-flash-exp-image-generation",
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      slog.Default(),
		maxRetries:  2,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateText sends an instruction plus reference images to the text model
// and returns the produced text.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	resp, err := c.generate(ctx, c.textModel, req.Instruction, req.Images, nil)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return strings.TrimSpace(p.Text), nil
			}
		}
	}
	return "", ErrNoTextProduced
}

// GenerateImage sends an instruction plus reference images to the image
// model and returns the produced image. The response is scanned for image
// data in two shapes: inline base64 bytes, or a remote file URI that is
// fetched and embedded. If neither shape yields image data the call fails
// with ErrNoImageProduced.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	cfg := &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	resp, err := c.generate(ctx, c.imageModel, req.Instruction, req.Images, cfg)
	if err != nil {
		return ImageResult{}, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, decErr := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if decErr != nil {
					c.logger.Warn("inline image data is not valid base64",
						slog.String("error", decErr.Error()),
					)
					continue
				}
				c.logger.Debug("image response matched shape", slog.String("shape", "inlineData"))
				return ImageResult{Data: data, MIMEType: orDefault(p.InlineData.MIMEType, "image/png")}, nil
			}
			if p.FileData != nil && p.FileData.FileURI != "" {
				data, mime, fetchErr := c.fetchFile(ctx, p.FileData.FileURI)
				if fetchErr != nil {
					c.logger.Warn("failed to fetch remote image data",
						slog.String("uri", p.FileData.FileURI),
						slog.String("error", fetchErr.Error()),
					)
					continue
				}
				c.logger.Debug("image response matched shape", slog.String("shape", "fileData"))
				return ImageResult{Data: data, MIMEType: orDefault(p.FileData.MIMEType, mime)}, nil
			}
		}
	}

	return ImageResult{}, ErrNoImageProduced
}

// generate performs a generateContent call against the given model.
func (c *Client) generate(ctx context.Context, model, instruction string, images []InlineImage, cfg *generationConfig) (*generateResponse, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: instruction})
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	reqBody := generateRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: cfg,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)

	var resp generateResponse
	if err := c.doRequestWithRetry(ctx, url, bodyBytes, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRequestFailed, resp.Error.Message, resp.Error.Status)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	return &resp, nil
}

// fetchFile downloads remote file data referenced by a fileData part.
func (c *Client) fetchFile(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: create fetch request: %w", err)
	}
	// File API URIs require the same key as the generate call.
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: fetch file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w with status %d", ErrRequestFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: read file data: %w", err)
	}

	return data, orDefault(resp.Header.Get("Content-Type"), "image/png"), nil
}

// doRequestWithRetry performs a POST with exponential backoff retry.
func (c *Client) doRequestWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gemini: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("gemini: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("gemini: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("gemini: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("gemini: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
