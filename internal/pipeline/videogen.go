package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/maauso/cgistudio-api/internal/kling"
	"github.com/maauso/cgistudio-api/internal/piapi"
)

// KlingGenerator implements VideoGenerator over the Kling client.
type KlingGenerator struct {
	client *kling.Client
}

// NewKlingGenerator creates a new video generator adapter.
func NewKlingGenerator(client *kling.Client) *KlingGenerator {
	return &KlingGenerator{client: client}
}

// Compile-time check that KlingGenerator implements VideoGenerator.
var _ VideoGenerator = (*KlingGenerator)(nil)

// CreateTask submits the image-to-video job and returns its task ID.
func (g *KlingGenerator) CreateTask(ctx context.Context, req VideoRequest) (string, error) {
	taskID, err := g.client.CreateTask(ctx, kling.VideoTask{
		ImageBase64:     base64.StdEncoding.EncodeToString(req.ImageData),
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return "", fmt.Errorf("video generator: %w", err)
	}
	return taskID, nil
}

// WaitForVideo polls the job to completion and returns the video URL.
func (g *KlingGenerator) WaitForVideo(ctx context.Context, taskID string) (string, error) {
	url, err := g.client.WaitForVideo(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("video generator: %w", err)
	}
	return url, nil
}

// PiAPIAugmenter implements AudioAugmenter over the PiAPI client.
type PiAPIAugmenter struct {
	client *piapi.Client
}

// NewPiAPIAugmenter creates a new audio augmenter adapter.
func NewPiAPIAugmenter(client *piapi.Client) *PiAPIAugmenter {
	return &PiAPIAugmenter{client: client}
}

// Compile-time check that PiAPIAugmenter implements AudioAugmenter.
var _ AudioAugmenter = (*PiAPIAugmenter)(nil)

// CreateTask submits the augmentation job keyed by the video task ID.
func (a *PiAPIAugmenter) CreateTask(ctx context.Context, videoTaskID, prompt string) (string, error) {
	taskID, err := a.client.CreateTask(ctx, videoTaskID, prompt)
	if err != nil {
		return "", fmt.Errorf("audio augmenter: %w", err)
	}
	return taskID, nil
}

// WaitForAudio polls the job to completion and returns the augmented video URL.
func (a *PiAPIAugmenter) WaitForAudio(ctx context.Context, taskID string) (string, error) {
	url, err := a.client.WaitForAudio(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("audio augmenter: %w", err)
	}
	return url, nil
}
