package pipeline

import (
	"context"

	"github.com/maauso/cgistudio-api/internal/media"
	"github.com/maauso/cgistudio-api/internal/project"
)

// EnhanceInput is the input for prompt enhancement.
type EnhanceInput struct {
	// Product is the resolved product photo.
	Product media.Media
	// Scene is the resolved scene photo or video.
	Scene media.Media
	// UserText is the free-text user description, in any language.
	UserText string
	// Kind is the requested output content type.
	Kind project.ContentType
}

// PromptEnhancer turns the raw inputs into a detailed generation prompt.
// Implementations degrade gracefully: on any failure they return a
// deterministic fallback derived from the user text rather than an error.
type PromptEnhancer interface {
	// Enhance returns the enhanced prompt. The output is always English,
	// regardless of the language of the user description.
	Enhance(ctx context.Context, in EnhanceInput) (string, error)

	// AnalyzeForVideo derives a motion/narrative prompt from the composed
	// image, layered on top of the base prompt. On failure the base prompt
	// is the expected fallback.
	AnalyzeForVideo(ctx context.Context, image media.Media, basePrompt string) (string, error)
}

// ComposeInput is the input for image composition.
type ComposeInput struct {
	// Product is the resolved product photo.
	Product media.Media
	// Scene is the resolved scene photo or video.
	Scene media.Media
	// Prompt is the enhanced generation prompt.
	Prompt string
}

// Composite is a generated composite image.
type Composite struct {
	Data     []byte
	MIMEType string
}

// ImageComposer produces the composite image. Failure here is fatal to the
// run; there is no fallback.
type ImageComposer interface {
	Compose(ctx context.Context, in ComposeInput) (Composite, error)
}

// VideoRequest is the input for image-to-video generation.
type VideoRequest struct {
	// ImageData is the composed source image.
	ImageData []byte
	// ImageMIME is the source image MIME type.
	ImageMIME string
	// Prompt is the motion/narrative prompt.
	Prompt string
	// NegativePrompt lists unwanted features.
	NegativePrompt string
	// DurationSeconds is the requested duration (5 or 10).
	DurationSeconds int
}

// VideoGenerator creates and drives a remote image-to-video job. Task
// creation and completion are separate operations so the orchestrator can
// checkpoint the task ID before polling begins.
type VideoGenerator interface {
	// CreateTask submits the job and returns its external task ID.
	CreateTask(ctx context.Context, req VideoRequest) (taskID string, err error)

	// WaitForVideo polls the task to completion and returns the output
	// video location.
	WaitForVideo(ctx context.Context, taskID string) (videoURL string, err error)
}

// AudioAugmenter attaches generated audio to an already-completed video
// job, keyed by that job's task ID. Failure is non-fatal; the run continues
// with the silent video.
type AudioAugmenter interface {
	// CreateTask submits the augmentation job and returns its task ID.
	CreateTask(ctx context.Context, videoTaskID, prompt string) (taskID string, err error)

	// WaitForAudio polls the task to completion and returns the location of
	// the audio-augmented video.
	WaitForAudio(ctx context.Context, taskID string) (videoURL string, err error)
}
