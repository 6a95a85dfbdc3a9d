package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/cgistudio-api/internal/gemini"
)

// ErrNoImageProduced is returned when the image model yields no image data
// in any known response shape. This failure is fatal to the run.
var ErrNoImageProduced = errors.New("pipeline: image composition produced no image")

// GeminiComposer implements ImageComposer over the Gemini image model.
type GeminiComposer struct {
	client *gemini.Client
	logger *slog.Logger
}

// NewGeminiComposer creates a new composer adapter.
func NewGeminiComposer(client *gemini.Client, logger *slog.Logger) *GeminiComposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiComposer{client: client, logger: logger}
}

// Compile-time check that GeminiComposer implements ImageComposer.
var _ ImageComposer = (*GeminiComposer)(nil)

// Compose sends both references plus the enhanced prompt to the image model
// and returns the generated composite. There is no fallback: any failure
// here aborts the run.
func (c *GeminiComposer) Compose(ctx context.Context, in ComposeInput) (Composite, error) {
	result, err := c.client.GenerateImage(ctx, gemini.ImageRequest{
		Instruction: composeInstruction(in.Prompt),
		Images: []gemini.InlineImage{
			{MIMEType: in.Product.MIMEType, Data: in.Product.Data},
			{MIMEType: in.Scene.MIMEType, Data: in.Scene.Data},
		},
	})
	if err != nil {
		if errors.Is(err, gemini.ErrNoImageProduced) {
			return Composite{}, fmt.Errorf("%w: %w", ErrNoImageProduced, err)
		}
		return Composite{}, fmt.Errorf("pipeline: compose image: %w", err)
	}

	c.logger.Info("composite image generated",
		slog.Int("bytes", len(result.Data)),
		slog.String("mime_type", result.MIMEType),
	)

	return Composite{Data: result.Data, MIMEType: result.MIMEType}, nil
}

func composeInstruction(prompt string) string {
	return "Composite the product from the first image into the scene from the second image. " + prompt
}
