package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/cgistudio-api/internal/gemini"
	"github.com/maauso/cgistudio-api/internal/media"
	"github.com/maauso/cgistudio-api/internal/project"
)

// GeminiEnhancer implements PromptEnhancer over the Gemini text model.
type GeminiEnhancer struct {
	client  *gemini.Client
	intents IntentExtractor
	logger  *slog.Logger
}

// NewGeminiEnhancer creates a new enhancer adapter.
func NewGeminiEnhancer(client *gemini.Client, intents IntentExtractor, logger *slog.Logger) *GeminiEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	if intents == nil {
		intents = RuleBasedExtractor{}
	}
	return &GeminiEnhancer{client: client, intents: intents, logger: logger}
}

// Compile-time check that GeminiEnhancer implements PromptEnhancer.
var _ PromptEnhancer = (*GeminiEnhancer)(nil)

// Enhance sends the product and scene references plus the instruction
// template to the text model. On any failure (network, malformed response,
// missing API key) it returns the deterministic fallback prompt instead of
// an error, since downstream stages can proceed with a lower-quality prompt.
func (e *GeminiEnhancer) Enhance(ctx context.Context, in EnhanceInput) (string, error) {
	instruction := buildEnhanceInstruction(in, e.intents.Extract(in.UserText))

	text, err := e.client.GenerateText(ctx, gemini.TextRequest{
		Instruction: instruction,
		Images: []gemini.InlineImage{
			{MIMEType: in.Product.MIMEType, Data: in.Product.Data},
			{MIMEType: in.Scene.MIMEType, Data: in.Scene.Data},
		},
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.logger.Warn("prompt enhancement failed, using fallback",
				slog.String("error", err.Error()),
			)
		}
		return FallbackPrompt(in.UserText, in.Kind), nil
	}

	return text, nil
}

// AnalyzeForVideo re-analyzes the composed image to derive a video-specific
// prompt (camera movement, narrative). On failure it returns the base
// prompt.
func (e *GeminiEnhancer) AnalyzeForVideo(ctx context.Context, image media.Media, basePrompt string) (string, error) {
	instruction := fmt.Sprintf(videoAnalysisTemplate, basePrompt)

	text, err := e.client.GenerateText(ctx, gemini.TextRequest{
		Instruction: instruction,
		Images: []gemini.InlineImage{
			{MIMEType: image.MIMEType, Data: image.Data},
		},
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.logger.Warn("video prompt analysis failed, using image prompt",
				slog.String("error", err.Error()),
			)
		}
		return basePrompt, nil
	}

	return text, nil
}

// enhanceTemplate instructs the model to write one English generation
// prompt. The language normalization line matters: user descriptions arrive
// in any language, and every downstream provider expects English.
const enhanceTemplate = `You are a commercial CGI artist. The first image is a product photo, the second is the scene it should be composited into.
Write a single, detailed prompt for an image generation model that places the product naturally into the scene with photorealistic lighting, shadows, reflections and perspective.
Respond with the prompt only, in English, regardless of the language of the user description.
User description: %s`

// videoAnalysisTemplate derives camera movement and narrative from an
// already-composed image.
const videoAnalysisTemplate = `The attached image is a finished CGI product composite. Write a single prompt for an image-to-video model describing subtle, professional camera movement and scene motion that brings this exact shot to life. Keep the product static and sharp.
Respond with the prompt only, in English.
Base prompt: %s`

// buildEnhanceInstruction fills the template and appends intent directives.
func buildEnhanceInstruction(in EnhanceInput, intents Intents) string {
	var b strings.Builder
	fmt.Fprintf(&b, enhanceTemplate, strings.TrimSpace(in.UserText))

	if in.Kind == project.ContentVideo {
		b.WriteString("\nThe composite will be animated afterwards, so favor a composition with room for camera movement.")
	}
	switch {
	case intents.ExcludePeople:
		b.WriteString("\nDo not include any people, humans or faces in the prompt.")
	case intents.IncludePeople:
		b.WriteString("\nInclude people interacting naturally with the product.")
	}
	switch {
	case intents.ExcludeText:
		b.WriteString("\nDo not include any text, captions or watermarks in the prompt.")
	case intents.IncludeText:
		b.WriteString("\nInclude tasteful overlaid text where the user asked for it.")
	}

	return b.String()
}

// FallbackPrompt is the deterministic prompt used when enhancement fails.
// It is never empty, even for an empty user description.
func FallbackPrompt(userText string, kind project.ContentType) string {
	base := "Professional CGI composite: the product from the first image placed naturally into the scene from the second image, photorealistic lighting, accurate shadows and reflections, high detail"
	if kind == project.ContentVideo {
		base += ", composed with room for subtle camera movement"
	}

	text := strings.TrimSpace(userText)
	if text == "" {
		return base + "."
	}
	return base + ". " + text
}
