// Package pipeline provides the orchestrator that drives a Project through
// the generation stages, the adapter interfaces over the AI providers, the
// cost ledger, and the per-project run registry.
package pipeline

// Stage names the metered pipeline stages.
type Stage string

const (
	// StagePromptEnhance is the text+vision prompt enhancement call.
	StagePromptEnhance Stage = "prompt_enhance"
	// StageVideoPromptAnalysis is the second text+vision call that derives a
	// motion prompt from the composed image.
	StageVideoPromptAnalysis Stage = "video_prompt_analysis"
	// StageImageCompose is the image generation call.
	StageImageCompose Stage = "image_compose"
	// StageVideoGenerate is the image-to-video generation job.
	StageVideoGenerate Stage = "video_generate"
	// StageAudioAugment is the audio augmentation job.
	StageAudioAugment Stage = "audio_augment"
)

// Pricing is the cost table, in millicents per attempted call, keyed by
// stage name. Video generation is priced per 5-second block.
type Pricing map[Stage]int64

// DefaultPricing returns the current provider list prices.
func DefaultPricing() Pricing {
	return Pricing{
		StagePromptEnhance:       200,
		StageVideoPromptAnalysis: 200,
		StageImageCompose:        3900,
		StageVideoGenerate:       28000, // per 5-second block
		StageAudioAugment:        8000,
	}
}

// Cost returns the price of one attempt of the given stage.
func (p Pricing) Cost(stage Stage) int64 {
	return p[stage]
}

// VideoCost returns the price of one video generation attempt for the given
// duration, in 5-second blocks (a 10-second video costs two blocks).
func (p Pricing) VideoCost(durationSeconds int) int64 {
	blocks := int64(durationSeconds+4) / 5
	if blocks < 1 {
		blocks = 1
	}
	return blocks * p[StageVideoGenerate]
}
