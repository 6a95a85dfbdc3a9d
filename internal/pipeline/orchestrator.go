package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/maauso/cgistudio-api/internal/media"
	"github.com/maauso/cgistudio-api/internal/project"
	"github.com/maauso/cgistudio-api/internal/storage"
)

// Orchestrator drives a Project through the generation stages, invoking the
// correct adapter per stage, persisting state transitions through the
// repository, and applying the failure policy of each stage. Each run is a
// single goroutine, fully decoupled from the request that started it.
type Orchestrator struct {
	repo     project.Repository
	enhancer PromptEnhancer
	composer ImageComposer
	videoGen VideoGenerator
	audioAug AudioAugmenter
	resolver media.Resolver
	store    storage.Storage
	pricing  Pricing
	registry *Registry
	logger   *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPricing overrides the default pricing table.
func WithPricing(p Pricing) OrchestratorOption {
	return func(o *Orchestrator) {
		o.pricing = p
	}
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(
	repo project.Repository,
	enhancer PromptEnhancer,
	composer ImageComposer,
	videoGen VideoGenerator,
	audioAug AudioAugmenter,
	resolver media.Resolver,
	store storage.Storage,
	logger *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		repo:     repo,
		enhancer: enhancer,
		composer: composer,
		videoGen: videoGen,
		audioAug: audioAug,
		resolver: resolver,
		store:    store,
		pricing:  DefaultPricing(),
		registry: NewRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the run registry for cancellation by the HTTP layer.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// runOutputs collects what a successful run produced.
type runOutputs struct {
	imageRef string
	videoRef string
}

// Run executes one pipeline run for the given project. It claims the
// per-project run token first; a second Run for a project already being
// processed fails with project.ErrRunInProgress and leaves the project
// untouched. All failure information after the claim is observable only
// through the project's persisted status and error message.
func (o *Orchestrator) Run(ctx context.Context, projectID string) error {
	runID := uuid.NewString()
	if err := o.repo.ClaimRun(ctx, projectID, runID); err != nil {
		return fmt.Errorf("claim run for %s: %w", projectID, err)
	}

	proj, err := o.repo.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.registry.Register(projectID, cancel)
	defer o.registry.Unregister(projectID)

	logger := o.logger.With(
		slog.String("project_id", projectID),
		slog.String("run_id", runID),
	)
	logger.Info("pipeline run started",
		slog.String("content_type", string(proj.ContentType)),
		slog.Bool("include_audio", proj.IncludeAudio),
	)

	ledger := NewLedger(o.pricing)

	outputs, runErr := o.executeGuarded(runCtx, proj, ledger, logger)

	// Terminal transition: status, outputs and the accumulated cost are
	// written in a single update, exactly once per run.
	if runErr != nil {
		logger.Error("pipeline run failed",
			slog.String("error", runErr.Error()),
			slog.Int64("actual_cost_millicents", ledger.Total()),
		)
		o.finish(projectID, project.Update{
			Status:               statusPtr(project.StatusFailed),
			ErrorMessage:         strPtr(userFacingError(runErr)),
			ActualCostMillicents: int64Ptr(ledger.Total()),
			RunID:                strPtr(""),
		}, logger)
		return runErr
	}

	update := project.Update{
		Status:               statusPtr(project.StatusCompleted),
		Progress:             intPtr(100),
		ActualCostMillicents: int64Ptr(ledger.Total()),
		RunID:                strPtr(""),
	}
	if outputs.imageRef != "" {
		update.OutputImageRef = strPtr(outputs.imageRef)
	}
	if outputs.videoRef != "" {
		update.OutputVideoRef = strPtr(outputs.videoRef)
	}
	o.finish(projectID, update, logger)

	logger.Info("pipeline run completed",
		slog.Int64("actual_cost_millicents", ledger.Total()),
	)
	return nil
}

// executeGuarded runs the stage sequence with a panic guard: any uncaught
// panic becomes a failed run with whatever cost had accumulated.
func (o *Orchestrator) executeGuarded(ctx context.Context, proj *project.Project, ledger *Ledger, logger *slog.Logger) (out runOutputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return o.execute(ctx, proj, ledger, logger)
}

// execute advances the project through the stage sequence. Stage order is
// fixed and strictly sequential; only the entire video block is skipped,
// when the project requests an image.
func (o *Orchestrator) execute(ctx context.Context, proj *project.Project, ledger *Ledger, logger *slog.Logger) (runOutputs, error) {
	var out runOutputs

	if err := o.setStage(ctx, proj.ID, project.StatusProcessing, 10); err != nil {
		return out, err
	}

	product, err := o.resolver.Resolve(ctx, proj.ProductImageRef)
	if err != nil {
		return out, fmt.Errorf("resolve product image: %w", err)
	}
	sceneRef := proj.SceneImageRef
	if sceneRef == "" {
		sceneRef = proj.SceneVideoRef
	}
	scene, err := o.resolver.Resolve(ctx, sceneRef)
	if err != nil {
		return out, fmt.Errorf("resolve scene reference: %w", err)
	}

	// Stage 1: prompt enhancement. Never fails the run; the adapter and
	// the guard below both degrade to the deterministic fallback.
	if err := o.setStage(ctx, proj.ID, project.StatusEnhancingPrompt, 25); err != nil {
		return out, err
	}
	prompt := o.enhancePrompt(ctx, ledger, EnhanceInput{
		Product:  product,
		Scene:    scene,
		UserText: proj.Description,
		Kind:     proj.ContentType,
	}, logger)

	if err := o.repo.UpdateProject(ctx, proj.ID, project.Update{
		Status:         statusPtr(project.StatusGeneratingImage),
		Progress:       intPtr(50),
		EnhancedPrompt: strPtr(prompt),
	}); err != nil {
		return out, err
	}

	// Stage 2: image composition. Fatal on failure.
	if err := o.setProgress(ctx, proj.ID, 60); err != nil {
		return out, err
	}
	composite, err := o.composeImage(ctx, ledger, ComposeInput{
		Product: product,
		Scene:   scene,
		Prompt:  prompt,
	})
	if err != nil {
		return out, fmt.Errorf("image composition: %w", err)
	}

	out.imageRef, err = o.storeComposite(ctx, proj.ID, composite, logger)
	if err != nil {
		return out, fmt.Errorf("store composite: %w", err)
	}
	// Persist the partial output now so a later video failure preserves it.
	if err := o.repo.UpdateProject(ctx, proj.ID, project.Update{
		Progress:       intPtr(75),
		OutputImageRef: strPtr(out.imageRef),
	}); err != nil {
		return out, err
	}

	if proj.ContentType != project.ContentVideo {
		return out, nil
	}

	// Stage 3: video generation block.
	videoRef, err := o.generateVideo(ctx, proj, ledger, composite, prompt, logger)
	if err != nil {
		return out, err
	}
	out.videoRef = videoRef

	return out, nil
}

// generateVideo runs the conditional video block: derive a motion prompt
// from the composed image, create the remote job, checkpoint its task ID,
// poll to completion, and optionally augment with audio.
func (o *Orchestrator) generateVideo(ctx context.Context, proj *project.Project, ledger *Ledger, composite Composite, basePrompt string, logger *slog.Logger) (string, error) {
	// Second, independent text/vision call with its own fallback policy.
	videoPrompt := o.analyzeVideoPrompt(ctx, ledger, composite, basePrompt, logger)

	if err := o.setStage(ctx, proj.ID, project.StatusGeneratingVideo, 78); err != nil {
		return "", err
	}

	intents := RuleBasedExtractor{}.Extract(proj.Description)
	taskID, err := o.createVideoTask(ctx, ledger, VideoRequest{
		ImageData:       composite.Data,
		ImageMIME:       composite.MIMEType,
		Prompt:          videoPrompt,
		NegativePrompt:  NegativePrompt(intents),
		DurationSeconds: proj.VideoDurationSeconds,
	}, proj.VideoDurationSeconds)
	if err != nil {
		return "", fmt.Errorf("video generation: %w", err)
	}

	// Recovery checkpoint: persist the task ID before polling begins.
	// Best-effort; a failed write must not abort the run.
	if err := o.repo.UpdateProject(ctx, proj.ID, project.Update{
		Progress:    intPtr(80),
		VideoTaskID: strPtr(taskID),
	}); err != nil {
		logger.Warn("failed to checkpoint video task ID",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
	}

	videoURL, err := o.videoGen.WaitForVideo(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("video generation: %w", err)
	}

	if err := o.repo.UpdateProject(ctx, proj.ID, project.Update{
		Progress:       intPtr(95),
		OutputVideoRef: strPtr(videoURL),
	}); err != nil {
		logger.Warn("failed to persist silent video URL",
			slog.String("error", err.Error()),
		)
	}

	if !proj.IncludeAudio {
		return videoURL, nil
	}

	// Audio augmentation is non-fatal: any failure keeps the silent video.
	augmented, ok := o.augmentAudio(ctx, proj, ledger, taskID, videoPrompt, logger)
	if !ok {
		return videoURL, nil
	}
	return augmented, nil
}

// augmentAudio attempts the audio stage and reports whether it produced an
// augmented video.
func (o *Orchestrator) augmentAudio(ctx context.Context, proj *project.Project, ledger *Ledger, videoTaskID, prompt string, logger *slog.Logger) (string, bool) {
	audioTaskID, err := o.createAudioTask(ctx, ledger, videoTaskID, prompt)
	if err != nil {
		logger.Warn("audio augmentation failed, keeping silent video",
			slog.String("error", err.Error()),
		)
		return "", false
	}

	// Same best-effort checkpoint discipline as the video task ID.
	if err := o.repo.UpdateProject(ctx, proj.ID, project.Update{
		AudioTaskID: strPtr(audioTaskID),
	}); err != nil {
		logger.Warn("failed to checkpoint audio task ID",
			slog.String("task_id", audioTaskID),
			slog.String("error", err.Error()),
		)
	}

	url, err := o.audioAug.WaitForAudio(ctx, audioTaskID)
	if err != nil {
		logger.Warn("audio augmentation failed, keeping silent video",
			slog.String("task_id", audioTaskID),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	return url, true
}

// Stage invocation helpers. Each charges its nominal cost in a deferred
// call so the attempt is billed whether or not the provider call succeeds.

func (o *Orchestrator) enhancePrompt(ctx context.Context, ledger *Ledger, in EnhanceInput, logger *slog.Logger) string {
	defer ledger.Charge(StagePromptEnhance)

	prompt, err := o.enhancer.Enhance(ctx, in)
	if err != nil || strings.TrimSpace(prompt) == "" {
		if err != nil {
			logger.Warn("prompt enhancer returned error, using fallback",
				slog.String("error", err.Error()),
			)
		}
		return FallbackPrompt(in.UserText, in.Kind)
	}
	return prompt
}

func (o *Orchestrator) composeImage(ctx context.Context, ledger *Ledger, in ComposeInput) (Composite, error) {
	defer ledger.Charge(StageImageCompose)
	return o.composer.Compose(ctx, in)
}

func (o *Orchestrator) analyzeVideoPrompt(ctx context.Context, ledger *Ledger, composite Composite, basePrompt string, logger *slog.Logger) string {
	defer ledger.Charge(StageVideoPromptAnalysis)

	prompt, err := o.enhancer.AnalyzeForVideo(ctx, media.Media{
		Data:     composite.Data,
		MIMEType: composite.MIMEType,
	}, basePrompt)
	if err != nil || strings.TrimSpace(prompt) == "" {
		if err != nil {
			logger.Warn("video prompt analysis returned error, using image prompt",
				slog.String("error", err.Error()),
			)
		}
		return basePrompt
	}
	return prompt
}

func (o *Orchestrator) createVideoTask(ctx context.Context, ledger *Ledger, req VideoRequest, durationSeconds int) (string, error) {
	defer ledger.ChargeAmount(StageVideoGenerate, o.pricing.VideoCost(durationSeconds))
	return o.videoGen.CreateTask(ctx, req)
}

func (o *Orchestrator) createAudioTask(ctx context.Context, ledger *Ledger, videoTaskID, prompt string) (string, error) {
	defer ledger.Charge(StageAudioAugment)
	return o.audioAug.CreateTask(ctx, videoTaskID, prompt)
}

// storeComposite saves the generated image and, when S3 is configured,
// uploads it for delivery by URL.
func (o *Orchestrator) storeComposite(ctx context.Context, projectID string, composite Composite, logger *slog.Logger) (string, error) {
	name := projectID + "_composite"
	path, err := o.store.Save(ctx, name, bytes.NewReader(composite.Data))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("projects/%s/composite%s", projectID, extensionFor(composite.MIMEType))
	url, err := o.store.UploadToS3(ctx, key, bytes.NewReader(composite.Data))
	if err != nil {
		if !errors.Is(err, storage.ErrS3NotConfigured) {
			logger.Warn("S3 upload failed, serving composite from local storage",
				slog.String("error", err.Error()),
			)
		}
		return path, nil
	}
	return url, nil
}

// setStage persists a status transition together with its progress value.
func (o *Orchestrator) setStage(ctx context.Context, projectID string, status project.Status, progress int) error {
	if err := o.repo.UpdateProject(ctx, projectID, project.Update{
		Status:   statusPtr(status),
		Progress: intPtr(progress),
	}); err != nil {
		return fmt.Errorf("persist %s transition: %w", status, err)
	}
	return nil
}

// setProgress persists a progress-only update.
func (o *Orchestrator) setProgress(ctx context.Context, projectID string, progress int) error {
	if err := o.repo.UpdateProject(ctx, projectID, project.Update{Progress: intPtr(progress)}); err != nil {
		return fmt.Errorf("persist progress %d: %w", progress, err)
	}
	return nil
}

// finish writes the terminal update. It uses a background context so a
// cancelled run can still record its terminal state.
func (o *Orchestrator) finish(projectID string, update project.Update, logger *slog.Logger) {
	if err := o.repo.UpdateProject(context.Background(), projectID, update); err != nil {
		logger.Error("failed to persist terminal state",
			slog.String("error", err.Error()),
		)
	}
}

// userFacingError renders a run error as the persisted error message.
func userFacingError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "run cancelled"
	}
	return err.Error()
}

// extensionFor maps a MIME type to a file extension for output keys.
func extensionFor(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}

func statusPtr(s project.Status) *project.Status { return &s }
func strPtr(s string) *string                    { return &s }
func intPtr(n int) *int                          { return &n }
func int64Ptr(n int64) *int64                    { return &n }
