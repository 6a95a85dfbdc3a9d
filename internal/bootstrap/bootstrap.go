// Package bootstrap provides dependency initialization for the CGI Studio API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/cgistudio-api/internal/config"
	"github.com/maauso/cgistudio-api/internal/gemini"
	"github.com/maauso/cgistudio-api/internal/kling"
	"github.com/maauso/cgistudio-api/internal/longpoll"
	"github.com/maauso/cgistudio-api/internal/media"
	"github.com/maauso/cgistudio-api/internal/piapi"
	"github.com/maauso/cgistudio-api/internal/pipeline"
	"github.com/maauso/cgistudio-api/internal/project"
	"github.com/maauso/cgistudio-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Repository   project.Repository
	Orchestrator *pipeline.Orchestrator
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// One long-poll client is shared by every provider that polls.
	poller := longpoll.NewClient(longpoll.WithLogger(logger))
	pollOpts := longpoll.DefaultPollOptions()
	pollOpts.Interval = cfg.PollInterval
	pollOpts.MaxAttempts = cfg.PollMaxAttempts

	geminiClient := gemini.NewClient(cfg.GeminiAPIKey,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModels(cfg.GeminiTextModel, cfg.GeminiImageModel),
		gemini.WithLogger(logger),
	)
	klingClient := kling.NewClient(cfg.KlingAPIKey,
		kling.WithBaseURL(cfg.KlingBaseURL),
		kling.WithPoller(poller),
		kling.WithPollOptions(pollOpts),
		kling.WithLogger(logger),
	)
	piapiClient := piapi.NewClient(cfg.PiAPIKey,
		piapi.WithBaseURL(cfg.PiAPIBaseURL),
		piapi.WithPoller(poller),
		piapi.WithPollOptions(pollOpts),
		piapi.WithLogger(logger),
	)

	// Initialize adapters
	enhancer := pipeline.NewGeminiEnhancer(geminiClient, pipeline.RuleBasedExtractor{}, logger)
	composer := pipeline.NewGeminiComposer(geminiClient, logger)
	videoGen := pipeline.NewKlingGenerator(klingClient)
	audioAug := pipeline.NewPiAPIAugmenter(piapiClient)

	// Initialize repository and media resolver
	repo := project.NewMemoryRepository()
	resolver := media.NewHTTPResolver(store)

	orchestrator := pipeline.NewOrchestrator(
		repo,
		enhancer,
		composer,
		videoGen,
		audioAug,
		resolver,
		store,
		logger,
	)

	return &Dependencies{
		Repository:   repo,
		Orchestrator: orchestrator,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, nil
}
