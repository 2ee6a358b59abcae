package cli

import (
	"context"
	"fmt"

	"github.com/BerylCAtieno/travel-extract/internal/analyzer"
	"github.com/BerylCAtieno/travel-extract/internal/cache"
	"github.com/BerylCAtieno/travel-extract/internal/config"
	"github.com/BerylCAtieno/travel-extract/internal/extractor"
	"github.com/BerylCAtieno/travel-extract/internal/parser"
	"github.com/BerylCAtieno/travel-extract/internal/prompt"
	"github.com/BerylCAtieno/travel-extract/internal/repository"
	"github.com/BerylCAtieno/travel-extract/internal/services"
	"github.com/BerylCAtieno/travel-extract/internal/storage"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

func newModel(cfg *config.Config, logger *utils.Logger) (analyzer.Model, error) {
	m, err := analyzer.NewOpenAIModel(analyzer.Config{
		APIKey:    cfg.ModelAPIKey,
		BaseURL:   cfg.ModelBaseURL,
		Model:     cfg.ModelName,
		Timeout:   cfg.ModelTimeout,
		RateLimit: cfg.ModelRateLimit,
		RateBurst: cfg.ModelRateBurst,
		Referer:   "https://github.com/BerylCAtieno/travel-extract",
		Title:     "travel-extract",
	}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.ReplyCacheTTL <= 0 {
		return m, nil
	}
	replies := cache.NewMemoryCache(cfg.ReplyCacheTTL, 2*cfg.ReplyCacheTTL)
	return analyzer.NewCachedModel(m, replies, cfg.ReplyCacheTTL, parsable, logger), nil
}

// parsable keeps replies without a usable JSON object out of the reply cache.
func parsable(reply string) bool {
	_, err := parser.Parse(reply)
	return err == nil
}

func newStager(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.Stager, error) {
	if cfg.S3Endpoint == "" {
		logger.Info("Artifact staging disabled", "reason", "S3_ENDPOINT not set")
		return storage.NewStager(nil, logger), nil
	}
	store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		BucketName:      cfg.S3BucketName,
		UseSSL:          cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
	}
	return storage.NewStager(store, logger), nil
}

// newService wires the pipeline. repo and stager may be nil.
func newService(cfg *config.Config, model analyzer.Model, repo repository.BookingRepository, stager *storage.Stager, logger *utils.Logger) *services.ExtractionService {
	ex := extractor.New(extractor.Config{
		Tesseract:     cfg.TesseractPath,
		TesseractLang: cfg.TesseractLang,
	}, logger)

	return services.NewExtractionService(services.Deps{
		Extractor:  ex,
		Model:      model,
		Repo:       repo,
		Stager:     stager,
		Prompts:    prompt.NewBuilder(cfg.MaxPromptChars),
		Logger:     logger,
		OCRTimeout: cfg.OCRTimeout,
	})
}
