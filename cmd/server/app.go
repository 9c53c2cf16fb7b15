package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelierhq/atelier-api/internal/api"
	"github.com/atelierhq/atelier-api/internal/batch"
	"github.com/atelierhq/atelier-api/internal/config"
	"github.com/atelierhq/atelier-api/internal/domain"
	"github.com/atelierhq/atelier-api/internal/optimizer"
	"github.com/atelierhq/atelier-api/internal/platform/postgres"
	"github.com/atelierhq/atelier-api/internal/provider"
	"github.com/atelierhq/atelier-api/internal/provider/gemini"
	"github.com/atelierhq/atelier-api/internal/provider/kie"
	"github.com/atelierhq/atelier-api/internal/service"
	"github.com/atelierhq/atelier-api/internal/service/auth"
	"github.com/atelierhq/atelier-api/internal/storage"
)

// application holds the assembled object graph behind the HTTP surface.
type application struct {
	cfg          *config.Config
	logger       *slog.Logger
	batchService *service.BatchService
	authHandler  *api.AuthHandler
	batchHandler *api.BatchHandler
	jwtService   auth.JWTService
}

// modelRouter adapts the provider registry to the orchestrator's
// generator boundary, filling in the default model when a request
// leaves the model blank.
type modelRouter struct {
	registry     *provider.Registry
	defaultModel string
}

func (r *modelRouter) Generate(
	ctx context.Context,
	req domain.GenerationRequest,
) ([]domain.Outcome, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
	gen, err := r.registry.ForModel(req.Model)
	if err != nil {
		return nil, err
	}
	return gen.Generate(ctx, req)
}

// buildApplication wires the full dependency graph from configuration:
// stores, providers, the orchestrator, services, and HTTP handlers.
func buildApplication(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	log *slog.Logger,
) (*application, error) {
	batchStore := postgres.NewBatchStore(db, log)

	registry := provider.NewRegistry()
	defaultModel := ""
	var fetcher api.ImageFetcher

	if cfg.Providers.KIE.APIKey != "" {
		pollInterval := time.Duration(cfg.Providers.KIE.PollIntervalSec) * time.Second
		kieClient, err := kie.NewClient(kie.Config{
			BaseURL:      cfg.Providers.KIE.BaseURL,
			APIKey:       cfg.Providers.KIE.APIKey,
			PollInterval: pollInterval,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create job provider client: %w", err)
		}
		kieGen, err := kie.NewGenerator(kieClient, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create job provider generator: %w", err)
		}
		// Catch-all: any model not claimed by a longer prefix routes to
		// the asynchronous job provider.
		if err := registry.Register("", kieGen); err != nil {
			return nil, err
		}
		fetcher = kieClient
		log.Info("job provider enabled", "base_url", cfg.Providers.KIE.BaseURL)
	}

	if cfg.Providers.Gemini.APIKey != "" {
		geminiGen, err := gemini.NewGenerator(ctx, cfg.Providers.Gemini.APIKey, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini generator: %w", err)
		}
		if err := registry.Register("gemini", geminiGen); err != nil {
			return nil, err
		}
		defaultModel = gemini.DefaultModel
		log.Info("gemini provider enabled")
	}

	if defaultModel == "" {
		if cfg.Providers.KIE.APIKey == "" {
			return nil, errors.New("no image provider configured")
		}
		defaultModel = "google/nano-banana"
	}

	var opt batch.Optimizer
	if cfg.Providers.Gemini.APIKey != "" {
		o, err := optimizer.New(ctx, cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.OptimizerModel, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create prompt optimizer: %w", err)
		}
		opt = o
	}

	saver, err := storage.NewFileSaver(cfg.Storage.OutputDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}

	orchestrator, err := batch.NewOrchestrator(
		&modelRouter{registry: registry, defaultModel: defaultModel},
		opt,
		saver,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	batchService, err := service.NewBatchService(batchStore, orchestrator, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt service: %w", err)
	}

	return &application{
		cfg:          cfg,
		logger:       log,
		batchService: batchService,
		authHandler:  api.NewAuthHandler(jwtService, auth.NewBcryptVerifier(), cfg.Auth, log),
		batchHandler: api.NewBatchHandler(batchService, fetcher, cfg.Batch, log),
		jwtService:   jwtService,
	}, nil
}
