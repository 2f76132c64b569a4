package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"tablewise/internal/analytics"
	"tablewise/internal/assistant"
	"tablewise/internal/assistant/handlers"
	"tablewise/internal/cache"
	"tablewise/internal/config"
	"tablewise/internal/followup"
	"tablewise/internal/intent"
	"tablewise/internal/interactionlog"
	"tablewise/internal/llm"
	"tablewise/internal/planner"
)

// app bundles the wired pipeline plus everything that needs closing.
type app struct {
	cfg          *config.Config
	orchestrator *assistant.Orchestrator
	cache        *cache.ResponseCache
	store        *analytics.Store
	log          *interactionlog.Logger
}

// buildApp wires the full pipeline from config. Degraded collaborators
// (an unreachable cache file, a missing interaction log path) downgrade to
// in-memory operation instead of failing startup.
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	client, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	responseCache := cache.New(cache.Config{
		Capacity:    cfg.Cache.Capacity,
		MaxVariants: cfg.Cache.MaxVariants,
		Path:        cfg.Cache.Path,
		Seed:        cfg.Cache.Seed,
	}, logger)

	store, err := analytics.NewStore(cfg.Store.AnalyticsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("analytics store: %w", err)
	}

	interactions, err := interactionlog.New(cfg.Store.InteractionLogPath, logger)
	if err != nil {
		// Interaction logging is log-and-continue end to end; a broken
		// log file must not take the assistant down.
		logger.Warn("interaction log unavailable, continuing without it",
			zap.Error(err))
		interactions = nil
	}

	deps := handlers.Deps{
		LLM:         client,
		Cache:       responseCache,
		Store:       store,
		Logger:      logger,
		MaxVariants: cfg.Cache.MaxVariants,
	}
	if interactions != nil {
		deps.Errors = interactions
	}

	orch, err := assistant.New(
		client,
		responseCache,
		followup.NewResolver(client, responseCache, logger),
		intent.NewClassifier(client, responseCache, logger),
		planner.New(logger),
		handlers.All(deps),
		interactions,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &app{
		cfg:          cfg,
		orchestrator: orch,
		cache:        responseCache,
		store:        store,
		log:          interactions,
	}, nil
}

// close releases the durable resources. Errors are logged, not returned;
// shutdown proceeds regardless.
func (a *app) close(logger *zap.Logger) {
	if err := a.cache.Close(); err != nil {
		logger.Warn("cache close", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("analytics store close", zap.Error(err))
	}
	if a.log != nil {
		if err := a.log.Close(); err != nil {
			logger.Warn("interaction log close", zap.Error(err))
		}
	}
}

// loadConfig reads the config file named by the global flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = (60 * time.Second).String()
	}
	return cfg, nil
}
