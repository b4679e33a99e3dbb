package main

import (
	"fmt"

	"autovid-pipeline/01_idea"
	"autovid-pipeline/02_script"
	"autovid-pipeline/03_media"
	"autovid-pipeline/04_render"
	"autovid-pipeline/05_distribute"
	"autovid-pipeline/config"
	"autovid-pipeline/health"
	"autovid-pipeline/history"
	"autovid-pipeline/llm"
	"autovid-pipeline/logging"
	"autovid-pipeline/pipeline"
	"autovid-pipeline/trends"
)

// app holds everything a command needs, built once from config
type app struct {
	cfg          *config.Config
	llm          *llm.Client
	history      *history.Store
	health       *health.Manager
	orchestrator *pipeline.Orchestrator
}

func build(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.WithComponent("main")

	gemini := llm.New(cfg.LLM)

	// Step 1: trend source for niche suggestions
	var titles idea.TitleSource
	if cfg.Trends.Enabled {
		lister, err := trends.NewRedditLister()
		if err != nil {
			logger.Warn().Err(err).Msg("trend source disabled")
		} else {
			titles = trends.New(cfg.Trends, lister)
		}
	}

	// Step 2: provider clients
	pexels := media.NewPexels(cfg.Media)
	voice := media.NewElevenLabs(cfg.Media)
	shotstack := render.NewShotstack(cfg.Render)

	// Step 3: run history
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	// Step 4: stages and orchestrator
	stages := pipeline.Stages{
		Idea:       idea.New(cfg, gemini, titles),
		Script:     script.New(cfg, gemini),
		Media:      media.New(cfg, pexels, voice),
		Render:     render.New(cfg, shotstack),
		Distribute: distribute.New(cfg, distribute.NewAuthorizer(cfg.Distribution)),
	}

	// Step 5: dependency checks
	checks := health.NewManager(cfg.DevMode)
	checks.RegisterChecker(health.NewGeminiChecker(gemini, cfg.LLM.APIKey))
	checks.RegisterChecker(health.NewProviderChecker("pexels", "PEXELS_API_KEY", cfg.Media.PexelsAPIKey, pexels.Ping))
	checks.RegisterChecker(health.NewProviderChecker("elevenlabs", "ELEVENLABS_API_KEY", cfg.Media.ElevenLabsAPIKey, voice.Ping))
	checks.RegisterChecker(health.NewProviderChecker("shotstack", "SHOTSTACK_API_KEY", cfg.Render.APIKey, shotstack.Ping).WithStage(cfg.Render.Stage))

	return &app{
		cfg:          cfg,
		llm:          gemini,
		history:      store,
		health:       checks,
		orchestrator: pipeline.New(cfg, stages, store),
	}, nil
}

// Close releases the history database
func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		logger := logging.WithComponent("main")
		logger.Warn().Err(err).Msg("close run history")
	}
}
