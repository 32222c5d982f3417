package main

import (
	"os"

	"github.com/quillway/quillway/internal/app"
	"github.com/quillway/quillway/internal/batch"
	"github.com/quillway/quillway/internal/config"
	"github.com/quillway/quillway/internal/humanize"
	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/provider/anthropic"
	"github.com/quillway/quillway/internal/provider/gemini"
	"github.com/quillway/quillway/internal/provider/openrouter"
	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/storage/sqlite"
	"github.com/quillway/quillway/internal/transport/http/handler"
	"github.com/quillway/quillway/internal/transport/http/middleware/auth"
	"github.com/quillway/quillway/internal/usage"
)

func main() {
	logger := setupLogger()

	if err := config.EnsureDataDir(); err != nil {
		logger.Error("data directory setup failed", "error", err)
		os.Exit(1)
	}
	if err := config.EnsureConfigFile(); err != nil {
		logger.Warn("config file setup failed", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(config.DBPath())
	if err != nil {
		logger.Error("storage open failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// quillway create-account <name> [plan]
	if len(os.Args) > 1 && os.Args[1] == "create-account" {
		if len(os.Args) < 3 {
			logger.Error("usage: quillway create-account <name> [trial|basic|premium]")
			os.Exit(1)
		}
		plan := storage.PlanTrial
		if len(os.Args) > 3 {
			plan = storage.Plan(os.Args[3])
		}
		if err := createAccount(store, os.Args[2], plan); err != nil {
			logger.Error("account creation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Upstream providers, in failover preference order.
	var providers []provider.Provider
	if creds, ok := cfg.Providers["anthropic"]; ok {
		providers = append(providers, anthropic.New(creds.APIKey, logger))
	}
	if creds, ok := cfg.Providers["openrouter"]; ok {
		providers = append(providers, openrouter.New(creds.APIKey, logger))
	}
	if creds, ok := cfg.Providers["gemini"]; ok {
		providers = append(providers, gemini.New(creds.APIKey, logger))
	}

	orchestrator := provider.NewOrchestrator(providers, cfg.MaxAttempts, logger)
	ledger := usage.NewLedger(store)
	humanizer := humanize.New(orchestrator, cfg.HumanizerChunkChars, logger)

	var reconciler *batch.Reconciler
	if creds, ok := cfg.Providers["anthropic"]; ok {
		batchClient := batch.NewAnthropicClient(creds.APIKey, logger)
		reconciler = batch.NewReconciler(batchClient, store, cfg.BatchZeroResultDelay, logger)
	} else {
		logger.Warn("batch API disabled: requires an Anthropic key")
	}

	cache, err := auth.NewCache()
	if err != nil {
		logger.Error("auth cache setup failed", "error", err)
		os.Exit(1)
	}

	repo := handler.NewRepo(logger, cfg, orchestrator, humanizer, reconciler, ledger, store)
	router := app.NewRouter(repo, &app.RouterOptions{
		Logger:      logger,
		Storage:     store,
		APIKeyCache: cache,
	})

	printStartupBanner(cfg)

	server := app.NewServer(cfg, router, logger)
	if err := server.Start(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
