package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vantari/taskweave/internal/api"
	"github.com/vantari/taskweave/internal/capability"
	"github.com/vantari/taskweave/internal/config"
	"github.com/vantari/taskweave/internal/dedupe"
	"github.com/vantari/taskweave/internal/gateway"
	"github.com/vantari/taskweave/internal/history"
	"github.com/vantari/taskweave/internal/orchestrator"
	"github.com/vantari/taskweave/internal/provider"
	msgrouter "github.com/vantari/taskweave/internal/router"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Taskweave...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/taskweave.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	provRouter := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			provRouter.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			provRouter.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	for role, id := range cfg.Bindings {
		provRouter.Bind(role, id)
	}
	for role, chain := range cfg.Fallbacks {
		provRouter.SetFallbacks(role, chain)
	}

	// Initialize PostgreSQL thread history
	var store *history.Store
	if cfg.Database.Postgres.DSN != "" {
		hs, pgErr := history.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without thread history", zap.Error(pgErr))
		} else {
			if mErr := hs.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = hs
		}
	}

	// Initialize Redis event deduplication
	var deduper *dedupe.Deduper
	if cfg.Database.Redis.URL != "" {
		dd, rdErr := dedupe.New(cfg.Database.Redis.URL, 10*time.Minute, logger)
		if rdErr != nil {
			logger.Warn("Redis unavailable, running without event dedup", zap.Error(rdErr))
		} else {
			deduper = dd
		}
	}

	// Initialize capability registry and invoker
	registry := capability.NewRegistry(logger)
	registry.Register(capability.NewTextGeneration(provRouter, cfg.Capability, logger))
	registry.Register(capability.NewImageGeneration(provRouter, cfg.Capability, logger))
	registry.Register(capability.NewImageAnalysis(provRouter, cfg.Capability, logger))
	registry.Register(capability.NewSummarization(provRouter, cfg.Capability, logger))

	policy := capability.DefaultRetryPolicy()
	if cfg.Capability.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.Capability.RetryMaxAttempts
	}
	if cfg.Capability.RetryBaseDelayMS > 0 {
		policy.BaseDelay = time.Duration(cfg.Capability.RetryBaseDelayMS) * time.Millisecond
	}
	if cfg.Capability.RetryMaxDelayMS > 0 {
		policy.MaxDelay = time.Duration(cfg.Capability.RetryMaxDelayMS) * time.Millisecond
	}
	invoker := capability.NewInvoker(registry, policy, cfg.Capability.CallTimeout(), logger)

	// Initialize orchestrator
	planner := orchestrator.NewPlanner(provRouter, cfg.Orchestrator, logger)
	scheduler := orchestrator.NewScheduler(invoker, logger)
	aggregator := orchestrator.NewAggregator(provRouter, cfg.Orchestrator, logger)
	orch := orchestrator.New(planner, scheduler, aggregator, cfg.Orchestrator, logger)

	// Initialize gateway
	gw := gateway.NewGateway(logger)

	// Wire message router BEFORE registering adapters (Register captures handler)
	msgRouter := msgrouter.New(orch, gw, store, deduper, cfg.Orchestrator.HistoryLimit, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger)
		gw.Register(slackAdapter)
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		gw.Register(discordAdapter)
	}

	gwCtx, gwCancel := context.WithCancel(context.Background())
	defer gwCancel()
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(provRouter, registry, restAdapter, gw, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Taskweave listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Taskweave...")
	srv.Shutdown(context.Background())
	gwCancel()
	gw.Close()
	if deduper != nil {
		deduper.Close()
	}
	if store != nil {
		store.Close()
	}
}
