// Conversia is a multi-tenant conversational routing and orchestration
// server for appointment-driven businesses: webhook ingress, intent
// classification, specialist agents, tool sagas and platform replies.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/conversia-ai/conversia/pkg/agent"
	"github.com/conversia-ai/conversia/pkg/api"
	"github.com/conversia-ai/conversia/pkg/audit"
	"github.com/conversia-ai/conversia/pkg/chatwoot"
	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/graph"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/memory"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/rag"
	"github.com/conversia-ai/conversia/pkg/saga"
	"github.com/conversia-ai/conversia/pkg/session"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
	"github.com/conversia-ai/conversia/pkg/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	// 1. Configuration and tenant registry.
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "tenants", cfg.Stats().Tenants)

	// 2. Redis. Startup proceeds without it; the stores degrade to memory.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	redisUp := rdb.Ping(pingCtx).Err() == nil
	cancelPing()
	if !redisUp {
		slog.Warn("Redis unreachable, using in-memory stores", "addr", cfg.Redis.Addr)
	}

	var memStore memory.Store
	var guard session.Guard
	if redisUp {
		memStore = memory.NewRedisStore(rdb, cfg.TenantRegistry, cfg.Defaults)
		guard = session.NewRedisGuard(rdb, cfg.TenantRegistry, cfg.Defaults)
	} else {
		memStore = memory.NewInMemoryStore(cfg.TenantRegistry, cfg.Defaults)
		guard = session.NewInMemoryGuard(cfg.TenantRegistry, cfg.Defaults)
	}
	sharedStore := sharedstate.NewStore(rdb, cfg.TenantRegistry, cfg.Defaults)

	// 3. Audit backend: Postgres when configured, structured log otherwise.
	var auditStore audit.Store
	auditCfg, enabled, err := audit.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Invalid audit database configuration", "error", err)
		os.Exit(1)
	}
	if enabled {
		pg, err := audit.NewPostgresStore(ctx, auditCfg)
		if err != nil {
			slog.Error("Failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		auditStore = pg
		slog.Info("Audit database connected", "host", auditCfg.Host)
	} else {
		auditStore = audit.NewLogStore(0)
		slog.Info("No audit database configured, using log store")
	}

	// 4. LLM and vector index.
	llmClient, err := llm.NewOpenAIClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	index, err := rag.NewIndex(cfg.Index, cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize vector index", "error", err)
		os.Exit(1)
	}

	// 5. Prompts, tools, agents, graph.
	promptStore := prompt.NewMemoryStore()
	resolver := prompt.NewResolver(promptStore)
	executor := tools.NewExecutor(cfg.TenantRegistry, cfg.Defaults)
	sagas := saga.NewCoordinator(auditStore)

	deps := agent.Deps{
		LLM:       llmClient,
		Retriever: index,
		Prompts:   resolver,
		Registry:  cfg.TenantRegistry,
	}
	llmTimeout := cfg.Defaults.LLMTimeout
	orchestrator := graph.NewOrchestrator(graph.Options{
		Registry:  cfg.TenantRegistry,
		Router:    agent.NewRouter(llmClient, resolver),
		Sales:     agent.NewAdapter(agent.NewSalesHandler(deps), "sales", llmTimeout, 2),
		Support:   agent.NewAdapter(agent.NewSupportHandler(deps), "support", llmTimeout, 2),
		Emergency: agent.NewAdapter(agent.NewEmergencyHandler(deps), "emergency", llmTimeout, 2),
		Schedule: agent.NewAdapter(
			agent.NewScheduleHandler(deps, sharedStore, tools.NewProbe(executor)),
			"schedule", cfg.Defaults.BookingTimeout, 2),
		Shared:  sharedStore,
		Tools:   executor,
		Sagas:   sagas,
		Prompts: resolver,
	})

	// 6. Platform client.
	var platform *chatwoot.Client
	if cfg.Server.ChatwootBaseURL != "" {
		platform = chatwoot.NewClient(cfg.Server.ChatwootBaseURL, os.Getenv(cfg.Server.ChatwootTokenEnv))
	} else {
		slog.Warn("No platform base URL configured, replies will not be delivered")
	}

	server := api.NewServer(api.Options{
		Config:       cfg,
		Orchestrator: orchestrator,
		Memory:       memStore,
		Shared:       sharedStore,
		Guard:        guard,
		Platform:     platform,
		Media:        llmClient,
		Index:        index,
		Prompts:      resolver,
		PromptStore:  promptStore,
		Audit:        auditStore,
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting Conversia", "port", cfg.Server.Port)
	if err := server.Start(runCtx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
