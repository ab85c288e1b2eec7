// Package api exposes the HTTP surface: the platform webhook, the admin API
// for tenants, documents and prompts, health and metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conversia-ai/conversia/pkg/audit"
	"github.com/conversia-ai/conversia/pkg/chatwoot"
	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/graph"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/memory"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/rag"
	"github.com/conversia-ai/conversia/pkg/session"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
)

// Server wires the HTTP handlers to the orchestration stack.
type Server struct {
	cfg          *config.Config
	orchestrator *graph.Orchestrator
	memory       memory.Store
	shared       sharedstate.Store
	guard        session.Guard
	platform     *chatwoot.Client
	media        llm.MediaClient
	index        *rag.Index
	prompts      *prompt.Resolver
	promptStore  *prompt.MemoryStore
	audit        audit.Store

	httpServer *http.Server
}

// Options collects the server's collaborators. Platform, media, index and
// audit are optional; the matching endpoints degrade when absent.
type Options struct {
	Config       *config.Config
	Orchestrator *graph.Orchestrator
	Memory       memory.Store
	Shared       sharedstate.Store
	Guard        session.Guard
	Platform     *chatwoot.Client
	Media        llm.MediaClient
	Index        *rag.Index
	Prompts      *prompt.Resolver
	PromptStore  *prompt.MemoryStore
	Audit        audit.Store
}

// NewServer creates the HTTP server. Panics when a required collaborator is
// missing.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		panic("api.NewServer: config must not be nil")
	}
	if opts.Orchestrator == nil {
		panic("api.NewServer: orchestrator must not be nil")
	}
	if opts.Memory == nil {
		panic("api.NewServer: memory store must not be nil")
	}
	if opts.Shared == nil {
		panic("api.NewServer: shared state store must not be nil")
	}
	if opts.Prompts == nil {
		panic("api.NewServer: prompt resolver must not be nil")
	}
	return &Server{
		cfg:          opts.Config,
		orchestrator: opts.Orchestrator,
		memory:       opts.Memory,
		shared:       opts.Shared,
		guard:        opts.Guard,
		platform:     opts.Platform,
		media:        opts.Media,
		index:        opts.Index,
		prompts:      opts.Prompts,
		promptStore:  opts.PromptStore,
		audit:        opts.Audit,
	}
}

// Routes builds the gin engine with all endpoints registered.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/webhook/chatwoot", s.handleWebhook)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/api/v1")
	{
		admin.GET("/tenants", s.handleListTenants)
		admin.POST("/tenants/reload", s.handleReloadTenants)
		admin.GET("/tenants/:company_id/stats", s.handleTenantStats)

		admin.POST("/tenants/:company_id/documents", s.handleAddDocument)
		admin.DELETE("/tenants/:company_id/documents/:doc_id", s.handleDeleteDocument)

		admin.GET("/tenants/:company_id/prompts", s.handleGetPrompts)
		admin.PUT("/tenants/:company_id/prompts/:agent_key", s.handleSetPrompt)
		admin.DELETE("/tenants/:company_id/prompts/:agent_key", s.handleDeletePrompt)

		admin.GET("/agents/stats", s.handleAgentStats)
		admin.GET("/users/:user_id/audit", s.handleUserAudit)
	}
	return r
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// requestLogger logs each request with latency, replacing gin's default
// writer-based logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}
