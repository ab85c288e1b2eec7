package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/rag"
)

// handleListTenants returns the registered tenant IDs.
func (s *Server) handleListTenants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tenants": s.cfg.TenantRegistry.IDs(),
		"version": s.cfg.TenantRegistry.Version(),
	})
}

// handleReloadTenants re-reads the tenant configuration from disk and swaps
// the registry snapshot.
func (s *Server) handleReloadTenants(c *gin.Context) {
	if err := s.cfg.Reload(); err != nil {
		slog.Error("Tenant reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("Tenant configuration reloaded", "tenants", s.cfg.TenantRegistry.Len())
	c.JSON(http.StatusOK, gin.H{
		"status":  "reloaded",
		"tenants": s.cfg.TenantRegistry.Len(),
		"version": s.cfg.TenantRegistry.Version(),
	})
}

// handleTenantStats reports memory, shared state and index statistics for a
// tenant.
func (s *Server) handleTenantStats(c *gin.Context) {
	companyID := c.Param("company_id")
	tenant, ok := s.cfg.TenantRegistry.Get(companyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown company: " + companyID})
		return
	}

	out := gin.H{"company_id": companyID, "display_name": tenant.DisplayName}
	if mem, err := s.memory.Stats(c.Request.Context(), companyID); err == nil {
		out["memory"] = mem
	}
	if shared, err := s.shared.Stats(c.Request.Context(), companyID); err == nil {
		out["shared_state"] = shared
	}
	if s.index != nil {
		if n, err := s.index.Count(tenant); err == nil {
			out["documents"] = n
		}
	}
	c.JSON(http.StatusOK, out)
}

type addDocumentRequest struct {
	ID       string            `json:"id"`
	Content  string            `json:"content" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

// handleAddDocument indexes a document into the tenant's collection.
func (s *Server) handleAddDocument(c *gin.Context) {
	if s.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector index not configured"})
		return
	}
	companyID := c.Param("company_id")
	tenant, ok := s.cfg.TenantRegistry.Get(companyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown company: " + companyID})
		return
	}

	var req addDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	doc := rag.Document{ID: req.ID, Content: req.Content, Metadata: req.Metadata}
	if err := s.index.Add(c.Request.Context(), tenant, doc); err != nil {
		slog.Error("Document indexing failed", "company_id", companyID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

// handleDeleteDocument removes a document from the tenant's collection.
func (s *Server) handleDeleteDocument(c *gin.Context) {
	if s.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector index not configured"})
		return
	}
	companyID := c.Param("company_id")
	tenant, ok := s.cfg.TenantRegistry.Get(companyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown company: " + companyID})
		return
	}
	if err := s.index.Delete(c.Request.Context(), tenant, c.Param("doc_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// handleGetPrompts returns the stored prompts of a tenant plus the resolved
// template per agent key.
func (s *Server) handleGetPrompts(c *gin.Context) {
	companyID := c.Param("company_id")
	if _, ok := s.cfg.TenantRegistry.Get(companyID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown company: " + companyID})
		return
	}

	resolved := make(map[string]prompt.Template)
	for _, key := range []string{prompt.KeyRouter, prompt.KeySales, prompt.KeySupport, prompt.KeyEmergency, prompt.KeySchedule} {
		resolved[key] = s.prompts.Resolve(companyID, key)
	}

	out := gin.H{"resolved": resolved}
	if s.promptStore != nil {
		if stored, err := s.promptStore.GetCompanyPrompts(companyID); err == nil {
			out["stored"] = stored
		}
	}
	c.JSON(http.StatusOK, out)
}

type setPromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Custom bool   `json:"custom"`
}

// handleSetPrompt stores a tenant prompt and bumps the resolver version.
func (s *Server) handleSetPrompt(c *gin.Context) {
	if s.promptStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prompt store not configured"})
		return
	}
	companyID := c.Param("company_id")
	if _, ok := s.cfg.TenantRegistry.Get(companyID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown company: " + companyID})
		return
	}

	var req setPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored := s.promptStore.SetPrompt(companyID, c.Param("agent_key"), req.Prompt, req.Custom)
	s.prompts.Bump()
	c.JSON(http.StatusOK, stored)
}

// handleDeletePrompt removes a tenant prompt, falling back to the hardcoded
// template on the next request.
func (s *Server) handleDeletePrompt(c *gin.Context) {
	if s.promptStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prompt store not configured"})
		return
	}
	s.promptStore.DeletePrompt(c.Param("company_id"), c.Param("agent_key"))
	s.prompts.Bump()
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// handleAgentStats snapshots the adapter execution counters.
func (s *Server) handleAgentStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.AdapterStats())
}

// handleUserAudit lists the audit trail of a user, newest first.
func (s *Server) handleUserAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit store not configured"})
		return
	}
	entries, err := s.audit.ListByUser(c.Request.Context(), c.Param("user_id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
