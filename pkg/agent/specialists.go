package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/rag"
)

const retrievalTopK = 4

// Deps bundles what every specialist handler needs.
type Deps struct {
	LLM       llm.Client
	Retriever rag.Retriever
	Prompts   *prompt.Resolver
	Registry  *config.TenantRegistry
}

func (d Deps) validate(name string) {
	if d.LLM == nil {
		panic(name + ": llm client must not be nil")
	}
	if d.Prompts == nil {
		panic(name + ": prompt resolver must not be nil")
	}
	if d.Registry == nil {
		panic(name + ": tenant registry must not be nil")
	}
}

func (d Deps) tenant(companyID string) (*config.TenantConfig, error) {
	t, ok := d.Registry.Get(companyID)
	if !ok {
		return nil, fmt.Errorf("unknown tenant: %s", companyID)
	}
	return t, nil
}

// retrieve runs a tenant-filtered vector search and joins page contents.
// Retrieval failures degrade to an empty context.
func (d Deps) retrieve(ctx context.Context, tenant *config.TenantConfig, query string, filter map[string]string) string {
	if d.Retriever == nil {
		return ""
	}
	docs, err := d.Retriever.Search(ctx, tenant, query, retrievalTopK, filter)
	if err != nil {
		slog.Warn("Retrieval failed, continuing without context",
			"company_id", tenant.CompanyID, "error", err)
		return ""
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (d Deps) complete(ctx context.Context, tenant *config.TenantConfig, agentKey string, inputs models.AgentInputs, context string) (string, error) {
	tmpl := d.Prompts.Resolve(tenant.CompanyID, agentKey)
	system := prompt.Render(tmpl.Body, prompt.Vars{
		Question:    inputs.Question,
		ChatHistory: FormatHistory(inputs.ChatHistory),
		Context:     context,
		CompanyName: tenant.DisplayName,
		Services:    strings.Join(tenant.Services, ", "),
	})
	return d.LLM.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   inputs.Question,
		History:      inputs.ChatHistory,
		Params:       tenant.ModelParams,
	})
}

// SalesHandler answers commercial questions grounded on retrieved documents
// and always closes with the tenant's scheduling call to action.
type SalesHandler struct {
	deps Deps
}

// NewSalesHandler creates the sales specialist.
func NewSalesHandler(deps Deps) *SalesHandler {
	deps.validate("agent.NewSalesHandler")
	return &SalesHandler{deps: deps}
}

// SalesCTA is the closing line every sales reply must end with.
func SalesCTA(displayName string) string {
	return fmt.Sprintf("¿Te gustaría agendar tu cita en %s?", displayName)
}

// Invoke runs retrieval and the sales prompt.
func (h *SalesHandler) Invoke(ctx context.Context, inputs models.AgentInputs) (string, error) {
	tenant, err := h.deps.tenant(inputs.CompanyID)
	if err != nil {
		return "", err
	}

	docContext := h.deps.retrieve(ctx, tenant, inputs.Question, nil)
	if inputs.Context != "" {
		docContext = strings.TrimSpace(inputs.Context + "\n\n" + docContext)
	}

	reply, err := h.deps.complete(ctx, tenant, prompt.KeySales, inputs, docContext)
	if err != nil {
		return "", fmt.Errorf("sales completion failed: %w", err)
	}

	cta := SalesCTA(tenant.DisplayName)
	reply = strings.TrimSpace(reply)
	if !strings.HasSuffix(reply, cta) {
		reply = strings.TrimRight(reply, " ") + " " + cta
	}
	return reply, nil
}

// SupportHandler answers general questions, optionally filtered to support
// documents.
type SupportHandler struct {
	deps Deps
}

// NewSupportHandler creates the support specialist.
func NewSupportHandler(deps Deps) *SupportHandler {
	deps.validate("agent.NewSupportHandler")
	return &SupportHandler{deps: deps}
}

// Invoke runs retrieval with a support document filter and the support prompt.
func (h *SupportHandler) Invoke(ctx context.Context, inputs models.AgentInputs) (string, error) {
	tenant, err := h.deps.tenant(inputs.CompanyID)
	if err != nil {
		return "", err
	}

	docContext := h.deps.retrieve(ctx, tenant, inputs.Question, map[string]string{"document_type": "support"})
	if docContext == "" {
		// Fall back to the unfiltered corpus when no support docs exist.
		docContext = h.deps.retrieve(ctx, tenant, inputs.Question, nil)
	}
	if inputs.Context != "" {
		docContext = strings.TrimSpace(inputs.Context + "\n\n" + docContext)
	}

	reply, err := h.deps.complete(ctx, tenant, prompt.KeySupport, inputs, docContext)
	if err != nil {
		return "", fmt.Errorf("support completion failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// EmergencyHandler handles urgent cases and always closes with the fixed
// escalation line.
type EmergencyHandler struct {
	deps Deps
}

// NewEmergencyHandler creates the emergency specialist.
func NewEmergencyHandler(deps Deps) *EmergencyHandler {
	deps.validate("agent.NewEmergencyHandler")
	return &EmergencyHandler{deps: deps}
}

// EmergencyEscalationLine is the fixed closing line of every emergency reply.
func EmergencyEscalationLine(displayName string) string {
	return fmt.Sprintf("Escalando tu caso de emergencia en %s ahora mismo. 🚨", displayName)
}

// Invoke biases retrieval with the tenant's emergency keywords, then runs the
// emergency prompt.
func (h *EmergencyHandler) Invoke(ctx context.Context, inputs models.AgentInputs) (string, error) {
	tenant, err := h.deps.tenant(inputs.CompanyID)
	if err != nil {
		return "", err
	}

	query := inputs.Question
	if len(tenant.Keywords.Emergency) > 0 {
		query += " " + strings.Join(tenant.Keywords.Emergency, " ")
	}
	docContext := h.deps.retrieve(ctx, tenant, query, nil)
	if inputs.Context != "" {
		docContext = strings.TrimSpace(inputs.Context + "\n\n" + docContext)
	}

	reply, err := h.deps.complete(ctx, tenant, prompt.KeyEmergency, inputs, docContext)
	if err != nil {
		return "", fmt.Errorf("emergency completion failed: %w", err)
	}

	line := EmergencyEscalationLine(tenant.DisplayName)
	reply = strings.TrimSpace(reply)
	if !strings.HasSuffix(reply, line) {
		reply = strings.TrimRight(reply, " ") + " " + line
	}
	return reply, nil
}
