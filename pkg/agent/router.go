package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
)

// Router classifies incoming questions into one of the four intents. It is
// stateless; the tenant's keyword sets are injected into the prompt.
type Router struct {
	llm     llm.Client
	prompts *prompt.Resolver
}

// NewRouter creates a Router. Panics if client or resolver is nil.
func NewRouter(client llm.Client, resolver *prompt.Resolver) *Router {
	if client == nil {
		panic("agent.NewRouter: llm client must not be nil")
	}
	if resolver == nil {
		panic("agent.NewRouter: prompt resolver must not be nil")
	}
	return &Router{llm: client, prompts: resolver}
}

// Classify runs the router prompt and parses the JSON classification.
// A parse failure degrades to support with confidence 0.3.
func (r *Router) Classify(ctx context.Context, tenant *config.TenantConfig, inputs models.AgentInputs) models.Classification {
	tmpl := r.prompts.Resolve(tenant.CompanyID, prompt.KeyRouter)
	system := prompt.Render(tmpl.Body, prompt.Vars{
		Question:    inputs.Question,
		ChatHistory: FormatHistory(inputs.ChatHistory),
		CompanyName: tenant.DisplayName,
		Services:    strings.Join(tenant.Services, ", "),
	})
	system += keywordHints(tenant)

	raw, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   inputs.Question,
		Params:       tenant.ModelParams,
	})
	if err != nil {
		slog.Warn("Router completion failed, defaulting to support",
			"company_id", tenant.CompanyID, "error", err)
		return fallbackClassification("completion error")
	}

	c, err := ParseClassification(raw)
	if err != nil {
		slog.Warn("Router returned unparseable classification, defaulting to support",
			"company_id", tenant.CompanyID, "error", err)
		return fallbackClassification("parse error")
	}
	return c
}

func fallbackClassification(reason string) models.Classification {
	return models.Classification{
		Intent:     models.IntentSupport,
		Confidence: 0.3,
		Reasoning:  reason,
	}
}

// keywordHints enumerates the tenant's keyword sets for the router prompt.
func keywordHints(t *config.TenantConfig) string {
	var b strings.Builder
	if len(t.Keywords.Emergency) > 0 {
		fmt.Fprintf(&b, "\nPalabras clave EMERGENCY: %s", strings.Join(t.Keywords.Emergency, ", "))
	}
	if len(t.Keywords.Sales) > 0 {
		fmt.Fprintf(&b, "\nPalabras clave SALES: %s", strings.Join(t.Keywords.Sales, ", "))
	}
	if len(t.Keywords.Schedule) > 0 {
		fmt.Fprintf(&b, "\nPalabras clave SCHEDULE: %s", strings.Join(t.Keywords.Schedule, ", "))
	}
	return b.String()
}

// ParseClassification extracts the JSON object from a router reply. Models
// sometimes wrap the JSON in code fences or prose, so parsing is tolerant of
// surrounding text.
func ParseClassification(raw string) (models.Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return models.Classification{}, fmt.Errorf("no JSON object in router reply")
	}

	var parsed struct {
		Intent     string   `json:"intent"`
		Confidence float64  `json:"confidence"`
		Keywords   []string `json:"keywords"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return models.Classification{}, fmt.Errorf("invalid classification JSON: %w", err)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return models.Classification{}, fmt.Errorf("confidence %v out of range", parsed.Confidence)
	}

	return models.Classification{
		Intent:     models.NormalizeIntent(parsed.Intent),
		Confidence: parsed.Confidence,
		Keywords:   parsed.Keywords,
		Reasoning:  parsed.Reasoning,
	}, nil
}

// FormatHistory renders a message window for prompt embedding.
func FormatHistory(history []models.Message) string {
	if len(history) == 0 {
		return "(sin historial)"
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
