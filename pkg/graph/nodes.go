package graph

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/conversia-ai/conversia/pkg/agent"
	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// validateInput ensures the request carries a question, a user and a known
// tenant. Failures end the graph with the generic reply.
func (o *Orchestrator) validateInput(state *models.OrchestratorState) node {
	tenant, known := o.registry.Get(state.CompanyID)
	ok := strings.TrimSpace(state.Question) != "" && state.UserID != "" && known && tenant.CompanyID == state.CompanyID
	state.AddValidation(string(nodeValidateInput), ok, "")
	if !ok {
		slog.Warn("Input validation failed",
			"company_id", state.CompanyID, "user_id", state.UserID, "tenant_known", known)
		state.AgentResponse = GenericErrorReply(o.displayName(state.CompanyID))
		state.AddError("input invalid")
		return nodeEnd
	}
	return nodeClassifyIntent
}

func (o *Orchestrator) classifyIntent(ctx context.Context, state *models.OrchestratorState) node {
	tenant, _ := o.registry.Get(state.CompanyID)
	c := o.router.Classify(ctx, tenant, models.AgentInputs{
		Question:    state.Question,
		ChatHistory: state.ChatHistory,
		UserID:      state.UserID,
		CompanyID:   state.CompanyID,
	})
	state.Intent = c.Intent
	state.Confidence = c.Confidence
	state.IntentKeywords = c.Keywords
	slog.Info("Intent classified",
		"company_id", state.CompanyID, "intent", c.Intent, "confidence", c.Confidence)
	return nodeDetectSecondary
}

// detectSecondaryIntent scans the question against the four keyword families
// in priority order, then routes to the primary specialist. Confidence at or
// below 0.7 always routes to support.
func (o *Orchestrator) detectSecondaryIntent(state *models.OrchestratorState) node {
	tenant, _ := o.registry.Get(state.CompanyID)
	primary := state.Intent

	emergencyHit := containsAny(state.Question, emergencyKeywords(tenant))
	pricingHit := containsAny(state.Question, pricingKeywords(tenant))
	scheduleHit := containsAny(state.Question, scheduleKeywords(tenant))
	supportHit := containsAny(state.Question, problemKeywords)

	switch {
	case emergencyHit && primary != models.IntentEmergency:
		state.SecondaryIntent = models.IntentEmergency
		state.SecondaryConfidence = 0.9
	case (primary == models.IntentSchedule || primary == models.IntentSupport) && pricingHit:
		state.SecondaryIntent = models.IntentSales
		state.SecondaryConfidence = 0.8
	case (primary == models.IntentSales || primary == models.IntentSupport) && scheduleHit:
		state.SecondaryIntent = models.IntentSchedule
		state.SecondaryConfidence = 0.8
	case (primary == models.IntentSales || primary == models.IntentSchedule) && supportHit:
		state.SecondaryIntent = models.IntentSupport
		state.SecondaryConfidence = 0.75
	}

	if state.Confidence <= 0.7 {
		return nodeExecuteSupport
	}
	return executeNodeFor(primary)
}

func (o *Orchestrator) executeAgent(ctx context.Context, state *models.OrchestratorState, intent models.Intent) node {
	adapter := o.adapters[intent]
	state.CurrentAgent = adapter.Name()

	res := adapter.Invoke(ctx, models.AgentInputs{
		Question:    state.Question,
		ChatHistory: state.ChatHistory,
		Context:     state.Context,
		UserID:      state.UserID,
		CompanyID:   state.CompanyID,
	})
	state.Executions = append(state.Executions, models.ExecutionRecord{
		Node:       "execute_" + adapter.Name(),
		Agent:      adapter.Name(),
		Success:    res.Success,
		Duration:   res.ExecutionState.Duration,
		Error:      res.Error,
		StartedAt:  res.ExecutionState.StartedAt,
		FinishedAt: res.ExecutionState.CompletedAt,
	})
	state.Retries += res.ExecutionState.Retries

	if !res.Success {
		state.AddError(res.Error)
		state.ShouldRetry = true
		return nodeValidateOutput
	}

	state.AgentResponse = res.Output
	o.persistAgentSummary(ctx, state, intent)
	return nodeValidateOutput
}

// persistAgentSummary writes the per-agent outcome into the shared context.
// The schedule handler persists its own richer state internally.
func (o *Orchestrator) persistAgentSummary(ctx context.Context, state *models.OrchestratorState, intent models.Intent) {
	now := time.Now()
	if err := o.shared.AddIntentToHistory(ctx, state.CompanyID, state.UserID, string(intent)); err != nil {
		slog.Warn("Failed to record intent history", "user_id", state.UserID, "error", err)
	}

	switch intent {
	case models.IntentSales:
		hasPricing := containsPricingSignal(state.AgentResponse)
		state.SharedContext["sales_info"] = map[string]any{
			"has_pricing": hasPricing,
			"reply_at":    now,
		}
		if err := o.shared.AddService(ctx, state.CompanyID, state.UserID, models.ServiceInfo{
			Service:     state.Question,
			SourceAgent: "sales",
			Timestamp:   now,
		}); err != nil {
			slog.Warn("Failed to record service interest", "user_id", state.UserID, "error", err)
		}
	case models.IntentSupport:
		state.SharedContext["support_info"] = map[string]any{"issue": state.Question}
		if err := o.shared.AddSupport(ctx, state.CompanyID, state.UserID, models.SupportInfo{
			Issue:       state.Question,
			SourceAgent: "support",
			Timestamp:   now,
		}); err != nil {
			slog.Warn("Failed to record support issue", "user_id", state.UserID, "error", err)
		}
	case models.IntentEmergency:
		state.SharedContext["emergency_info"] = map[string]any{"description": state.Question, "escalated": true}
		if err := o.shared.SetEmergency(ctx, state.CompanyID, state.UserID, models.EmergencyInfo{
			Description: state.Question,
			Escalated:   true,
			SourceAgent: "emergency",
			Timestamp:   now,
		}); err != nil {
			slog.Warn("Failed to record emergency", "user_id", state.UserID, "error", err)
		}
	case models.IntentSchedule:
		if sched, ok, err := o.shared.GetSchedule(ctx, state.CompanyID, state.UserID); err == nil && ok {
			state.SharedContext["schedule_info"] = sched
		}
	}
}

// validateOutput checks the reply and applies the routing policies in order:
// handoff loop prevention, pending handoff, applicable tools, cross-agent
// pricing leak, retry, end.
func (o *Orchestrator) validateOutput(ctx context.Context, state *models.OrchestratorState) node {
	replyOK := len(strings.TrimSpace(state.AgentResponse)) >= minReplyLength
	state.AddValidation(string(nodeValidateOutput), replyOK, "")
	if !replyOK {
		state.ShouldRetry = true
	}

	// Policy 1: a completed handoff ends the request.
	if state.HandoffCompleted {
		return nodeEnd
	}

	// Policy 2: pending secondary intent with strong confidence.
	if state.SecondaryIntent != "" && state.SecondaryConfidence > 0.7 {
		return nodeHandleHandoff
	}

	// Policy 3: applicable tools.
	if n, ok := o.applicableTool(ctx, state); ok {
		return n
	}

	// Policy 4: schedule replies carrying pricing signals get flagged.
	if state.CurrentAgent == "schedule" && containsPricingSignal(state.AgentResponse) {
		return nodeValidateCross
	}

	// Policy 5: retry budget. Three prior retries end unconditionally.
	if state.ShouldRetry && state.Retries < 3 {
		return nodeHandleRetry
	}

	return nodeEnd
}

// applicableTool implements routing policy 3.
func (o *Orchestrator) applicableTool(ctx context.Context, state *models.OrchestratorState) (node, bool) {
	if state.ShouldRetry {
		return "", false
	}

	if state.CurrentAgent == "schedule" {
		sched, ok, err := o.shared.GetSchedule(ctx, state.CompanyID, state.UserID)
		if err == nil && ok {
			switch {
			case sched.Status == agent.ScheduleStatusConfirmed && !state.Executed(string(nodeExecuteBooking)):
				return nodeExecuteBooking, true
			case sched.Status == agent.ScheduleStatusCollecting &&
				sched.Date != "" && sched.Treatment != "" &&
				len(sched.AvailableSlots) == 0 &&
				!state.Executed(string(nodeCheckAvailability)) &&
				!agent.IsPriceQuery(state.Question):
				return nodeCheckAvailability, true
			case sched.Status == agent.ScheduleStatusBooked && !state.Executed(string(nodeSendNotification)):
				return nodeSendNotification, true
			}
		}
	}

	if state.CurrentAgent == "support" &&
		containsAny(state.Question, problemKeywords) &&
		!state.Executed(string(nodeCreateTicket)) {
		return nodeCreateTicket, true
	}
	return "", false
}

// validateCrossAgentInfo warns when a reply carries signals of an information
// family the current agent does not own. Non-blocking.
func (o *Orchestrator) validateCrossAgentInfo(state *models.OrchestratorState) node {
	reply := state.AgentResponse
	var warnings []string
	if state.CurrentAgent != "sales" && containsPricingSignal(reply) {
		warnings = append(warnings, "reply from "+state.CurrentAgent+" contains pricing signals")
	}
	if state.CurrentAgent != "schedule" && containsAny(reply, schedulingWords) {
		warnings = append(warnings, "reply from "+state.CurrentAgent+" contains scheduling signals")
	}
	if state.CurrentAgent != "emergency" && containsAny(reply, emergencyWords) {
		warnings = append(warnings, "reply from "+state.CurrentAgent+" contains emergency signals")
	}
	if len(warnings) == 0 {
		state.AddValidation(string(nodeValidateCross), true, "")
	}
	for _, w := range warnings {
		state.AddValidation(string(nodeValidateCross), true, w)
		slog.Warn("Cross-agent information signal",
			"company_id", state.CompanyID, "agent", state.CurrentAgent, "warning", w)
	}
	return nodeEnd
}

// handleAgentHandoff performs the at-most-once handoff to the secondary
// specialist. HandoffCompleted is set on every exit path.
func (o *Orchestrator) handleAgentHandoff(ctx context.Context, state *models.OrchestratorState) node {
	defer func() { state.HandoffCompleted = true }()

	to := state.SecondaryIntent
	if to == "" || string(to) == state.CurrentAgent || state.SecondaryConfidence <= 0.7 {
		return nodeEnd
	}

	state.HandoffRequested = true
	state.HandoffFrom = state.CurrentAgent
	state.HandoffTo = string(to)
	state.HandoffReason = "secondary intent detected"
	state.SharedContext["handoff_context"] = state.AgentResponse

	if err := o.shared.AddHandoff(ctx, state.CompanyID, state.UserID, models.HandoffInfo{
		FromAgent:   state.HandoffFrom,
		ToAgent:     state.HandoffTo,
		Reason:      state.HandoffReason,
		Context:     state.AgentResponse,
		SourceAgent: state.HandoffFrom,
		Timestamp:   time.Now(),
	}); err != nil {
		slog.Warn("Failed to record handoff", "user_id", state.UserID, "error", err)
	}

	slog.Info("Agent handoff",
		"company_id", state.CompanyID, "from", state.HandoffFrom, "to", state.HandoffTo)
	return executeNodeFor(to)
}

// handleRetry escalates a failing request. The first two retries re-run the
// current specialist, the escalation runs support once, and retries beyond
// three end unconditionally.
func (o *Orchestrator) handleRetry(state *models.OrchestratorState) node {
	state.Retries++
	state.ShouldRetry = false

	if state.Retries >= 2 || strings.TrimSpace(state.AgentResponse) == "" {
		if state.ShouldEscalate || state.Retries > 3 {
			// Already escalated once, or out of budget entirely.
			return nodeEnd
		}
		state.ShouldEscalate = true
		slog.Info("Escalating to support", "company_id", state.CompanyID, "retries", state.Retries)
		return nodeExecuteSupport
	}
	return executeNodeFor(models.Intent(state.CurrentAgent))
}

func emergencyKeywords(t *config.TenantConfig) []string {
	if len(t.Keywords.Emergency) > 0 {
		return t.Keywords.Emergency
	}
	return emergencyWords
}

func pricingKeywords(t *config.TenantConfig) []string {
	if len(t.Keywords.Sales) > 0 {
		return t.Keywords.Sales
	}
	return pricingWords
}

func scheduleKeywords(t *config.TenantConfig) []string {
	if len(t.Keywords.Schedule) > 0 {
		return t.Keywords.Schedule
	}
	return schedulingWords
}

// Built-in keyword families used when a tenant configures none, and for the
// cross-agent signal scan.
var (
	pricingWords    = []string{"precio", "costo", "cuánto cuesta", "cuanto cuesta", "valor", "$", "cop"}
	schedulingWords = []string{"agendar", "cita", "reservar", "horario", "disponibilidad", "cuándo hay", "cuando hay"}
	emergencyWords  = []string{"emergencia", "urgente", "dolor intenso", "sangrado", "reacción", "reaccion"}
	problemKeywords = []string{"problema", "queja", "reclamo", "no funciona", "falla", "error", "mal servicio"}
)

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// containsPricingSignal detects currency symbols or amounts in a reply.
func containsPricingSignal(reply string) bool {
	return strings.Contains(reply, "$") || strings.Contains(reply, "COP") || strings.Contains(reply, "€")
}
