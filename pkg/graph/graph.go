// Package graph is the orchestration layer: a directed graph of nodes that
// classifies an incoming question, runs the matching specialist, validates
// the reply, and routes through handoffs, retries and tool calls until a
// final reply is produced. No error escapes Run; every request yields a
// reply.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conversia-ai/conversia/pkg/agent"
	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/metrics"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/saga"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
	"github.com/conversia-ai/conversia/pkg/tools"
)

// node identifies one graph node.
type node string

const (
	nodeValidateInput     node = "validate_input"
	nodeClassifyIntent    node = "classify_intent"
	nodeDetectSecondary   node = "detect_secondary_intent"
	nodeExecuteSales      node = "execute_sales"
	nodeExecuteSupport    node = "execute_support"
	nodeExecuteEmergency  node = "execute_emergency"
	nodeExecuteSchedule   node = "execute_schedule"
	nodeValidateOutput    node = "validate_output"
	nodeValidateCross     node = "validate_cross_agent_info"
	nodeHandleHandoff     node = "handle_agent_handoff"
	nodeHandleRetry       node = "handle_retry"
	nodeCheckAvailability node = "check_availability"
	nodeExecuteBooking    node = "execute_booking"
	nodeSendNotification  node = "send_notification"
	nodeCreateTicket      node = "create_ticket"
	nodeEnd               node = "end"
)

// maxTransitions caps the node walk per request.
const maxTransitions = 50

// minReplyLength is the shortest reply validate_output accepts.
const minReplyLength = 10

// stepFunc advances the walk from one node and returns the next.
type stepFunc func(context.Context, *models.OrchestratorState) node

// Orchestrator wires the router, the specialist adapters, the shared state
// store, the tool executor and the saga coordinator into the request graph.
type Orchestrator struct {
	registry *config.TenantRegistry
	router   *agent.Router
	adapters map[models.Intent]*agent.Adapter
	shared   sharedstate.Store
	tools    *tools.Executor
	sagas    *saga.Coordinator
	prompts  *prompt.Resolver

	// steps is the node dispatch table the walk follows.
	steps map[node]stepFunc
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Registry  *config.TenantRegistry
	Router    *agent.Router
	Sales     *agent.Adapter
	Support   *agent.Adapter
	Emergency *agent.Adapter
	Schedule  *agent.Adapter
	Shared    sharedstate.Store
	Tools     *tools.Executor
	Sagas     *saga.Coordinator
	Prompts   *prompt.Resolver
}

// NewOrchestrator builds the graph once. Panics on a missing collaborator.
func NewOrchestrator(opts Options) *Orchestrator {
	for name, v := range map[string]any{
		"registry": opts.Registry, "router": opts.Router,
		"sales": opts.Sales, "support": opts.Support,
		"emergency": opts.Emergency, "schedule": opts.Schedule,
		"shared": opts.Shared, "tools": opts.Tools,
		"sagas": opts.Sagas, "prompts": opts.Prompts,
	} {
		if v == nil {
			panic("graph.NewOrchestrator: " + name + " must not be nil")
		}
	}
	o := &Orchestrator{
		registry: opts.Registry,
		router:   opts.Router,
		adapters: map[models.Intent]*agent.Adapter{
			models.IntentSales:     opts.Sales,
			models.IntentSupport:   opts.Support,
			models.IntentEmergency: opts.Emergency,
			models.IntentSchedule:  opts.Schedule,
		},
		shared:  opts.Shared,
		tools:   opts.Tools,
		sagas:   opts.Sagas,
		prompts: opts.Prompts,
	}
	o.steps = map[node]stepFunc{
		nodeValidateInput: func(_ context.Context, s *models.OrchestratorState) node {
			return o.validateInput(s)
		},
		nodeClassifyIntent: o.classifyIntent,
		nodeDetectSecondary: func(_ context.Context, s *models.OrchestratorState) node {
			return o.detectSecondaryIntent(s)
		},
		nodeExecuteSales: func(ctx context.Context, s *models.OrchestratorState) node {
			return o.executeAgent(ctx, s, models.IntentSales)
		},
		nodeExecuteSupport: func(ctx context.Context, s *models.OrchestratorState) node {
			return o.executeAgent(ctx, s, models.IntentSupport)
		},
		nodeExecuteEmergency: func(ctx context.Context, s *models.OrchestratorState) node {
			return o.executeAgent(ctx, s, models.IntentEmergency)
		},
		nodeExecuteSchedule: func(ctx context.Context, s *models.OrchestratorState) node {
			return o.executeAgent(ctx, s, models.IntentSchedule)
		},
		nodeValidateOutput: o.validateOutput,
		nodeValidateCross: func(_ context.Context, s *models.OrchestratorState) node {
			return o.validateCrossAgentInfo(s)
		},
		nodeHandleHandoff: o.handleAgentHandoff,
		nodeHandleRetry: func(_ context.Context, s *models.OrchestratorState) node {
			return o.handleRetry(s)
		},
		nodeCheckAvailability: o.checkAvailability,
		nodeExecuteBooking:    o.executeBooking,
		nodeSendNotification:  o.sendNotification,
		nodeCreateTicket:      o.createTicket,
	}
	return o
}

// GenericErrorReply is the tenant-branded apology sent on unrecoverable
// failures.
func GenericErrorReply(displayName string) string {
	if displayName == "" {
		return "Lo sentimos, ocurrió un error procesando tu mensaje. Por favor intenta de nuevo en unos minutos."
	}
	return fmt.Sprintf("Lo sentimos, ocurrió un error procesando tu mensaje en %s. Por favor intenta de nuevo en unos minutos.", displayName)
}

// Run walks the graph for one request. The returned state always carries a
// non-empty AgentResponse.
func (o *Orchestrator) Run(ctx context.Context, state *models.OrchestratorState) *models.OrchestratorState {
	// Prompt mutations invalidate nothing structural; the version is noted
	// lazily at request start for diagnostics.
	log := slog.With("company_id", state.CompanyID, "user_id", state.UserID,
		"prompt_version", o.prompts.Version())

	current := nodeValidateInput
	transitions := 0
	for current != nodeEnd {
		if transitions >= maxTransitions {
			log.Error("Transition cap exceeded", "node", current, "transitions", transitions)
			state.AgentResponse = GenericErrorReply(o.displayName(state.CompanyID))
			state.AddError("transition cap exceeded")
			break
		}
		if err := ctx.Err(); err != nil {
			log.Warn("Request deadline exceeded", "node", current)
			if state.AgentResponse == "" {
				state.AgentResponse = GenericErrorReply(o.displayName(state.CompanyID))
			}
			state.AddError("deadline exceeded at " + string(current))
			break
		}

		next := o.step(ctx, current, state)
		log.Debug("Graph transition", "from", current, "to", next)
		current = next
		transitions++
	}

	metrics.GraphTransitions.Observe(float64(transitions))
	if state.AgentResponse == "" {
		state.AgentResponse = GenericErrorReply(o.displayName(state.CompanyID))
	}
	state.CompletedAt = time.Now()
	return state
}

func (o *Orchestrator) step(ctx context.Context, current node, state *models.OrchestratorState) node {
	fn, ok := o.steps[current]
	if !ok {
		slog.Error("Unknown graph node", "node", current)
		return nodeEnd
	}
	return fn(ctx, state)
}

func (o *Orchestrator) displayName(companyID string) string {
	if t, ok := o.registry.Get(companyID); ok {
		return t.DisplayName
	}
	return ""
}

// AdapterStats snapshots the per-agent execution counters for diagnostics.
func (o *Orchestrator) AdapterStats() map[string]agent.Stats {
	out := make(map[string]agent.Stats, len(o.adapters))
	for _, a := range o.adapters {
		out[a.Name()] = a.Stats()
	}
	return out
}

// executeNodeFor maps an intent to its execute node; anything unknown runs
// support.
func executeNodeFor(intent models.Intent) node {
	switch intent {
	case models.IntentSales:
		return nodeExecuteSales
	case models.IntentEmergency:
		return nodeExecuteEmergency
	case models.IntentSchedule:
		return nodeExecuteSchedule
	default:
		return nodeExecuteSupport
	}
}
