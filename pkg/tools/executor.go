// Package tools provides the uniform executor for side-effecting tools:
// schedule backend calls, email notifications, and support tickets. All HTTP
// I/O to the external backends goes through this package.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/metrics"
	"github.com/conversia-ai/conversia/pkg/models"
)

// Tool names recognized by Execute.
const (
	ToolGoogleCalendar = "google_calendar"
	ToolSendEmail      = "send_email"
	ToolCreateTicket   = "create_ticket"
	ToolCloseTicket    = "close_ticket"
)

// Calendar actions for the google_calendar tool.
const (
	ActionCheckAvailability = "check_availability"
	ActionCreateBooking     = "create_booking"
	ActionDeleteEvent       = "delete_event"
)

// Executor dispatches tool calls to the tenant's configured backends.
type Executor struct {
	registry *config.TenantRegistry
	defaults *config.Defaults
	client   *http.Client
}

// NewExecutor creates a tool executor. Panics if registry or defaults is nil.
func NewExecutor(registry *config.TenantRegistry, defaults *config.Defaults) *Executor {
	if registry == nil {
		panic("tools.NewExecutor: registry must not be nil")
	}
	if defaults == nil {
		panic("tools.NewExecutor: defaults must not be nil")
	}
	// Per-call deadlines come from contexts; the client itself has no timeout.
	return &Executor{registry: registry, defaults: defaults, client: &http.Client{}}
}

// Execute runs one named tool with its parameters. The tenant is resolved
// from the user ID, which always carries the company prefix.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any, userID, agentName, conversationID string) models.ToolResult {
	tenant, ok := e.registry.Get(CompanyFromUserID(userID))
	if !ok {
		return e.finish(toolName, models.ToolResult{
			Tool:    toolName,
			Success: false,
			Error:   fmt.Sprintf("unknown tenant for user %s", userID),
		})
	}

	log := slog.With("tool", toolName, "user_id", userID, "agent", agentName, "conversation_id", conversationID)
	log.Info("Executing tool")

	var res models.ToolResult
	switch toolName {
	case ToolGoogleCalendar:
		res = e.executeCalendar(ctx, tenant, params, userID)
	case ToolSendEmail:
		res = e.sendEmail(ctx, tenant, params)
	case ToolCreateTicket:
		res = e.createTicket(ctx, tenant, params)
	case ToolCloseTicket:
		res = e.closeTicket(ctx, tenant, params)
	default:
		res = models.ToolResult{Tool: toolName, Success: false, Error: fmt.Sprintf("unknown tool: %s", toolName)}
	}

	if !res.Success {
		log.Warn("Tool execution failed", "error", res.Error)
	}
	return e.finish(toolName, res)
}

func (e *Executor) finish(toolName string, res models.ToolResult) models.ToolResult {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	metrics.ToolExecutions.WithLabelValues(toolName, outcome).Inc()
	return res
}

func (e *Executor) executeCalendar(ctx context.Context, tenant *config.TenantConfig, params map[string]any, userID string) models.ToolResult {
	action, _ := params["action"].(string)
	switch action {
	case ActionCheckAvailability:
		if err := requireParams(params, "date", "treatment"); err != nil {
			return calendarFailure(err)
		}
		return e.checkAvailability(ctx, tenant, params)
	case ActionCreateBooking:
		if err := requireParams(params, "treatment", "date", "time", "patient_name", "patient_phone"); err != nil {
			return calendarFailure(err)
		}
		return e.createBooking(ctx, tenant, params, userID)
	case ActionDeleteEvent:
		if err := requireParams(params, "event_id"); err != nil {
			return calendarFailure(err)
		}
		return e.deleteEvent(ctx, tenant, params)
	default:
		return calendarFailure(fmt.Errorf("unknown calendar action: %q", action))
	}
}

func calendarFailure(err error) models.ToolResult {
	return models.ToolResult{Tool: ToolGoogleCalendar, Success: false, Error: err.Error()}
}

func requireParams(params map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil {
			missing = append(missing, k)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CompanyFromUserID recovers the company prefix from a composite user ID of
// the form "{company_id}_contact_{contact_id}".
func CompanyFromUserID(userID string) string {
	if idx := strings.LastIndex(userID, "_contact_"); idx > 0 {
		return userID[:idx]
	}
	return userID
}

func (e *Executor) callCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
