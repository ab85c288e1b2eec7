package tools

import (
	"context"
	"fmt"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

var ticketPriorities = map[string]bool{"low": true, "medium": true, "high": true}

func (e *Executor) sendEmail(ctx context.Context, tenant *config.TenantConfig, params map[string]any) models.ToolResult {
	if err := requireParams(params, "to_email", "template_name"); err != nil {
		return models.ToolResult{Tool: ToolSendEmail, Success: false, Error: err.Error()}
	}

	body := map[string]any{
		"to_email":      params["to_email"],
		"template_name": params["template_name"],
		"template_vars": params["template_vars"],
		"company_id":    tenant.CompanyID,
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.NotifyTimeout)
	defer cancel()

	resp, err := e.postJSON(callCtx, tenant.NotificationURL+"/send-email", body)
	if err != nil {
		return models.ToolResult{Tool: ToolSendEmail, Success: false, Error: fmt.Sprintf("email send failed: %v", err)}
	}
	return models.ToolResult{Tool: ToolSendEmail, Success: true, Data: resp}
}

func (e *Executor) createTicket(ctx context.Context, tenant *config.TenantConfig, params map[string]any) models.ToolResult {
	if err := requireParams(params, "subject", "description", "priority", "requester_id"); err != nil {
		return models.ToolResult{Tool: ToolCreateTicket, Success: false, Error: err.Error()}
	}
	priority, _ := params["priority"].(string)
	if !ticketPriorities[priority] {
		return models.ToolResult{
			Tool:    ToolCreateTicket,
			Success: false,
			Error:   fmt.Sprintf("invalid priority %q, must be low, medium or high", priority),
		}
	}

	body := map[string]any{
		"subject":      params["subject"],
		"description":  params["description"],
		"priority":     priority,
		"requester_id": params["requester_id"],
		"company_id":   tenant.CompanyID,
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.NotifyTimeout)
	defer cancel()

	resp, err := e.postJSON(callCtx, tenant.TicketURL+"/tickets", body)
	if err != nil {
		return models.ToolResult{Tool: ToolCreateTicket, Success: false, Error: fmt.Sprintf("ticket creation failed: %v", err)}
	}
	return models.ToolResult{Tool: ToolCreateTicket, Success: true, Data: resp}
}

func (e *Executor) closeTicket(ctx context.Context, tenant *config.TenantConfig, params map[string]any) models.ToolResult {
	if err := requireParams(params, "ticket_id"); err != nil {
		return models.ToolResult{Tool: ToolCloseTicket, Success: false, Error: err.Error()}
	}

	body := map[string]any{
		"ticket_id":  params["ticket_id"],
		"company_id": tenant.CompanyID,
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.NotifyTimeout)
	defer cancel()

	resp, err := e.postJSON(callCtx, tenant.TicketURL+"/tickets/close", body)
	if err != nil {
		return models.ToolResult{Tool: ToolCloseTicket, Success: false, Error: fmt.Sprintf("ticket close failed: %v", err)}
	}
	return models.ToolResult{Tool: ToolCloseTicket, Success: true, Data: resp}
}
