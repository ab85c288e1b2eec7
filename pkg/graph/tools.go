package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conversia-ai/conversia/pkg/agent"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/tools"
)

func (o *Orchestrator) recordTool(state *models.OrchestratorState, toolNode node, res models.ToolResult) {
	state.ToolsExecuted = append(state.ToolsExecuted, string(toolNode))
	state.ToolResults = append(state.ToolResults, res)
	if !res.Success {
		state.ToolErrors = append(state.ToolErrors, res.Error)
	}
}

// checkAvailability probes the schedule backend, coalesces the returned
// slots for the resolved treatment, and loops back into the schedule
// specialist so the reply can mention them.
func (o *Orchestrator) checkAvailability(ctx context.Context, state *models.OrchestratorState) node {
	tenant, _ := o.registry.Get(state.CompanyID)
	sched, ok, err := o.shared.GetSchedule(ctx, state.CompanyID, state.UserID)
	if err != nil || !ok {
		state.AddError("availability check without schedule state")
		o.recordTool(state, nodeCheckAvailability, models.ToolResult{
			Tool: tools.ToolGoogleCalendar, Success: false, Error: "no schedule state",
		})
		return nodeExecuteSchedule
	}

	res := o.tools.Execute(ctx, tools.ToolGoogleCalendar, map[string]any{
		"action":    tools.ActionCheckAvailability,
		"date":      sched.Date,
		"treatment": sched.Treatment,
	}, state.UserID, state.CurrentAgent, "")
	o.recordTool(state, nodeCheckAvailability, res)

	if res.Success {
		var raw []string
		if slots, ok := res.Data["available_slots"].([]string); ok {
			raw = slots
		}
		td := tenant.TreatmentDurations[sched.Treatment]
		sched.AvailableSlots = agent.CoalesceSlots(raw, td.DurationMinutes, td.Sessions)
		sched.Status = agent.ScheduleStatusSlotsOffered
		if err := o.shared.SetSchedule(ctx, state.CompanyID, state.UserID, sched); err != nil {
			slog.Warn("Failed to store offered slots", "user_id", state.UserID, "error", err)
		}
		state.SharedContext["schedule_info"] = sched
	}
	return nodeExecuteSchedule
}

// executeBooking runs the booking saga: create the booking, then send the
// confirmation email. A notification failure compensates the booking by
// deleting the created event, and the reply gets a soft-failure note.
func (o *Orchestrator) executeBooking(ctx context.Context, state *models.OrchestratorState) node {
	sched, ok, err := o.shared.GetSchedule(ctx, state.CompanyID, state.UserID)
	if err != nil || !ok {
		state.AddError("booking without schedule state")
		return nodeValidateCross
	}
	patient, _, _ := o.shared.GetUser(ctx, state.CompanyID, state.UserID)

	s := o.sagas.CreateSaga(state.UserID, "booking")

	bookingParams := map[string]any{
		"action":        tools.ActionCreateBooking,
		"treatment":     sched.Treatment,
		"date":          sched.Date,
		"time":          sched.Time,
		"patient_name":  patient.Name,
		"patient_phone": patient.Phone,
	}
	if err := o.sagas.AddAction(s.ID, "booking", "create_booking",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			res := o.tools.Execute(ctx, tools.ToolGoogleCalendar, params, state.UserID, state.CurrentAgent, "")
			if !res.Success {
				return nil, fmt.Errorf("%s", res.Error)
			}
			return res.Data, nil
		},
		func(ctx context.Context, params, result map[string]any) error {
			res := o.tools.Execute(ctx, tools.ToolGoogleCalendar, map[string]any{
				"action":   tools.ActionDeleteEvent,
				"event_id": result["event_id"],
			}, state.UserID, state.CurrentAgent, "")
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
		bookingParams,
	); err != nil {
		state.AddError(err.Error())
		return nodeValidateCross
	}

	if patient.Email != "" {
		if err := o.sagas.AddAction(s.ID, "notification", "send_confirmation",
			func(ctx context.Context, params map[string]any) (map[string]any, error) {
				res := o.tools.Execute(ctx, tools.ToolSendEmail, params, state.UserID, state.CurrentAgent, "")
				if !res.Success {
					return nil, fmt.Errorf("%s", res.Error)
				}
				return res.Data, nil
			},
			nil,
			map[string]any{
				"to_email":      patient.Email,
				"template_name": "booking_confirmation",
				"template_vars": map[string]any{
					"treatment": sched.Treatment,
					"date":      sched.Date,
					"time":      sched.Time,
					"name":      patient.Name,
				},
			},
		); err != nil {
			state.AddError(err.Error())
		}
	}

	result := o.sagas.ExecuteSaga(ctx, s.ID)
	o.recordTool(state, nodeExecuteBooking, models.ToolResult{
		Tool:    tools.ToolGoogleCalendar,
		Success: result.Success,
		Data:    sagaData(result),
		Error:   result.Error,
	})

	if result.Success {
		sched.Status = agent.ScheduleStatusNotified
		if patient.Email == "" {
			sched.Status = agent.ScheduleStatusBooked
		}
		if data := sagaData(result); data != nil {
			if id, ok := data["event_id"].(string); ok {
				sched.BookingID = id
			}
			if link, ok := data["calendar_link"].(string); ok {
				sched.CalendarLink = link
			}
		}
		if err := o.shared.SetSchedule(ctx, state.CompanyID, state.UserID, sched); err != nil {
			slog.Warn("Failed to store booking state", "user_id", state.UserID, "error", err)
		}
		if sched.Status == agent.ScheduleStatusNotified {
			state.ToolsExecuted = append(state.ToolsExecuted, string(nodeSendNotification))
		}
	} else {
		state.AgentResponse += " Nota: no pudimos confirmar tu reserva en este momento, te contactaremos para finalizarla."
	}
	return nodeValidateCross
}

// sagaData returns the result of the first successful step, which for the
// booking saga is the booking payload.
func sagaData(result models.SagaResult) map[string]any {
	for _, step := range result.Steps {
		if step.Status == models.ActionStatusSuccess || step.Status == models.ActionStatusCompensated {
			return step.Result
		}
	}
	return nil
}

// sendNotification sends the confirmation email for an already booked but
// not yet notified appointment.
func (o *Orchestrator) sendNotification(ctx context.Context, state *models.OrchestratorState) node {
	patient, ok, err := o.shared.GetUser(ctx, state.CompanyID, state.UserID)
	if err != nil || !ok || patient.Email == "" {
		o.recordTool(state, nodeSendNotification, models.ToolResult{
			Tool: tools.ToolSendEmail, Success: false, Error: "no patient email on file",
		})
		return nodeValidateCross
	}
	sched, _, _ := o.shared.GetSchedule(ctx, state.CompanyID, state.UserID)

	res := o.tools.Execute(ctx, tools.ToolSendEmail, map[string]any{
		"to_email":      patient.Email,
		"template_name": "booking_confirmation",
		"template_vars": map[string]any{
			"treatment": sched.Treatment,
			"date":      sched.Date,
			"time":      sched.Time,
			"name":      patient.Name,
		},
	}, state.UserID, state.CurrentAgent, "")
	o.recordTool(state, nodeSendNotification, res)

	if res.Success {
		if err := o.shared.UpdateScheduleStatus(ctx, state.CompanyID, state.UserID, agent.ScheduleStatusNotified); err != nil {
			slog.Warn("Failed to update schedule status", "user_id", state.UserID, "error", err)
		}
	}
	return nodeValidateCross
}

// createTicket opens a support ticket through a saga so a later failure in
// the same request can close it again.
func (o *Orchestrator) createTicket(ctx context.Context, state *models.OrchestratorState) node {
	s := o.sagas.CreateSaga(state.UserID, "ticket")

	if err := o.sagas.AddAction(s.ID, "ticket", "create_ticket",
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			res := o.tools.Execute(ctx, tools.ToolCreateTicket, params, state.UserID, state.CurrentAgent, "")
			if !res.Success {
				return nil, fmt.Errorf("%s", res.Error)
			}
			return res.Data, nil
		},
		func(ctx context.Context, params, result map[string]any) error {
			res := o.tools.Execute(ctx, tools.ToolCloseTicket, map[string]any{
				"ticket_id": result["ticket_id"],
			}, state.UserID, state.CurrentAgent, "")
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
		map[string]any{
			"subject":      truncateSubject(state.Question),
			"description":  state.Question,
			"priority":     "medium",
			"requester_id": state.UserID,
		},
	); err != nil {
		state.AddError(err.Error())
		return nodeValidateCross
	}

	result := o.sagas.ExecuteSaga(ctx, s.ID)
	res := models.ToolResult{
		Tool:    tools.ToolCreateTicket,
		Success: result.Success,
		Data:    sagaData(result),
		Error:   result.Error,
	}
	o.recordTool(state, nodeCreateTicket, res)

	if result.Success {
		if id, ok := res.Data["ticket_id"].(string); ok {
			o.attachTicketToSupport(ctx, state, id)
		}
	}
	return nodeValidateCross
}

func (o *Orchestrator) attachTicketToSupport(ctx context.Context, state *models.OrchestratorState, ticketID string) {
	entries, err := o.shared.GetSupport(ctx, state.CompanyID, state.UserID)
	if err != nil || len(entries) == 0 {
		return
	}
	last := entries[len(entries)-1]
	last.TicketID = ticketID
	if err := o.shared.AddSupport(ctx, state.CompanyID, state.UserID, last); err != nil {
		slog.Warn("Failed to attach ticket to support record", "user_id", state.UserID, "error", err)
	}
	state.SharedContext["support_ticket_id"] = ticketID
}

func truncateSubject(q string) string {
	const max = 80
	if len(q) <= max {
		return q
	}
	return q[:max] + "..."
}
