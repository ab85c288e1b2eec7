package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// backendEndpoints maps a schedule backend kind to its endpoint paths.
// The webhook kind posts everything to the base URL with an action field.
func backendEndpoints(kind config.ScheduleBackendKind) (availability, booking, cancel string) {
	switch kind {
	case config.ScheduleBackendGoogleCalendar:
		return "/calendar/availability", "/calendar/book", "/calendar/delete"
	case config.ScheduleBackendCalendly:
		return "/calendly/availability", "/calendly/book", "/calendly/cancel"
	case config.ScheduleBackendWebhook:
		return "", "", ""
	default:
		return "/check-availability", "/schedule-request", "/cancel-booking"
	}
}

func (e *Executor) checkAvailability(ctx context.Context, tenant *config.TenantConfig, params map[string]any) models.ToolResult {
	treatmentName, _ := params["treatment"].(string)
	date, _ := params["date"].(string)

	info, ok := tenant.TreatmentDurations[treatmentName]
	if !ok {
		return calendarFailure(fmt.Errorf("unknown treatment %q for tenant %s", treatmentName, tenant.CompanyID))
	}

	treatment := map[string]any{
		"duration": info.DurationMinutes,
		"sessions": info.Sessions,
		"deposit":  info.Deposit,
	}
	switch tenant.ScheduleBackend.Kind {
	case config.ScheduleBackendGoogleCalendar:
		treatment["calendar_id"] = tenant.ScheduleBackend.CalendarID
	case config.ScheduleBackendCalendly:
		treatment["calendly_event_type"] = tenant.ScheduleBackend.CalendlyEventType
	default:
		treatment["agenda_id"] = tenant.ScheduleBackend.AgendaID
	}

	body := map[string]any{
		"date":       date,
		"treatment":  treatment,
		"company_id": tenant.CompanyID,
	}

	availPath, _, _ := backendEndpoints(tenant.ScheduleBackend.Kind)
	if tenant.ScheduleBackend.Kind == config.ScheduleBackendWebhook {
		body["action"] = ActionCheckAvailability
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.AvailabilityTimeout)
	defer cancel()

	resp, err := e.postJSON(callCtx, tenant.ScheduleBackend.URL+availPath, body)
	if err != nil {
		return calendarFailure(fmt.Errorf("availability check failed: %w", err))
	}

	return models.ToolResult{
		Tool:    ToolGoogleCalendar,
		Success: true,
		Data: map[string]any{
			"available_slots": normalizeSlots(resp),
			"date":            date,
			"treatment":       treatmentName,
		},
	}
}

// normalizeSlots extracts slot times from the backend response. Backends
// return either {data:{available_slots:[{time:"HH:MM"}]}} or a bare list of
// "HH:MM" strings.
func normalizeSlots(resp map[string]any) []string {
	raw := resp["available_slots"]
	if data, ok := resp["data"].(map[string]any); ok {
		if v, ok := data["available_slots"]; ok {
			raw = v
		}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var slots []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			slots = append(slots, v)
		case map[string]any:
			if t, ok := v["time"].(string); ok {
				slots = append(slots, t)
			}
		}
	}
	return slots
}

func (e *Executor) createBooking(ctx context.Context, tenant *config.TenantConfig, params map[string]any, userID string) models.ToolResult {
	treatmentName, _ := params["treatment"].(string)

	patientInfo := map[string]any{
		"name":  params["patient_name"],
		"phone": params["patient_phone"],
	}

	body := map[string]any{
		"message": fmt.Sprintf("Booking %s on %v at %v", treatmentName, params["date"], params["time"]),
		"user_id":    userID,
		"company_id": tenant.CompanyID,
		"patient_info": patientInfo,
		"treatment":    treatmentName,
		"date":         params["date"],
		"time":         params["time"],
		"chat_history": params["chat_history"],
		"integration_type": string(tenant.ScheduleBackend.Kind),
	}

	_, bookPath, _ := backendEndpoints(tenant.ScheduleBackend.Kind)
	if tenant.ScheduleBackend.Kind == config.ScheduleBackendWebhook {
		body["action"] = ActionCreateBooking
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.BookingTimeout)
	defer cancel()

	resp, err := e.postJSON(callCtx, tenant.ScheduleBackend.URL+bookPath, body)
	if err != nil {
		return calendarFailure(fmt.Errorf("booking failed: %w", err))
	}
	if success, ok := resp["success"].(bool); ok && !success {
		msg, _ := resp["response"].(string)
		if msg == "" {
			msg = "booking rejected by schedule backend"
		}
		return calendarFailure(fmt.Errorf("%s", msg))
	}

	data := map[string]any{}
	for _, key := range []string{"response", "requires_more_info", "calendar_link", "confirmation_email"} {
		if v, ok := resp[key]; ok {
			data[key] = v
		}
	}
	// Generic backends return booking_id, calendar ones event_id.
	if v, ok := resp["event_id"]; ok {
		data["event_id"] = v
	} else if v, ok := resp["booking_id"]; ok {
		data["event_id"] = v
	}
	return models.ToolResult{Tool: ToolGoogleCalendar, Success: true, Data: data}
}

func (e *Executor) deleteEvent(ctx context.Context, tenant *config.TenantConfig, params map[string]any) models.ToolResult {
	body := map[string]any{
		"event_id":   params["event_id"],
		"company_id": tenant.CompanyID,
	}

	_, _, cancelPath := backendEndpoints(tenant.ScheduleBackend.Kind)
	if tenant.ScheduleBackend.Kind == config.ScheduleBackendWebhook {
		body["action"] = ActionDeleteEvent
	}

	callCtx, cancel := e.callCtx(ctx, e.defaults.BookingTimeout)
	defer cancel()

	if _, err := e.postJSON(callCtx, tenant.ScheduleBackend.URL+cancelPath, body); err != nil {
		return calendarFailure(fmt.Errorf("event deletion failed: %w", err))
	}
	return models.ToolResult{
		Tool:    ToolGoogleCalendar,
		Success: true,
		Data:    map[string]any{"deleted_event_id": params["event_id"]},
	}
}

// HealthCheck probes the schedule backend's health endpoint.
func (e *Executor) HealthCheck(ctx context.Context, tenant *config.TenantConfig) error {
	callCtx, cancel := e.callCtx(ctx, e.defaults.AvailabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, tenant.ScheduleBackend.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("schedule backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("schedule backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (e *Executor) postJSON(ctx context.Context, url string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("invalid JSON response: %w", err)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
