package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
)

// Scheduling statuses tracked in the shared schedule slot.
const (
	ScheduleStatusCollecting   = "collecting_info"
	ScheduleStatusSlotsOffered = "slots_offered"
	ScheduleStatusConfirmed    = "confirmed"
	ScheduleStatusBooked       = "booked"
	ScheduleStatusNotified     = "notified"
)

const slotPreviewLimit = 5

var timeRe = regexp.MustCompile(`\b([01]\d|2[0-3]):([0-5]\d)\b`)

// AvailabilityProbe checks open slots for a tenant's treatment on a date.
// The orchestrator wires it to the tool executor.
type AvailabilityProbe interface {
	CheckAvailability(ctx context.Context, userID, date, treatment string) ([]string, error)
}

// ScheduleHandler runs the booking sub-state machine: extract fields,
// validate, optionally probe availability, then compose the reply with a
// single LLM call.
type ScheduleHandler struct {
	deps   Deps
	shared sharedstate.Store
	probe  AvailabilityProbe
	now    func() time.Time
}

// NewScheduleHandler creates the schedule specialist. The probe may be nil,
// in which case availability checks are skipped.
func NewScheduleHandler(deps Deps, shared sharedstate.Store, probe AvailabilityProbe) *ScheduleHandler {
	deps.validate("agent.NewScheduleHandler")
	if shared == nil {
		panic("agent.NewScheduleHandler: shared state store must not be nil")
	}
	return &ScheduleHandler{deps: deps, shared: shared, probe: probe, now: time.Now}
}

// Invoke runs extract_info, validate_info, the optional availability check
// and generate_response.
func (h *ScheduleHandler) Invoke(ctx context.Context, inputs models.AgentInputs) (string, error) {
	tenant, err := h.deps.tenant(inputs.CompanyID)
	if err != nil {
		return "", err
	}
	now := h.now()

	// extract_info
	info := h.extract(ctx, inputs, now)

	// validate_info
	dateValid := info.Date != "" && ValidateDate(info.Date, now)
	_, treatmentValid := tenant.TreatmentDurations[info.Treatment]
	missing := h.missingFields(tenant.RequiredBookingFields, info)

	sched := models.ScheduleInfo{
		Treatment:   info.Treatment,
		Date:        info.Date,
		Status:      ScheduleStatusCollecting,
		SourceAgent: "schedule",
		Timestamp:   now,
	}

	// check_availability, skipped for pure price or information queries
	var windows []string
	if dateValid && treatmentValid && !IsPriceQuery(inputs.Question) {
		if h.probe != nil {
			slots, err := h.probe.CheckAvailability(ctx, inputs.UserID, info.Date, info.Treatment)
			if err != nil {
				slog.Warn("Availability check failed, continuing without slots",
					"company_id", inputs.CompanyID, "user_id", inputs.UserID, "error", err)
			} else {
				td := tenant.TreatmentDurations[info.Treatment]
				windows = CoalesceSlots(slots, td.DurationMinutes, td.Sessions)
				sched.AvailableSlots = windows
				sched.Status = ScheduleStatusSlotsOffered
			}
		}
		if len(windows) == 0 {
			// Slots offered earlier for the same appointment survive
			// re-entry after the orchestrator's availability tool ran.
			if prev, ok, err := h.shared.GetSchedule(ctx, inputs.CompanyID, inputs.UserID); err == nil && ok &&
				prev.Status == ScheduleStatusSlotsOffered &&
				prev.Date == info.Date && prev.Treatment == info.Treatment {
				windows = prev.AvailableSlots
				sched.AvailableSlots = windows
				sched.Status = ScheduleStatusSlotsOffered
			}
		}
	}

	// A chosen time with valid date and treatment confirms the appointment.
	if dateValid && treatmentValid {
		if t := timeRe.FindString(inputs.Question); t != "" {
			sched.Time = t
			sched.Status = ScheduleStatusConfirmed
		}
	}

	h.persist(ctx, inputs, info, sched)

	// generate_response
	reply, err := h.deps.complete(ctx, tenant, prompt.KeySchedule, inputs,
		h.stateContext(info, dateValid, treatmentValid, windows, missing))
	if err != nil {
		return "", fmt.Errorf("schedule completion failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (h *ScheduleHandler) extract(ctx context.Context, inputs models.AgentInputs, now time.Time) BookingInfo {
	tenant, _ := h.deps.tenant(inputs.CompanyID)

	var info BookingInfo
	if date, ok := ExtractDate(inputs.Question, now); ok {
		info.Date = date
	} else {
		for i := len(inputs.ChatHistory) - 1; i >= 0; i-- {
			m := inputs.ChatHistory[i]
			if m.Role != models.RoleUser {
				continue
			}
			if date, ok := ExtractDate(m.Content, now); ok {
				info.Date = date
				break
			}
		}
	}

	if t, ok := ExtractTreatment(inputs.Question, tenant); ok {
		info.Treatment = t
	} else {
		for i := len(inputs.ChatHistory) - 1; i >= 0; i-- {
			m := inputs.ChatHistory[i]
			if m.Role != models.RoleUser {
				continue
			}
			if t, ok := ExtractTreatment(m.Content, tenant); ok {
				info.Treatment = t
				break
			}
		}
	}

	info.Patient = ExtractPatient(inputs.Question, inputs.ChatHistory)

	// Merge previously known patient fields from shared state.
	if known, ok, err := h.shared.GetUser(ctx, inputs.CompanyID, inputs.UserID); err == nil && ok {
		if info.Patient.Name == "" {
			info.Patient.Name = known.Name
		}
		if info.Patient.Phone == "" {
			info.Patient.Phone = known.Phone
		}
		if info.Patient.Email == "" {
			info.Patient.Email = known.Email
		}
		if info.Patient.NationalID == "" {
			info.Patient.NationalID = known.NationalID
		}
	}
	return info
}

func (h *ScheduleHandler) missingFields(required []string, info BookingInfo) []string {
	values := map[string]string{
		"name":        info.Patient.Name,
		"phone":       info.Patient.Phone,
		"email":       info.Patient.Email,
		"national_id": info.Patient.NationalID,
		"date":        info.Date,
		"treatment":   info.Treatment,
	}
	var missing []string
	for _, f := range required {
		if values[strings.ToLower(f)] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func (h *ScheduleHandler) persist(ctx context.Context, inputs models.AgentInputs, info BookingInfo, sched models.ScheduleInfo) {
	if err := h.shared.SetSchedule(ctx, inputs.CompanyID, inputs.UserID, sched); err != nil {
		slog.Warn("Failed to persist schedule state", "user_id", inputs.UserID, "error", err)
	}
	patient := info.Patient
	patient.SourceAgent = "schedule"
	patient.Timestamp = sched.Timestamp
	if patient.Name != "" || patient.Phone != "" || patient.Email != "" || patient.NationalID != "" {
		if err := h.shared.SetUser(ctx, inputs.CompanyID, inputs.UserID, patient); err != nil {
			slog.Warn("Failed to persist patient info", "user_id", inputs.UserID, "error", err)
		}
	}
}

// stateContext renders the sub-machine outcome as the prompt context.
func (h *ScheduleHandler) stateContext(info BookingInfo, dateValid, treatmentValid bool, windows, missing []string) string {
	var b strings.Builder
	if info.Date != "" {
		fmt.Fprintf(&b, "Fecha solicitada: %s", info.Date)
		if !dateValid {
			b.WriteString(" (no válida, debe ser hoy o posterior)")
		}
		b.WriteString("\n")
	}
	if info.Treatment != "" && treatmentValid {
		fmt.Fprintf(&b, "Tratamiento: %s\n", info.Treatment)
	}
	if len(windows) > 0 {
		preview := windows
		if len(preview) > slotPreviewLimit {
			preview = preview[:slotPreviewLimit]
		}
		fmt.Fprintf(&b, "Horarios disponibles: %s\n", strings.Join(preview, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "Datos pendientes del paciente: %s\n", strings.Join(missing, ", "))
	}
	if b.Len() == 0 {
		return "Sin datos de la cita todavía."
	}
	return strings.TrimRight(b.String(), "\n")
}
