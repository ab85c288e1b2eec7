package models

import "time"

// Slot identifies one of the typed shared-context families.
type Slot string

const (
	SlotPricing   Slot = "pricing"
	SlotSchedule  Slot = "schedule"
	SlotUser      Slot = "user"
	SlotService   Slot = "service"
	SlotSupport   Slot = "support"
	SlotEmergency Slot = "emergency"
	SlotHandoff   Slot = "handoff"
)

// IsValid checks if the slot is one of the seven shared-context families.
func (s Slot) IsValid() bool {
	switch s {
	case SlotPricing, SlotSchedule, SlotUser, SlotService, SlotSupport, SlotEmergency, SlotHandoff:
		return true
	default:
		return false
	}
}

// PricingInfo records pricing mentioned for a service.
type PricingInfo struct {
	Service     string    `json:"service"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	SourceAgent string    `json:"source_agent"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScheduleInfo records the scheduling state for a user.
type ScheduleInfo struct {
	Treatment      string    `json:"treatment,omitempty"`
	Date           string    `json:"date,omitempty"` // DD-MM-YYYY
	Time           string    `json:"time,omitempty"` // HH:MM
	Status         string    `json:"status,omitempty"`
	AvailableSlots []string  `json:"available_slots,omitempty"`
	BookingID      string    `json:"booking_id,omitempty"`
	CalendarLink   string    `json:"calendar_link,omitempty"`
	SourceAgent    string    `json:"source_agent"`
	Timestamp      time.Time `json:"timestamp"`
}

// UserInfo accumulates what is known about a user across requests.
// Set uses merge semantics: non-empty fields overwrite, IntentHistory appends.
type UserInfo struct {
	Name          string    `json:"name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	NationalID    string    `json:"national_id,omitempty"`
	IntentHistory []string  `json:"intent_history,omitempty"`
	SourceAgent   string    `json:"source_agent"`
	Timestamp     time.Time `json:"timestamp"`
}

// ServiceInfo records a service a user showed interest in.
type ServiceInfo struct {
	Service     string    `json:"service"`
	Details     string    `json:"details,omitempty"`
	SourceAgent string    `json:"source_agent"`
	Timestamp   time.Time `json:"timestamp"`
}

// SupportInfo records a support interaction.
type SupportInfo struct {
	Issue       string    `json:"issue"`
	Resolution  string    `json:"resolution,omitempty"`
	TicketID    string    `json:"ticket_id,omitempty"`
	SourceAgent string    `json:"source_agent"`
	Timestamp   time.Time `json:"timestamp"`
}

// EmergencyInfo records the latest emergency escalation for a user.
type EmergencyInfo struct {
	Description string    `json:"description"`
	Escalated   bool      `json:"escalated"`
	SourceAgent string    `json:"source_agent"`
	Timestamp   time.Time `json:"timestamp"`
}

// HandoffInfo records one agent-to-agent handoff.
type HandoffInfo struct {
	FromAgent   string    `json:"from_agent"`
	ToAgent     string    `json:"to_agent"`
	Reason      string    `json:"reason,omitempty"`
	Context     string    `json:"context,omitempty"`
	SourceAgent string    `json:"source_agent"`
	Timestamp   time.Time `json:"timestamp"`
}
