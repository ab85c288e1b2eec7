package config

import "time"

// ScheduleBackendKind selects the endpoint shapes of a tenant's schedule backend.
type ScheduleBackendKind string

const (
	ScheduleBackendGeneric        ScheduleBackendKind = "generic"
	ScheduleBackendGoogleCalendar ScheduleBackendKind = "google_calendar"
	ScheduleBackendCalendly       ScheduleBackendKind = "calendly"
	ScheduleBackendWebhook        ScheduleBackendKind = "webhook"
)

// IsValid checks if the backend kind is supported.
func (k ScheduleBackendKind) IsValid() bool {
	switch k {
	case ScheduleBackendGeneric, ScheduleBackendGoogleCalendar, ScheduleBackendCalendly, ScheduleBackendWebhook:
		return true
	default:
		return false
	}
}

// ScheduleBackend configures the external scheduling service of a tenant.
type ScheduleBackend struct {
	URL  string              `yaml:"url"`
	Kind ScheduleBackendKind `yaml:"kind"`

	// Backend-specific routing identifiers.
	AgendaID          string `yaml:"agenda_id,omitempty"`
	CalendarID        string `yaml:"calendar_id,omitempty"`
	CalendlyEventType string `yaml:"calendly_event_type,omitempty"`
}

// ModelParams configures the completion model for a tenant.
type ModelParams struct {
	ModelName   string  `yaml:"model_name"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// TreatmentInfo describes a bookable treatment.
type TreatmentInfo struct {
	DurationMinutes int    `yaml:"duration_minutes"`
	Sessions        int    `yaml:"sessions"`
	Deposit         string `yaml:"deposit,omitempty"`
}

// KeywordSets groups the per-tenant intent keyword lists used by the router
// prompt and the secondary-intent detector.
type KeywordSets struct {
	Emergency []string `yaml:"emergency"`
	Sales     []string `yaml:"sales"`
	Schedule  []string `yaml:"schedule"`
}

// TenantConfig is the full per-tenant configuration. It is read-only at
// request time; consumers obtain a snapshot through the registry.
type TenantConfig struct {
	CompanyID             string                   `yaml:"company_id"`
	DisplayName           string                   `yaml:"display_name"`
	Services              []string                 `yaml:"services"`
	RedisPrefix           string                   `yaml:"redis_prefix"`
	VectorIndexName       string                   `yaml:"vector_index_name"`
	ScheduleBackend       ScheduleBackend          `yaml:"schedule_backend"`
	TreatmentDurations    map[string]TreatmentInfo `yaml:"treatment_durations"`
	Keywords              KeywordSets              `yaml:"keywords"`
	RequiredBookingFields []string                 `yaml:"required_booking_fields"`
	NotificationURL       string                   `yaml:"notification_url,omitempty"`
	TicketURL             string                   `yaml:"ticket_url,omitempty"`
	ModelParams           ModelParams              `yaml:"model_params"`
	MaxContextMessages    int                      `yaml:"max_context_messages"`
	Language              string                   `yaml:"language"`
}

// Defaults holds system-wide fallbacks applied to every tenant that does not
// override them, plus TTLs for the Redis-backed stores.
type Defaults struct {
	MaxContextMessages int           `yaml:"max_context_messages"`
	MemoryTTL          time.Duration `yaml:"memory_ttl"`
	SharedStateTTL     time.Duration `yaml:"shared_state_ttl"`
	ProcessedTTL       time.Duration `yaml:"processed_message_ttl"`
	BotStatusTTL       time.Duration `yaml:"bot_status_ttl"`
	BotActiveStatuses  []string      `yaml:"bot_active_statuses"`
	ModelParams        ModelParams   `yaml:"model_params"`
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
	AvailabilityTimeout time.Duration `yaml:"availability_timeout"`
	BookingTimeout     time.Duration `yaml:"booking_timeout"`
	NotifyTimeout      time.Duration `yaml:"notify_timeout"`
}
