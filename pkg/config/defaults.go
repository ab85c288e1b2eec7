package config

import "time"

// defaultDefaults returns the system-wide fallback values applied when the
// defaults section of conversia.yaml omits them.
func defaultDefaults() *Defaults {
	return &Defaults{
		MaxContextMessages:  10,
		MemoryTTL:           7 * 24 * time.Hour,
		SharedStateTTL:      time.Hour,
		ProcessedTTL:        time.Hour,
		BotStatusTTL:        24 * time.Hour,
		BotActiveStatuses:   []string{"open"},
		ModelParams: ModelParams{
			ModelName:   "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		LLMTimeout:          30 * time.Second,
		AvailabilityTimeout: 30 * time.Second,
		BookingTimeout:      60 * time.Second,
		NotifyTimeout:       30 * time.Second,
	}
}

// defaultServer returns server settings used when the server section is absent.
func defaultServer() ServerConfig {
	return ServerConfig{
		Port:             8080,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		RequestDeadline:  90 * time.Second,
		ChatwootTokenEnv: "CHATWOOT_API_TOKEN",
	}
}

// applyTenantDefaults fills per-tenant gaps from the system defaults.
func applyTenantDefaults(t *TenantConfig, d *Defaults) {
	if t.MaxContextMessages == 0 {
		t.MaxContextMessages = d.MaxContextMessages
	}
	if t.ModelParams.ModelName == "" {
		t.ModelParams.ModelName = d.ModelParams.ModelName
	}
	if t.ModelParams.MaxTokens == 0 {
		t.ModelParams.MaxTokens = d.ModelParams.MaxTokens
	}
	if t.ModelParams.Temperature == 0 {
		t.ModelParams.Temperature = d.ModelParams.Temperature
	}
	if t.RedisPrefix == "" {
		t.RedisPrefix = t.CompanyID + ":"
	}
	if t.VectorIndexName == "" {
		t.VectorIndexName = t.CompanyID + "_documents"
	}
	if t.ScheduleBackend.Kind == "" {
		t.ScheduleBackend.Kind = ScheduleBackendGeneric
	}
	// Email and ticket calls default to the schedule backend host.
	if t.NotificationURL == "" {
		t.NotificationURL = t.ScheduleBackend.URL
	}
	if t.TicketURL == "" {
		t.TicketURL = t.ScheduleBackend.URL
	}
	if t.Language == "" {
		t.Language = "es"
	}
	for name, info := range t.TreatmentDurations {
		if info.Sessions == 0 {
			info.Sessions = 1
			t.TreatmentDurations[name] = info
		}
	}
}
