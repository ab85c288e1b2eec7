package config

import "fmt"

// validate checks the complete configuration before use.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return NewValidationError("server", "http", "port", ErrInvalidValue)
	}
	for _, id := range cfg.TenantRegistry.IDs() {
		t, _ := cfg.TenantRegistry.Get(id)
		if err := validateTenant(id, t); err != nil {
			return err
		}
	}
	return nil
}

// validateTenant checks one tenant configuration.
func validateTenant(id string, t *TenantConfig) error {
	if t == nil {
		return NewValidationError("tenant", id, "", ErrMissingRequiredField)
	}
	if t.CompanyID != id {
		return NewValidationError("tenant", id, "company_id",
			fmt.Errorf("%w: key %q does not match company_id %q", ErrInvalidValue, id, t.CompanyID))
	}
	if t.DisplayName == "" {
		return NewValidationError("tenant", id, "display_name", ErrMissingRequiredField)
	}
	if !t.ScheduleBackend.Kind.IsValid() {
		return NewValidationError("tenant", id, "schedule_backend.kind",
			fmt.Errorf("%w: %q", ErrInvalidValue, t.ScheduleBackend.Kind))
	}
	if t.ScheduleBackend.URL == "" && len(t.TreatmentDurations) > 0 {
		return NewValidationError("tenant", id, "schedule_backend.url", ErrMissingRequiredField)
	}
	for name, info := range t.TreatmentDurations {
		if info.DurationMinutes <= 0 {
			return NewValidationError("tenant", id, "treatment_durations."+name,
				fmt.Errorf("%w: duration must be positive", ErrInvalidValue))
		}
	}
	if t.MaxContextMessages <= 0 {
		return NewValidationError("tenant", id, "max_context_messages",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
