package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// The yaml decoder cannot place scalars like "30s" or "168h" into
// time.Duration fields, so the structs carrying durations decode through a
// string-typed shadow and parse explicitly.

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", field, err)
	}
	*dst = v
	return nil
}

// UnmarshalYAML decodes the defaults section, parsing duration strings.
func (d *Defaults) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxContextMessages  int         `yaml:"max_context_messages"`
		MemoryTTL           string      `yaml:"memory_ttl"`
		SharedStateTTL      string      `yaml:"shared_state_ttl"`
		ProcessedTTL        string      `yaml:"processed_message_ttl"`
		BotStatusTTL        string      `yaml:"bot_status_ttl"`
		BotActiveStatuses   []string    `yaml:"bot_active_statuses"`
		ModelParams         ModelParams `yaml:"model_params"`
		LLMTimeout          string      `yaml:"llm_timeout"`
		AvailabilityTimeout string      `yaml:"availability_timeout"`
		BookingTimeout      string      `yaml:"booking_timeout"`
		NotifyTimeout       string      `yaml:"notify_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	d.MaxContextMessages = raw.MaxContextMessages
	d.BotActiveStatuses = raw.BotActiveStatuses
	d.ModelParams = raw.ModelParams
	for _, f := range []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"memory_ttl", raw.MemoryTTL, &d.MemoryTTL},
		{"shared_state_ttl", raw.SharedStateTTL, &d.SharedStateTTL},
		{"processed_message_ttl", raw.ProcessedTTL, &d.ProcessedTTL},
		{"bot_status_ttl", raw.BotStatusTTL, &d.BotStatusTTL},
		{"llm_timeout", raw.LLMTimeout, &d.LLMTimeout},
		{"availability_timeout", raw.AvailabilityTimeout, &d.AvailabilityTimeout},
		{"booking_timeout", raw.BookingTimeout, &d.BookingTimeout},
		{"notify_timeout", raw.NotifyTimeout, &d.NotifyTimeout},
	} {
		if err := setDuration(f.dst, f.raw, f.field); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalYAML decodes the server section, parsing duration strings.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Port             int    `yaml:"port"`
		WebhookToken     string `yaml:"webhook_token"`
		ReadTimeout      string `yaml:"read_timeout"`
		WriteTimeout     string `yaml:"write_timeout"`
		RequestDeadline  string `yaml:"request_deadline"`
		ChatwootBaseURL  string `yaml:"chatwoot_base_url"`
		ChatwootTokenEnv string `yaml:"chatwoot_token_env"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Port = raw.Port
	s.WebhookToken = raw.WebhookToken
	s.ChatwootBaseURL = raw.ChatwootBaseURL
	s.ChatwootTokenEnv = raw.ChatwootTokenEnv
	for _, f := range []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &s.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &s.WriteTimeout},
		{"request_deadline", raw.RequestDeadline, &s.RequestDeadline},
	} {
		if err := setDuration(f.dst, f.raw, f.field); err != nil {
			return err
		}
	}
	return nil
}
