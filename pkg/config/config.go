package config

import "time"

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	Server   ServerConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Index    IndexConfig
	Defaults *Defaults

	TenantRegistry *TenantRegistry
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int           `yaml:"port"`
	WebhookToken     string        `yaml:"webhook_token,omitempty"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	RequestDeadline  time.Duration `yaml:"request_deadline"`
	ChatwootBaseURL  string        `yaml:"chatwoot_base_url"`
	ChatwootTokenEnv string        `yaml:"chatwoot_token_env"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// LLMConfig holds completion backend settings. The backend is any
// OpenAI-compatible HTTP endpoint.
type LLMConfig struct {
	BaseURL          string `yaml:"base_url,omitempty"`
	APIKeyEnv        string `yaml:"api_key_env"`
	EmbeddingModel   string `yaml:"embedding_model,omitempty"`
	TranscribeModel  string `yaml:"transcribe_model,omitempty"`
	VisionModel      string `yaml:"vision_model,omitempty"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	PersistPath string `yaml:"persist_path"`
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Tenants int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.TenantRegistry != nil {
		s.Tenants = c.TenantRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetTenant retrieves a tenant configuration by company ID.
// This is a convenience method that wraps TenantRegistry.Get().
func (c *Config) GetTenant(companyID string) (*TenantConfig, bool) {
	return c.TenantRegistry.Get(companyID)
}
