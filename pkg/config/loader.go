package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// conversiaYAML represents the complete conversia.yaml file structure.
type conversiaYAML struct {
	Server     *ServerConfig  `yaml:"server"`
	Redis      *RedisConfig   `yaml:"redis"`
	LLM        *LLMConfig     `yaml:"llm"`
	Index      *IndexConfig   `yaml:"index"`
	Defaults   *Defaults      `yaml:"defaults"`
	AccountMap map[int]string `yaml:"account_map"`
}

// tenantsYAML represents the tenants.yaml file structure.
type tenantsYAML struct {
	Tenants map[string]*TenantConfig `yaml:"tenants"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge system defaults into gaps
//  5. Build the tenant registry
//  6. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully", "tenants", cfg.Stats().Tenants)
	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	main, err := loadConversiaYAML(configDir)
	if err != nil {
		return nil, NewLoadError("conversia.yaml", err)
	}

	tenants, err := LoadTenants(configDir)
	if err != nil {
		return nil, NewLoadError("tenants.yaml", err)
	}

	defaults := defaultDefaults()
	if main.Defaults != nil {
		// User-provided values win; defaults fill the gaps.
		if err := mergo.Merge(main.Defaults, defaults); err != nil {
			return nil, fmt.Errorf("failed to merge defaults: %w", err)
		}
		defaults = main.Defaults
	}

	server := defaultServer()
	if main.Server != nil {
		if err := mergo.Merge(main.Server, server); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
		server = *main.Server
	}

	for id, t := range tenants {
		if t.CompanyID == "" {
			t.CompanyID = id
		}
		applyTenantDefaults(t, defaults)
	}

	cfg := &Config{
		configDir:      configDir,
		Server:         server,
		Defaults:       defaults,
		TenantRegistry: NewTenantRegistry(tenants, main.AccountMap),
	}
	if main.Redis != nil {
		cfg.Redis = *main.Redis
	}
	if main.LLM != nil {
		cfg.LLM = *main.LLM
	}
	if main.Index != nil {
		cfg.Index = *main.Index
	}
	return cfg, nil
}

func loadConversiaYAML(configDir string) (*conversiaYAML, error) {
	data, err := readConfigFile(filepath.Join(configDir, "conversia.yaml"))
	if err != nil {
		return nil, err
	}
	var out conversiaYAML
	if err := yaml.Unmarshal(ExpandEnv(data), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &out, nil
}

// LoadTenants parses tenants.yaml from the config directory. Exported so the
// admin reload endpoint can rebuild the registry without restarting.
func LoadTenants(configDir string) (map[string]*TenantConfig, error) {
	data, err := readConfigFile(filepath.Join(configDir, "tenants.yaml"))
	if err != nil {
		return nil, err
	}
	var out tenantsYAML
	if err := yaml.Unmarshal(ExpandEnv(data), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if out.Tenants == nil {
		out.Tenants = map[string]*TenantConfig{}
	}
	return out.Tenants, nil
}

// Reload re-reads tenants.yaml, re-applies defaults, validates, and swaps the
// registry snapshot. The running config object is otherwise untouched.
func (c *Config) Reload() error {
	tenants, err := LoadTenants(c.configDir)
	if err != nil {
		return err
	}
	main, err := loadConversiaYAML(c.configDir)
	if err != nil {
		return err
	}
	for id, t := range tenants {
		if t.CompanyID == "" {
			t.CompanyID = id
		}
		applyTenantDefaults(t, c.Defaults)
		if err := validateTenant(id, t); err != nil {
			return err
		}
	}
	c.TenantRegistry.Replace(tenants, main.AccountMap)
	slog.Info("Tenant registry reloaded", "tenants", len(tenants), "version", c.TenantRegistry.Version())
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	return data, nil
}
