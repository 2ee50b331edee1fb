// Package config loads and saves the user's persistent preferences.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the user's persistent configuration preferences.
// Environment variables take precedence over the connector fields and
// KnowledgeDir; CostLimit and SoftCapFraction have no environment
// override (the --cost-limit flag overrides CostLimit).
type Config struct {
	LocalBaseURL    string  `json:"local_base_url,omitempty"`   // OpenAI-compatible local runtime
	LocalModel      string  `json:"local_model,omitempty"`      // Default local model name
	AnthropicKey    string  `json:"anthropic_key,omitempty"`    // Strong specialist credentials
	XAIKey          string  `json:"xai_key,omitempty"`          // Fast specialist credentials
	CostLimit       float64 `json:"cost_limit,omitempty"`       // Per-session USD limit
	SoftCapFraction float64 `json:"soft_cap_fraction,omitempty"`
	KnowledgeDir    string  `json:"knowledge_dir,omitempty"` // Docs dir for the rag tool
}

// Defaults applied when the config file leaves fields unset.
const (
	DefaultCostLimit       = 1.0
	DefaultSoftCapFraction = 0.8
)

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a configuration manager rooted at the user config
// dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	return &Manager{configDir: filepath.Join(configDir, "kai")}, nil
}

// Dir returns the kai config directory.
func (m *Manager) Dir() string { return m.configDir }

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk. A missing file yields a
// default config and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return withDefaults(&Config{}), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}

	return withDefaults(&cfg), nil
}

// Save writes the configuration to disk with restricted permissions;
// it may hold API keys.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}

func withDefaults(cfg *Config) *Config {
	if cfg.CostLimit <= 0 {
		cfg.CostLimit = DefaultCostLimit
	}
	if cfg.SoftCapFraction <= 0 || cfg.SoftCapFraction >= 1 {
		cfg.SoftCapFraction = DefaultSoftCapFraction
	}
	return cfg
}
