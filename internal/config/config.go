// Package config handles configuration loading and management for Ensemble.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for Ensemble.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. ${VAR} references are expanded.
	APIKey string `mapstructure:"api_key"`
	// Model is the model used for capability invocations.
	Model string `mapstructure:"model"`
}

// BedrockConfig holds AWS Bedrock settings.
type BedrockConfig struct {
	// Enabled routes model calls through AWS Bedrock instead of the
	// Anthropic API.
	Enabled bool `mapstructure:"enabled"`
	// Region is the AWS region for Bedrock calls.
	Region string `mapstructure:"region"`
}

// DatabaseConfig holds workflow store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty uses the XDG data default.
	Path string `mapstructure:"path"`
}

// CorpusConfig holds knowledge corpus settings.
type CorpusConfig struct {
	// Dir is the directory of corpus documents. Empty disables retrieval
	// grounding.
	Dir string `mapstructure:"dir"`
	// Watch reloads corpus documents when files change on disk.
	Watch bool `mapstructure:"watch"`
}

// ExecutionConfig holds workflow execution settings.
type ExecutionConfig struct {
	// MaxInFlight bounds concurrent branches in parallel patterns.
	MaxInFlight int `mapstructure:"max_in_flight"`
	// EventBuffer is the per-run progress event channel capacity.
	EventBuffer int `mapstructure:"event_buffer"`
	// Capabilities is a YAML catalog of capability definitions that
	// replaces the built-in set when present.
	Capabilities string `mapstructure:"capabilities"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, AWS_REGION)
// 2. Project config (.ensemble.yaml in current directory or parent)
// 3. User config (~/.config/ensemble/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("bedrock.region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("database.path", cfg.Database.Path)
	v.Set("corpus.dir", cfg.Corpus.Dir)
	v.Set("corpus.watch", cfg.Corpus.Watch)
	v.Set("execution.max_in_flight", cfg.Execution.MaxInFlight)
	v.Set("execution.event_buffer", cfg.Execution.EventBuffer)
	v.Set("execution.capabilities", cfg.Execution.Capabilities)
	v.Set("logging.level", cfg.Logging.Level)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")

	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "")

	v.SetDefault("database.path", "")

	v.SetDefault("corpus.dir", "")
	v.SetDefault("corpus.watch", true)

	v.SetDefault("execution.max_in_flight", 4)
	v.SetDefault("execution.event_buffer", 64)
	v.SetDefault("execution.capabilities", "")

	v.SetDefault("logging.level", "info")
}

// getUserConfigDir returns the XDG config directory for Ensemble.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ensemble")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "ensemble")
	}
	return filepath.Join(home, ".config", "ensemble")
}

// findProjectConfig searches for .ensemble.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".ensemble.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Corpus: CorpusConfig{
			Watch: true,
		},
		Execution: ExecutionConfig{
			MaxInFlight: 4,
			EventBuffer: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
