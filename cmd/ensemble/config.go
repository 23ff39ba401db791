package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ensemble-hq/ensemble/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Ensemble configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/ensemble/config.yaml
Project-specific overrides can be placed in .ensemble.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("bedrock.enabled: %t\n", cfg.Bedrock.Enabled)
	fmt.Printf("bedrock.region: %s\n", cfg.Bedrock.Region)
	fmt.Printf("database.path: %s\n", cfg.Database.Path)
	fmt.Printf("corpus.dir: %s\n", cfg.Corpus.Dir)
	fmt.Printf("corpus.watch: %t\n", cfg.Corpus.Watch)
	fmt.Printf("execution.max_in_flight: %d\n", cfg.Execution.MaxInFlight)
	fmt.Printf("execution.event_buffer: %d\n", cfg.Execution.EventBuffer)
	fmt.Printf("execution.capabilities: %s\n", cfg.Execution.Capabilities)
	fmt.Printf("logging.level: %s\n", cfg.Logging.Level)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "bedrock.enabled":
		return strconv.FormatBool(cfg.Bedrock.Enabled), nil
	case "bedrock.region":
		return cfg.Bedrock.Region, nil
	case "database.path":
		return cfg.Database.Path, nil
	case "corpus.dir":
		return cfg.Corpus.Dir, nil
	case "corpus.watch":
		return strconv.FormatBool(cfg.Corpus.Watch), nil
	case "execution.max_in_flight":
		return strconv.Itoa(cfg.Execution.MaxInFlight), nil
	case "execution.event_buffer":
		return strconv.Itoa(cfg.Execution.EventBuffer), nil
	case "execution.capabilities":
		return cfg.Execution.Capabilities, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "bedrock.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for bedrock.enabled: %w", err)
		}
		cfg.Bedrock.Enabled = b
	case "bedrock.region":
		cfg.Bedrock.Region = value
	case "database.path":
		cfg.Database.Path = value
	case "corpus.dir":
		cfg.Corpus.Dir = value
	case "corpus.watch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for corpus.watch: %w", err)
		}
		cfg.Corpus.Watch = b
	case "execution.max_in_flight":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_in_flight: %w", err)
		}
		cfg.Execution.MaxInFlight = n
	case "execution.event_buffer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for event_buffer: %w", err)
		}
		cfg.Execution.EventBuffer = n
	case "execution.capabilities":
		cfg.Execution.Capabilities = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
