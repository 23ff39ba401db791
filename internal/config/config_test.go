package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Execution.MaxInFlight != 4 {
		t.Errorf("MaxInFlight = %d, want 4", cfg.Execution.MaxInFlight)
	}
	if cfg.Execution.EventBuffer != 64 {
		t.Errorf("EventBuffer = %d, want 64", cfg.Execution.EventBuffer)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Corpus.Watch {
		t.Error("corpus watching should default on")
	}
	if cfg.Bedrock.Enabled {
		t.Error("Bedrock should default off")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
anthropic:
  model: claude-test-model
bedrock:
  enabled: true
  region: us-west-2
corpus:
  dir: /srv/corpus
execution:
  max_in_flight: 8
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.Model != "claude-test-model" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
	if !cfg.Bedrock.Enabled || cfg.Bedrock.Region != "us-west-2" {
		t.Errorf("Bedrock = %+v", cfg.Bedrock)
	}
	if cfg.Corpus.Dir != "/srv/corpus" {
		t.Errorf("Corpus.Dir = %q", cfg.Corpus.Dir)
	}
	if cfg.Execution.MaxInFlight != 8 {
		t.Errorf("MaxInFlight = %d, want 8", cfg.Execution.MaxInFlight)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Execution.EventBuffer != 64 {
		t.Errorf("EventBuffer = %d, want default 64", cfg.Execution.EventBuffer)
	}
}

func TestLoadFromPath_ExpandsAPIKeyEnv(t *testing.T) {
	t.Setenv("ENSEMBLE_TEST_KEY", "sk-ant-expanded-value-1234")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${ENSEMBLE_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-expanded-value-1234" {
		t.Errorf("APIKey = %q, env reference not expanded", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestGetAPIKey_EnvWins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env-0000000000")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if key != "sk-ant-from-env-0000000000" {
		t.Errorf("env var should win, got %q", key)
	}
	if src := GetAPIKeySource(cfg); src != KeySourceEnv {
		t.Errorf("source = %q, want %q", src, KeySourceEnv)
	}
}

func TestGetAPIKey_None(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(Default()); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"sk-ant-short", true},
		{"not-an-anthropic-key-at-all", true},
		{"sk-ant-REDACTED", false},
	}
	for _, tc := range cases {
		err := ValidateAPIKey(tc.key)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAPIKey(%q) = %v, wantErr %v", tc.key, err, tc.wantErr)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("MaskAPIKey(empty) = %q", got)
	}
	if got := MaskAPIKey("short"); got != "***" {
		t.Errorf("MaskAPIKey(short) = %q", got)
	}
	got := MaskAPIKey("sk-ant-REDACTED")
	if got != "sk-ant-...wxyz" {
		t.Errorf("MaskAPIKey = %q", got)
	}
}
