package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TW_TEST_KEY", "sk-secret")
	path := writeConfig(t, `{
		"providers": [{"id": "openai-main", "type": "openai", "api_key": "${TW_TEST_KEY}"}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Providers[0].APIKey; got != "sk-secret" {
		t.Errorf("api key = %q, want sk-secret", got)
	}
}

func TestLoadUsesDefaultWhenEnvUnset(t *testing.T) {
	os.Unsetenv("TW_TEST_MISSING")
	path := writeConfig(t, `{
		"database": {"redis": {"url": "${TW_TEST_MISSING:redis://localhost:6379/0}"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Database.Redis.URL; got != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", got)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("TW_TEST_URL", "redis://prod:6379/1")
	path := writeConfig(t, `{
		"database": {"redis": {"url": "${TW_TEST_URL:redis://localhost:6379/0}"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Database.Redis.URL; got != "redis://prod:6379/1" {
		t.Errorf("redis url = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestOrchestratorDeadlineDefault(t *testing.T) {
	var c OrchestratorConfig
	if got := c.Deadline(); got != 10*time.Minute {
		t.Errorf("deadline = %v, want 10m", got)
	}
	c.DeadlineSeconds = 30
	if got := c.Deadline(); got != 30*time.Second {
		t.Errorf("deadline = %v, want 30s", got)
	}
}

func TestCapabilityCallTimeoutDefault(t *testing.T) {
	var c CapabilityConfig
	if got := c.CallTimeout(); got != 120*time.Second {
		t.Errorf("call timeout = %v, want 120s", got)
	}
	c.CallTimeoutSeconds = 15
	if got := c.CallTimeout(); got != 15*time.Second {
		t.Errorf("call timeout = %v, want 15s", got)
	}
}
