package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig        `json:"server"`
	Providers    []ProviderConfig    `json:"providers"`
	Bindings     map[string]string   `json:"bindings,omitempty"`  // role -> provider id
	Fallbacks    map[string][]string `json:"fallbacks,omitempty"` // role -> provider id chain
	Gateway      GatewayConfig       `json:"gateway"`
	Database     DatabaseConfig      `json:"database"`
	Orchestrator OrchestratorConfig  `json:"orchestrator"`
	Capability   CapabilityConfig    `json:"capability"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// OrchestratorConfig bounds one request's orchestration.
type OrchestratorConfig struct {
	PlannerModel    string   `json:"planner_model"`
	ClosingModel    string   `json:"closing_model"`
	MaxTasks        int      `json:"max_tasks"`
	DeadlineSeconds int      `json:"deadline_seconds"`
	HistoryLimit    int      `json:"history_limit"`
	ImageKeywords   []string `json:"image_keywords"`
	SummaryKeywords []string `json:"summary_keywords"`
}

// Deadline returns the hard wall-clock bound for one orchestration.
func (c OrchestratorConfig) Deadline() time.Duration {
	if c.DeadlineSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// CapabilityConfig configures the capability invoker and its handlers.
type CapabilityConfig struct {
	TextModel          string  `json:"text_model"`
	VisionModel        string  `json:"vision_model"`
	ImageModel         string  `json:"image_model"`
	ImageSize          string  `json:"image_size"`
	ImageQuality       string  `json:"image_quality"`
	ImageStyle         string  `json:"image_style"`
	PromptLanguage     string  `json:"prompt_language"`
	Temperature        float64 `json:"temperature"`
	MaxTokens          int     `json:"max_tokens"`
	CallTimeoutSeconds int     `json:"call_timeout_seconds"`
	RetryMaxAttempts   int     `json:"retry_max_attempts"`
	RetryBaseDelayMS   int     `json:"retry_base_delay_ms"`
	RetryMaxDelayMS    int     `json:"retry_max_delay_ms"`
}

// CallTimeout returns the per-capability-call budget.
func (c CapabilityConfig) CallTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
