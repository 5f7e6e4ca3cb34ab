// Package config handles application configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	LLM        LLMConfig       `yaml:"llm"`
	Analysis   AnalysisConfig  `yaml:"analysis"`
	Auth       AuthConfig      `yaml:"auth"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Logging    LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite
	Path   string `yaml:"path"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"` // gemini, openai, anthropic, ollama
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	OllamaURL string `yaml:"ollama_url"`
}

type AnalysisConfig struct {
	TimeoutSeconds int   `yaml:"timeout_seconds"` // hard per-attempt budget for the inference call
	MaxRetries     int   `yaml:"max_retries"`     // transient network failures only
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	PreviewLength  int   `yaml:"preview_length"`
}

type AuthConfig struct {
	SessionTTLHours int      `yaml:"session_ttl_hours"`
	AdminEmails     []string `yaml:"admin_emails"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"default_requests_per_minute"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/veritrust.db",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Analysis: AnalysisConfig{
			TimeoutSeconds: 60,
			MaxRetries:     2,
			MaxUploadBytes: 10 << 20,
			PreviewLength:  100,
		},
		Auth: AuthConfig{
			SessionTTLHours: 72,
		},
		RateLimits: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run with --generate-config to create one)", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content := interpolateEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GenerateSample creates a sample configuration file.
func GenerateSample(path string) error {
	sample := `# VeriTrust Configuration
# See documentation for all options

server:
  port: 8080

database:
  driver: sqlite
  path: ./data/veritrust.db

llm:
  provider: gemini  # gemini, openai, anthropic, ollama
  model: gemini-2.0-flash
  api_key: ${GEMINI_API_KEY}

  # For OpenAI:
  # provider: openai
  # model: gpt-4o-mini
  # api_key: ${OPENAI_API_KEY}

  # For Anthropic Claude:
  # provider: anthropic
  # model: claude-3-haiku-20240307
  # api_key: ${ANTHROPIC_API_KEY}

  # For Ollama (local):
  # provider: ollama
  # model: llama3
  # ollama_url: http://localhost:11434

analysis:
  timeout_seconds: 60
  max_retries: 2        # transient network failures only
  max_upload_bytes: 10485760
  preview_length: 100

auth:
  session_ttl_hours: 72
  admin_emails: []
  # admin_emails:
  #   - ops@example.com

rate_limits:
  default_requests_per_minute: 60

logging:
  level: info  # debug, info, warn, error
  format: json # json or text
`
	return os.WriteFile(path, []byte(sample), 0644)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	validProviders := map[string]bool{"gemini": true, "openai": true, "anthropic": true, "ollama": true}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	// Every hosted provider needs a credential before any network call is attempted.
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("%s API key is required", c.LLM.Provider)
	}

	if c.Analysis.TimeoutSeconds < 1 {
		return fmt.Errorf("analysis timeout must be at least 1 second")
	}
	if c.Analysis.MaxUploadBytes < 1 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.Analysis.PreviewLength < 1 {
		return fmt.Errorf("preview_length must be positive")
	}
	if c.Auth.SessionTTLHours < 1 {
		return fmt.Errorf("session_ttl_hours must be positive")
	}

	return nil
}

// interpolateEnvVars replaces ${VAR_NAME} with environment variable values.
func interpolateEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // Keep original if not set
	})
}
