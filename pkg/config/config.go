// Package config loads dataagent configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for dataagent.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8086"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Tenant datasource (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Optional shared schema-snapshot cache
	Redis RedisConfig `yaml:"redis"`

	// AI model endpoints
	AI AIConfig `yaml:"ai"`

	// Pipeline tuning
	Agent AgentConfig `yaml:"agent"`
}

// DatabaseConfig holds PostgreSQL datasource configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dataagent"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"analytics"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnString builds a pgx connection string.
func (c *DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.MaxConnections)
}

// RedisConfig holds the optional Redis snapshot cache settings. When Addr is
// empty the cache is disabled and introspection results stay in-process.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AIConfig holds LLM and embedding endpoint settings.
type AIConfig struct {
	// Provider selects the chat backend: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:"https://api.openai.com/v1"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// Model handles complex fresh generation; FastModel handles SQL edits
	// and low-complexity generation.
	Model     string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o"`
	FastModel string `yaml:"fast_model" env:"AI_FAST_MODEL" env-default:"gpt-4o-mini"`

	// Embeddings always use an OpenAI-compatible endpoint; falls back to
	// Endpoint/APIKey when unset.
	EmbeddingEndpoint string `yaml:"embedding_endpoint" env:"AI_EMBEDDING_ENDPOINT" env-default:""`
	EmbeddingAPIKey   string `yaml:"-" env:"AI_EMBEDDING_API_KEY"`
	EmbeddingModel    string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// AgentConfig holds pipeline tuning knobs.
type AgentConfig struct {
	// SessionTTLMinutes is the inactivity window before a session is purged.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" env:"AGENT_SESSION_TTL_MINUTES" env-default:"30"`
	// SessionSweepSeconds is how often expired sessions are swept.
	SessionSweepSeconds int `yaml:"session_sweep_seconds" env:"AGENT_SESSION_SWEEP_SECONDS" env-default:"60"`
	// SchemaTTLMinutes is how long a schema snapshot may be served from cache.
	SchemaTTLMinutes int `yaml:"schema_ttl_minutes" env:"AGENT_SCHEMA_TTL_MINUTES" env-default:"10"`
	// DefaultRowLimit caps result rows when generated SQL omits a LIMIT.
	DefaultRowLimit int `yaml:"default_row_limit" env:"AGENT_DEFAULT_ROW_LIMIT" env-default:"100"`
	// TenantColumn is the isolation column present on every tenant table.
	TenantColumn string `yaml:"tenant_column" env:"AGENT_TENANT_COLUMN" env-default:"org_id"`
}

// Load reads configuration from config.yaml (if present) and the
// environment. Environment variables always win.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}

	return cfg, nil
}
