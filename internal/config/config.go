// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables
//  2. Config file (~/.blueprint/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive values (API keys, passwords) are masked in MarshalJSON and
// String; validation uses sentinel errors so callers can errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/blueprintlabs/blueprint/internal/artifact"
)

var (
	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxTurns indicates the agentic loop bound is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidWorkflowURL indicates the workflow base URL is unusable.
	ErrInvalidWorkflowURL = errors.New("invalid workflow base URL")

	// ErrInvalidRevealThreshold indicates a reveal threshold is negative.
	ErrInvalidRevealThreshold = errors.New("invalid reveal threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown PostgreSQL SSL mode.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding passwords, API keys, or tokens.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Streaming model
	ModelName           string  `mapstructure:"model_name" json:"model_name"`
	GeminiAPIKey        string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelRequestsPerSec float64 `mapstructure:"model_requests_per_sec" json:"model_requests_per_sec"`
	MaxTurns            int     `mapstructure:"max_turns" json:"max_turns"`

	// Design workflows
	WorkflowBaseURL string `mapstructure:"workflow_base_url" json:"workflow_base_url"`
	WorkflowUser    string `mapstructure:"workflow_user" json:"workflow_user"`
	DesignAPIKey    string `mapstructure:"design_api_key" json:"design_api_key"`   // SENSITIVE: masked in MarshalJSON
	DiagramAPIKey   string `mapstructure:"diagram_api_key" json:"diagram_api_key"` // SENSITIVE: masked in MarshalJSON

	// Artifact reveal thresholds, by content channel
	RevealText    int `mapstructure:"reveal_text" json:"reveal_text"`
	RevealCode    int `mapstructure:"reveal_code" json:"reveal_code"`
	RevealMermaid int `mapstructure:"reveal_mermaid" json:"reveal_mermaid"`

	// Manual edit save debounce, in milliseconds
	SaveDelayMS int `mapstructure:"save_delay_ms" json:"save_delay_ms"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability (see observability.go)
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// Load reads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".blueprint")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("model_requests_per_sec", 1.0)
	viper.SetDefault("max_turns", 5)

	viper.SetDefault("workflow_base_url", "https://api.dify.ai/v1")
	viper.SetDefault("workflow_user", "blueprint")

	reveal := artifact.DefaultReveal()
	viper.SetDefault("reveal_text", reveal.Text)
	viper.SetDefault("reveal_code", reveal.Code)
	viper.SetDefault("reveal_mermaid", reveal.Mermaid)

	viper.SetDefault("save_delay_ms", 2000)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "blueprint")
	viper.SetDefault("postgres_password", "blueprint_dev_password")
	viper.SetDefault("postgres_db_name", "blueprint")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("observability.endpoint", "localhost:4318")
	viper.SetDefault("observability.environment", "dev")
	viper.SetDefault("observability.service_name", "blueprint")
}

// bindEnvVariables binds environment overrides explicitly, so the set
// of recognized variables is visible in one place.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "BLUEPRINT_ADDR")
	mustBind("cors_origins", "BLUEPRINT_CORS_ORIGINS")
	mustBind("model_name", "BLUEPRINT_MODEL_NAME")
	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("workflow_base_url", "BLUEPRINT_WORKFLOW_URL")
	mustBind("design_api_key", "DIFY_API_KEY")
	mustBind("diagram_api_key", "DIFY_API_DIAGRAM_KEY")
	mustBind("observability.enabled", "BLUEPRINT_TRACING")
}

// Reveal returns the configured artifact reveal thresholds.
func (c *Config) Reveal() artifact.Reveal {
	return artifact.Reveal{Text: c.RevealText, Code: c.RevealCode, Mermaid: c.RevealMermaid}
}

// maskedValue avoids substring leaks: a masked secret never contains
// any run of the original characters.
const maskedValue = "████████"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.DesignAPIKey = maskSecret(a.DesignAPIKey)
	a.DiagramAPIKey = maskSecret(a.DiagramAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so accidental printing never leaks secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
