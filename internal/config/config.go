// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragchat/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Azure OpenAI: endpoint, chat deployment, API version
//   - Azure AI Search: endpoint, index, semantic ranking, vector field
//   - Generation: max tokens, temperature
//   - Serve: CORS origins, proxy trust, rate limiting
//   - Tracing: OTLP endpoint, service name, environment
//
// Environment variable names for the Azure services follow the names
// the services themselves document (AZURE_OPENAI_ENDPOINT,
// AZURE_AI_SEARCH_ENDPOINT, ...); application-level overrides use the
// RAGCHAT_ prefix.
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
//
// Security: API keys are masked in MarshalJSON/String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingOpenAIEndpoint indicates the Azure OpenAI endpoint is not set.
	ErrMissingOpenAIEndpoint = errors.New("missing Azure OpenAI endpoint")

	// ErrMissingSearchEndpoint indicates the Azure AI Search endpoint is not set.
	ErrMissingSearchEndpoint = errors.New("missing Azure AI Search endpoint")

	// ErrMissingProjectEndpoint indicates the Azure AI project endpoint is not set.
	ErrMissingProjectEndpoint = errors.New("missing Azure AI project endpoint")

	// ErrInvalidDeployment indicates the chat deployment name is invalid.
	ErrInvalidDeployment = errors.New("invalid chat deployment")

	// ErrInvalidAPIVersion indicates the API version is invalid.
	ErrInvalidAPIVersion = errors.New("invalid API version")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid search top k")

	// ErrInvalidSearchIndex indicates the search index name is invalid.
	ErrInvalidSearchIndex = errors.New("invalid search index")

	// ErrInvalidVectorField indicates the vector field name is invalid.
	ErrInvalidVectorField = errors.New("invalid vector field")

	// ErrInvalidSemanticConfiguration indicates the semantic configuration name is invalid.
	ErrInvalidSemanticConfiguration = errors.New("invalid semantic configuration")

	// ErrInvalidLogFormat indicates the log format is not supported.
	ErrInvalidLogFormat = errors.New("invalid log format")

	// ErrInvalidRateBurst indicates the rate limiter burst is invalid.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

// Generation parameter bounds. These match the request bounds the HTTP
// API enforces, so a config default can never be rejected per-request.
const (
	MinMaxTokens = 1
	MaxMaxTokens = 4096

	MinTopK = 1
	MaxTopK = 20
)

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	// Endpoint is the OTLP HTTP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Azure OpenAI configuration
	OpenAIEndpoint string `mapstructure:"openai_endpoint" json:"openai_endpoint"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	ChatDeployment string `mapstructure:"chat_deployment" json:"chat_deployment"`
	APIVersion     string `mapstructure:"api_version" json:"api_version"`

	// Azure AI Search configuration
	SearchEndpoint string `mapstructure:"search_endpoint" json:"search_endpoint"`
	SearchAPIKey   string `mapstructure:"search_api_key" json:"search_api_key"` // SENSITIVE: masked in MarshalJSON
	SearchIndex    string `mapstructure:"search_index" json:"search_index"`

	// Retrieval tuning
	SearchTopK            int    `mapstructure:"search_top_k" json:"search_top_k"`
	UseSemanticRanker     bool   `mapstructure:"use_semantic_ranker" json:"use_semantic_ranker"`
	SemanticConfiguration string `mapstructure:"semantic_configuration" json:"semantic_configuration"`
	VectorField           string `mapstructure:"vector_field" json:"vector_field"`

	// Generation defaults
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`

	// Azure AI project (agent provisioning)
	ProjectEndpoint    string `mapstructure:"project_endpoint" json:"project_endpoint"`
	ProjectAPIVersion  string `mapstructure:"project_api_version" json:"project_api_version"`
	SearchConnectionID string `mapstructure:"search_connection_id" json:"search_connection_id"`

	// Serve configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Rate limiter burst per IP (0 = default)

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	// Logging configuration
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.ragchat/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragchat")

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
// Azure service defaults mirror the service-side conventions: the
// gpt-4o-mini deployment, the 2024-10-21 GA API version, and an index
// named "documents" with an "embedding" vector field.
func setDefaults() {
	// Azure OpenAI defaults
	viper.SetDefault("chat_deployment", "gpt-4o-mini")
	viper.SetDefault("api_version", "2024-10-21")

	// Azure AI Search defaults
	viper.SetDefault("search_index", "documents")
	viper.SetDefault("search_top_k", 5)
	viper.SetDefault("use_semantic_ranker", true)
	viper.SetDefault("semantic_configuration", "default-semantic")
	viper.SetDefault("vector_field", "embedding")

	// Generation defaults
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("temperature", 0.7)

	// Agent provisioning defaults
	viper.SetDefault("project_api_version", "2025-05-01")
	viper.SetDefault("search_connection_id", "search-connection")

	// Serve defaults
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)

	// Tracing defaults
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "ragchat")

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

// bindEnvVariables binds environment variables explicitly.
// Azure service variables keep the names the services document;
// application overrides use the RAGCHAT_ prefix.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Azure OpenAI
	mustBind("openai_endpoint", "AZURE_OPENAI_ENDPOINT")
	mustBind("openai_api_key", "AZURE_OPENAI_API_KEY")
	mustBind("chat_deployment", "AZURE_OPENAI_CHAT_DEPLOYMENT")
	mustBind("api_version", "AZURE_OPENAI_API_VERSION")

	// Azure AI Search
	mustBind("search_endpoint", "AZURE_AI_SEARCH_ENDPOINT")
	mustBind("search_api_key", "AZURE_AI_SEARCH_API_KEY")
	mustBind("search_index", "AZURE_SEARCH_INDEX_NAME")

	// Azure AI project (agent provisioning)
	mustBind("project_endpoint", "AZURE_AI_PROJECT_ENDPOINT")
	mustBind("search_connection_id", "AZURE_AI_SEARCH_CONNECTION_ID")

	// Application overrides
	mustBind("cors_origins", "RAGCHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "RAGCHAT_TRUST_PROXY")
	mustBind("rate_burst", "RAGCHAT_RATE_BURST")
	mustBind("log_level", "RAGCHAT_LOG_LEVEL")
	mustBind("log_format", "RAGCHAT_LOG_FORMAT")
	mustBind("tracing.endpoint", "RAGCHAT_OTLP_ENDPOINT")
	mustBind("tracing.environment", "RAGCHAT_ENVIRONMENT")
	mustBind("tracing.service_name", "RAGCHAT_SERVICE_NAME")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against the
// original secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - OpenAIAPIKey
//   - SearchAPIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.SearchAPIKey = maskSecret(a.SearchAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
