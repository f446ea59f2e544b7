// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the gateway configuration from file and environment.
// The loaded Config is a construction-time snapshot: the capability registry
// derives provider availability from it exactly once per process.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete gateway configuration
type Config struct {
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	AzureOpenAI AzureOpenAIConfig `mapstructure:"azure_openai"`
	AzureSearch AzureSearchConfig `mapstructure:"azure_search"`
	AzureSpeech AzureSpeechConfig `mapstructure:"azure_speech"`
	ElevenLabs  ElevenLabsConfig  `mapstructure:"elevenlabs"`
	Whisper     WhisperConfig     `mapstructure:"whisper"`
	Polly       PollyConfig       `mapstructure:"polly"`
	ServiceNow  ServiceNowConfig  `mapstructure:"servicenow"`
	Jira        JiraConfig        `mapstructure:"jira"`
	Remedy      RemedyConfig      `mapstructure:"remedy"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Speech      SpeechConfig      `mapstructure:"speech"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// GatewayConfig contains server-level settings
type GatewayConfig struct {
	Port                string `mapstructure:"port"`
	Environment         string `mapstructure:"environment"`
	DevMode             bool   `mapstructure:"dev_mode"`
	CorrelationIDHeader string `mapstructure:"correlation_id_header"`
	TicketStorePath     string `mapstructure:"ticket_store_path"`
}

// AzureOpenAIConfig contains Azure OpenAI credentials and deployments
type AzureOpenAIConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Endpoint    string   `mapstructure:"endpoint"`
	APIKey      string   `mapstructure:"api_key"`
	APIVersion  string   `mapstructure:"api_version"`
	Deployments []string `mapstructure:"deployments"`
}

// AzureSearchConfig contains Azure AI Search credentials
type AzureSearchConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	QueryKey     string `mapstructure:"query_key"`
	DefaultIndex string `mapstructure:"default_index"`
}

// AzureSpeechConfig contains Azure Speech credentials
type AzureSpeechConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Key     string `mapstructure:"key"`
	Region  string `mapstructure:"region"`
}

// ElevenLabsConfig contains the premium STT provider credentials
type ElevenLabsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
}

// WhisperConfig contains the local fallback STT provider settings
type WhisperConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServerURL    string `mapstructure:"server_url"`
	DefaultModel string `mapstructure:"default_model"`
	ComputeType  string `mapstructure:"compute_type"`
}

// PollyConfig contains AWS Polly TTS settings
type PollyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Voice   string `mapstructure:"voice"`
	Engine  string `mapstructure:"engine"`
}

// ServiceNowConfig contains ServiceNow OAuth credentials
type ServiceNowConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	InstanceURL  string `mapstructure:"instance_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// JiraConfig contains Jira Service Management credentials
type JiraConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	APIToken string `mapstructure:"api_token"`
}

// RemedyConfig contains BMC Remedy credentials
type RemedyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// PolicyConfig contains message policy limits
type PolicyConfig struct {
	MaxMessageChars int `mapstructure:"max_message_chars"`
}

// SpeechConfig contains speech gateway defaults and failover policy
type SpeechConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	DefaultModel    string `mapstructure:"default_model"`
	DefaultLanguage string `mapstructure:"default_language"`
	CooldownMinutes int    `mapstructure:"cooldown_minutes"`
	// StrictProvider disables degradation to the local fallback when the
	// premium provider was requested explicitly and fails on credits.
	StrictProvider bool `mapstructure:"strict_provider"`
}

// StatsConfig contains latency statistics settings
type StatsConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	EnableHotReload  bool
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		EnableHotReload:  false,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	setConfigFile(v, opts.ConfigPath)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AI_GATEWAY")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is tolerated: every provider credential can
		// arrive through environment variables alone.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Gateway defaults
	v.SetDefault("gateway.port", "8080")
	v.SetDefault("gateway.environment", "local")
	v.SetDefault("gateway.dev_mode", false)
	v.SetDefault("gateway.correlation_id_header", "X-Correlation-ID")
	v.SetDefault("gateway.ticket_store_path", "")

	// Azure OpenAI defaults
	v.SetDefault("azure_openai.enabled", false)
	v.SetDefault("azure_openai.api_version", "2024-02-01")
	v.SetDefault("azure_openai.deployments", []string{"gpt-4o-mini", "gpt-4.1-mini", "gpt-4.1"})

	// Azure Search defaults
	v.SetDefault("azure_search.enabled", false)
	v.SetDefault("azure_search.default_index", "default")

	// Azure Speech defaults
	v.SetDefault("azure_speech.enabled", false)

	// ElevenLabs defaults
	v.SetDefault("elevenlabs.enabled", false)
	v.SetDefault("elevenlabs.model_id", "scribe_v1")

	// Whisper defaults (local fallback stays on unless disabled)
	v.SetDefault("whisper.enabled", true)
	v.SetDefault("whisper.server_url", "http://localhost:9000")
	v.SetDefault("whisper.default_model", "tiny")
	v.SetDefault("whisper.compute_type", "int8")

	// Polly defaults
	v.SetDefault("polly.enabled", false)
	v.SetDefault("polly.region", "us-east-1")
	v.SetDefault("polly.voice", "Joanna")
	v.SetDefault("polly.engine", "neural")

	// Service desk defaults
	v.SetDefault("servicenow.enabled", false)
	v.SetDefault("jira.enabled", false)
	v.SetDefault("remedy.enabled", false)

	// Policy defaults
	v.SetDefault("policy.max_message_chars", 4000)

	// Speech defaults
	v.SetDefault("speech.default_provider", "auto")
	v.SetDefault("speech.default_model", "tiny")
	v.SetDefault("speech.default_language", "auto")
	v.SetDefault("speech.cooldown_minutes", 10)
	v.SetDefault("speech.strict_provider", false)

	// Stats defaults
	v.SetDefault("stats.window_size", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback locations
func setConfigFile(v *viper.Viper, configPath string) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
		return
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			return
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"AZURE_OPENAI_ENDPOINT":    "azure_openai.endpoint",
		"AZURE_OPENAI_API_KEY":     "azure_openai.api_key",
		"AZURE_OPENAI_API_VERSION": "azure_openai.api_version",
		"AZURE_SEARCH_ENDPOINT":    "azure_search.endpoint",
		"AZURE_SEARCH_QUERY_KEY":   "azure_search.query_key",
		"AZURE_SPEECH_KEY":         "azure_speech.key",
		"AZURE_SPEECH_REGION":      "azure_speech.region",
		"ELEVENLABS_API_KEY":       "elevenlabs.api_key",
		"WHISPER_SERVER_URL":       "whisper.server_url",
		"AWS_REGION":               "polly.region",
		"SERVICENOW_INSTANCE_URL":  "servicenow.instance_url",
		"SERVICENOW_CLIENT_ID":     "servicenow.client_id",
		"SERVICENOW_CLIENT_SECRET": "servicenow.client_secret",
		"JIRA_BASE_URL":            "jira.base_url",
		"JIRA_EMAIL":               "jira.email",
		"JIRA_API_TOKEN":           "jira.api_token",
		"REMEDY_BASE_URL":          "remedy.base_url",
		"REMEDY_USERNAME":          "remedy.username",
		"REMEDY_PASSWORD":          "remedy.password",
		"DEV_MODE":                 "gateway.dev_mode",
		"LOG_LEVEL":                "logging.level",
		"LOG_FORMAT":               "logging.format",
		"LOG_OUTPUT":               "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates structural configuration values. Provider
// credentials are deliberately not required here: a provider with missing
// credentials is surfaced through the registry as not configured.
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Gateway.Port == "" {
		errs = append(errs, ValidationError{
			Field:   "gateway.port",
			Message: "port is required",
		})
	}

	if config.Policy.MaxMessageChars <= 0 {
		errs = append(errs, ValidationError{
			Field:   "policy.max_message_chars",
			Message: "max_message_chars must be greater than 0",
		})
	}

	if config.Speech.CooldownMinutes <= 0 {
		errs = append(errs, ValidationError{
			Field:   "speech.cooldown_minutes",
			Message: "cooldown_minutes must be greater than 0",
		})
	}

	if config.Stats.WindowSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stats.window_size",
			Message: "window_size must be greater than 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfigValue, strings.Join(errorMessages, "; "))
	}

	return nil
}

// WatchConfig watches the configuration file for changes and invokes the
// callback with the freshly loaded configuration. Provider availability is
// fixed at startup; hot reload only affects tunables such as log level and
// policy limits.
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	setConfigFile(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var config Config
		if err := v.Unmarshal(&config); err != nil {
			return
		}
		if err := validateConfig(&config); err != nil {
			return
		}
		callback(&config)
	})
	v.WatchConfig()

	return nil
}

// getEnvironment returns the current environment name
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "local"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
