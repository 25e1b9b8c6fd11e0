package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"pharmabot/internal/llm"
	"pharmabot/internal/logger"
	"pharmabot/internal/ocr"
)

type Config struct {
	// LLM Configuration
	LLMProvider    string  `mapstructure:"LLM_PROVIDER"`
	GoogleAPIKey   string  `mapstructure:"GOOGLE_API_KEY"`
	OpenAIAPIKey   string  `mapstructure:"OPENAI_API_KEY"`
	LLMModel       string  `mapstructure:"LLM_MODEL"`
	LLMBaseURL     string  `mapstructure:"LLM_BASE_URL"`
	LLMTemperature float32 `mapstructure:"LLM_TEMPERATURE"`
	LLMMaxTokens   int     `mapstructure:"LLM_MAX_TOKENS"`
	LLMMaxRetries  int     `mapstructure:"LLM_MAX_RETRIES"`

	// OCR Configuration
	OCRBackend  string `mapstructure:"OCR_BACKEND"`
	OCRLanguage string `mapstructure:"OCR_LANGUAGE"`

	// Google Cloud Configuration (vision, documentai)
	GoogleCloudProject    string `mapstructure:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation   string `mapstructure:"GOOGLE_CLOUD_LOCATION"`
	DocumentAIProcessorID string `mapstructure:"DOCUMENT_AI_PROCESSOR_ID"`

	// HTTP Server Configuration
	Port           string        `mapstructure:"PORT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Logging Configuration
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFormat     string `mapstructure:"LOG_FORMAT"`
	LogTimeFormat string `mapstructure:"LOG_TIME_FORMAT"`
	LogOutput     string `mapstructure:"LOG_OUTPUT"`
}

var keys = []string{
	"LLM_PROVIDER", "GOOGLE_API_KEY", "OPENAI_API_KEY", "LLM_MODEL", "LLM_BASE_URL",
	"LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_MAX_RETRIES",
	"OCR_BACKEND", "OCR_LANGUAGE",
	"GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "DOCUMENT_AI_PROCESSOR_ID",
	"PORT", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// Load reads the configuration from the environment. Credentials are not
// checked here; commands that call the model use RequireCompletionCredentials.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("LLM_PROVIDER", llm.ProviderGemini)
	v.SetDefault("LLM_TEMPERATURE", 0.2)
	v.SetDefault("LLM_MAX_TOKENS", 1024)
	v.SetDefault("LLM_MAX_RETRIES", 1)
	v.SetDefault("OCR_BACKEND", ocr.BackendTesseract)
	v.SetDefault("OCR_LANGUAGE", "eng")
	v.SetDefault("GOOGLE_CLOUD_LOCATION", "us")
	v.SetDefault("PORT", "8501")
	v.SetDefault("BODY_LIMIT", "25M")
	v.SetDefault("REQUEST_TIMEOUT", "2m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_TIME_FORMAT", time.RFC3339)
	v.SetDefault("LOG_OUTPUT", "stderr")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.OCRBackend = strings.ToLower(strings.TrimSpace(cfg.OCRBackend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", llm.ProviderGemini, llm.ProviderOpenAI, c.LLMProvider)
	}

	known := false
	for _, backend := range ocr.Backends {
		if c.OCRBackend == backend {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("OCR_BACKEND must be one of %s, got %q", strings.Join(ocr.Backends, ", "), c.OCRBackend)
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %v", c.LLMTemperature)
	}
	if c.LLMMaxTokens < 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must not be negative, got %d", c.LLMMaxTokens)
	}
	if c.LLMMaxRetries < 1 {
		return fmt.Errorf("LLM_MAX_RETRIES must be at least 1, got %d", c.LLMMaxRetries)
	}
	return nil
}

// RequireCompletionCredentials fails when the selected provider has no key.
func (c *Config) RequireCompletionCredentials() error {
	if c.CompletionAPIKey() != "" {
		return nil
	}
	if c.LLMProvider == llm.ProviderOpenAI {
		return fmt.Errorf("OPENAI_API_KEY is required: %w", llm.ErrMissingAPIKey)
	}
	return fmt.Errorf("GOOGLE_API_KEY is required: %w", llm.ErrMissingAPIKey)
}

// CompletionAPIKey returns the key of the selected provider.
func (c *Config) CompletionAPIKey() string {
	if c.LLMProvider == llm.ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GoogleAPIKey
}

// GetLLMConfig returns the completion client configuration
func (c *Config) GetLLMConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLMProvider,
		APIKey:      c.CompletionAPIKey(),
		Model:       c.LLMModel,
		BaseURL:     c.LLMBaseURL,
		Temperature: c.LLMTemperature,
		MaxTokens:   c.LLMMaxTokens,
		MaxRetries:  c.LLMMaxRetries,
	}
}

// GetOCRConfig returns the OCR engine configuration
func (c *Config) GetOCRConfig() ocr.EngineConfig {
	var languages []string
	for _, lang := range strings.FieldsFunc(c.OCRLanguage, func(r rune) bool { return r == '+' || r == ',' }) {
		languages = append(languages, strings.TrimSpace(lang))
	}
	return ocr.EngineConfig{
		Backend:   c.OCRBackend,
		Languages: languages,
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:   c.GoogleCloudProject,
			Location:    c.GoogleCloudLocation,
			ProcessorID: c.DocumentAIProcessorID,
		},
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
