package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Inference InferenceConfig `mapstructure:"inference"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Mapping   MappingConfig   `mapstructure:"mapping"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
}

// InferenceConfig holds the endpoints and credentials for the feature
// extraction and linear-probe services. Both live behind the same base URL
// and HTTP basic auth in the reference deployment.
type InferenceConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	FeaturesEndpoint string        `mapstructure:"features_endpoint"`
	ProbeEndpoint    string        `mapstructure:"probe_endpoint"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// LLMConfig represents the completion endpoint configuration. Model,
// temperature, top_p and max_tokens feed the Prompt Builder only.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   int           `mapstructure:"rate_limit"`
}

// StorageConfig holds the filesystem roots the two stores own exclusively.
type StorageConfig struct {
	ReportsDir    string `mapstructure:"reports_dir"`
	CasesDir      string `mapstructure:"cases_dir"`
	CaseCacheSize int    `mapstructure:"case_cache_size"`
}

// MappingConfig locates the section/feature mapping file.
type MappingConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// UploadConfig bounds accepted image uploads before the pipeline starts.
type UploadConfig struct {
	MaxImageSizeMB    int      `mapstructure:"max_image_size_mb"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// AuthConfig configures the signed bearer tokens issued to the web
// application. Empty username disables the auth surface entirely.
type AuthConfig struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
