package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cxr-report-server/internal/domain"
)

// Manager loads and validates application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/cxr-report-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("CXR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 7890)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.allowed_origin", "*")

	// Inference service defaults. Empty-string defaults keep the keys
	// visible to Unmarshal so environment overrides bind.
	viper.SetDefault("inference.base_url", "")
	viper.SetDefault("inference.username", "")
	viper.SetDefault("inference.password", "")
	viper.SetDefault("inference.features_endpoint", "/cxr_features")
	viper.SetDefault("inference.probe_endpoint", "/cxr_linear_probe")
	viper.SetDefault("inference.timeout", "60s")

	// LLM defaults
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.15)
	viper.SetDefault("llm.top_p", 0.15)
	viper.SetDefault("llm.max_tokens", 1000)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.rate_limit", 2)

	// Storage defaults
	viper.SetDefault("storage.reports_dir", "reports")
	viper.SetDefault("storage.cases_dir", "cases")
	viper.SetDefault("storage.case_cache_size", 128)

	// Section mapping defaults
	viper.SetDefault("mapping.path", "config/sections.yaml")
	viper.SetDefault("mapping.watch", false)

	// Upload defaults
	viper.SetDefault("upload.max_image_size_mb", 10)
	viper.SetDefault("upload.allowed_extensions", []string{".jpg", ".jpeg", ".png"})

	// Auth defaults
	viper.SetDefault("auth.username", "")
	viper.SetDefault("auth.password", "")
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("auth.token_ttl", "12h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetLLMConfig returns the completion endpoint configuration
func (m *Manager) GetLLMConfig() *domain.LLMConfig {
	return &m.config.LLM
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate external endpoints
	if config.Inference.BaseURL == "" {
		return fmt.Errorf("inference base URL is required")
	}
	if config.LLM.BaseURL == "" {
		return fmt.Errorf("LLM base URL is required")
	}
	if config.LLM.Model == "" {
		return fmt.Errorf("LLM model name is required")
	}
	if config.LLM.Timeout <= 0 || config.Inference.Timeout <= 0 {
		return fmt.Errorf("external call timeouts must be finite and positive")
	}

	// Validate storage configuration
	if config.Storage.ReportsDir == "" {
		return fmt.Errorf("reports directory is required")
	}
	if config.Storage.CasesDir == "" {
		return fmt.Errorf("cases directory is required")
	}

	// Validate upload limits
	if config.Upload.MaxImageSizeMB <= 0 {
		return fmt.Errorf("invalid max image size: %d", config.Upload.MaxImageSizeMB)
	}
	if len(config.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed image extension is required")
	}

	// Auth is optional, but enabling it requires a signing secret
	if config.Auth.Username != "" && config.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required when auth username is set")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
