// Package config loads and validates the server configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Data          DataConfig         `yaml:"data"`
	Log           LogConfig          `yaml:"log"`
	Security      SecurityConfig     `yaml:"security"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Env  string `yaml:"env"`  // dev, staging, prod
	Port int    `yaml:"port"` // defaults to 8080
}

// DataConfig locates the document store and account file.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	WithSource bool   `yaml:"with_source"`
}

// SecurityConfig holds identity settings.
type SecurityConfig struct {
	JWTSecret            string `yaml:"jwt_secret"`
	AdminDefaultPassword string `yaml:"admin_default_password"`
}

// NotificationConfig configures the change notification pipeline.
type NotificationConfig struct {
	// Enabled gates the whole pipeline; when false the trigger returns
	// before any database read.
	Enabled bool `yaml:"enabled"`
	// FromEmail/FromName identify the sender of outgoing notifications.
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	// SendGridAPIKey authenticates against the mail provider. When empty,
	// notifications are logged instead of sent.
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	// AuditLogPath is the rotated JSON-lines audit file. Empty disables the
	// audit log.
	AuditLogPath string `yaml:"audit_log_path"`
	// MaxConcurrent bounds in-flight trigger invocations.
	MaxConcurrent int `yaml:"max_concurrent"`
}

const (
	defaultPort          = 8080
	defaultMaxConcurrent = 8
	defaultFromName      = "Merge Queue"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Returns an error if the file cannot be read, parsed, or
// validation fails.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = defaultPort
	}
	if config.Notifications.MaxConcurrent == 0 {
		config.Notifications.MaxConcurrent = defaultMaxConcurrent
	}
	if config.Notifications.FromName == "" {
		config.Notifications.FromName = defaultFromName
	}
}

// validateConfig performs validation of the configuration.
// Returns an error if any required field is missing or invalid.
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if config.Data.Dir == "" {
		return fmt.Errorf("data.dir cannot be empty")
	}

	if config.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret cannot be empty")
	}

	if config.Notifications.Enabled {
		if config.Notifications.FromEmail == "" {
			return fmt.Errorf("notifications.from_email cannot be empty when notifications are enabled")
		}
		if config.Notifications.MaxConcurrent < 1 {
			return fmt.Errorf("notifications.max_concurrent must be greater than 0")
		}
	}

	return nil
}
