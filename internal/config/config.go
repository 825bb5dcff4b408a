package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Gallery  GalleryConfig  `toml:"gallery"`
	Import   ImportConfig   `toml:"import"`
	Render   RenderConfig   `toml:"render"`
	Logging  LoggingConfig  `toml:"logging"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	// JWTSecret signs bearer tokens. Leave empty to read
	// MATHEMELODY_JWT_SECRET from the environment, or to have a random
	// secret generated at startup (tokens won't survive a restart).
	JWTSecret         string `toml:"jwt_secret"`
	SessionDuration   string `toml:"session_duration"`
	AllowRegistration bool   `toml:"allow_registration"`
}

// GalleryConfig controls the public gallery feed
type GalleryConfig struct {
	PageSize    int `toml:"page_size"`
	MaxPageSize int `toml:"max_page_size"`
	CacheTTL    int `toml:"cache_ttl_seconds"`
}

// ImportConfig controls the composition import watcher
type ImportConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	Owner   string `toml:"owner"` // username compositions are imported under
}

// RenderConfig controls offline WAV rendering
type RenderConfig struct {
	OutputDir     string `toml:"output_dir"`
	MaxConcurrent int    `toml:"max_concurrent_renders"`
	MaxLoops      int    `toml:"max_loops"`
	RetentionDays int    `toml:"retention_days"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled      bool   `toml:"enabled"`
	AuthToken    string `toml:"auth_token"`
	Domain       string `toml:"domain"`
	EnableAuth   bool   `toml:"enable_auth"`
	AuthProvider string `toml:"auth_provider"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:           "./mathemelody.db",
			MaxConnections: 10,
		},
		Auth: AuthConfig{
			JWTSecret:         "",
			SessionDuration:   "24h",
			AllowRegistration: true,
		},
		Gallery: GalleryConfig{
			PageSize:    20,
			MaxPageSize: 100,
			CacheTTL:    60,
		},
		Import: ImportConfig{
			Enabled: false,
			Dir:     "./import",
			Owner:   "",
		},
		Render: RenderConfig{
			OutputDir:     "./renders",
			MaxConcurrent: 2,
			MaxLoops:      8,
			RetentionDays: 7,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
		Ngrok: NgrokConfig{
			Enabled:      false,
			AuthToken:    "",
			Domain:       "",
			EnableAuth:   false,
			AuthProvider: "google",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Mathemelody Server Configuration
# This file contains all configuration options for the Mathemelody server.
# Edit the values below to customize your server settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	// Validate auth config
	if _, err := time.ParseDuration(c.Auth.SessionDuration); err != nil {
		return fmt.Errorf("invalid session duration %q: %w", c.Auth.SessionDuration, err)
	}

	// Validate gallery config
	if c.Gallery.PageSize < 1 {
		return fmt.Errorf("gallery page size must be at least 1")
	}
	if c.Gallery.MaxPageSize < c.Gallery.PageSize {
		return fmt.Errorf("gallery max page size must be at least the default page size")
	}
	if c.Gallery.CacheTTL < 0 {
		return fmt.Errorf("gallery cache TTL must not be negative")
	}

	// Validate import config
	if c.Import.Enabled {
		if c.Import.Dir == "" {
			return fmt.Errorf("import directory cannot be empty when import is enabled")
		}
		if c.Import.Owner == "" {
			return fmt.Errorf("import owner cannot be empty when import is enabled")
		}
	}

	// Validate render config
	if c.Render.OutputDir == "" {
		return fmt.Errorf("render output directory cannot be empty")
	}
	if c.Render.MaxConcurrent < 1 {
		return fmt.Errorf("render max concurrent must be at least 1")
	}
	if c.Render.MaxLoops < 1 {
		return fmt.Errorf("render max loops must be at least 1")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SessionTTL returns the parsed bearer token lifetime
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.SessionDuration)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
