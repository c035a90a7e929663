// Package config loads service configuration from the environment and
// optional .env files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded, when present, before parsing
var DefaultEnvFiles = []string{".env", ".env.local"}

type ERPNextOptions struct {
	BaseURL   string        `env:"ERPNEXT_BASE_URL"`
	APIKey    string        `env:"ERPNEXT_API_KEY"`
	APISecret string        `env:"ERPNEXT_API_SECRET"`
	Timeout   time.Duration `env:"ERPNEXT_TIMEOUT" envDefault:"30s"`
}

type ImportOptions struct {
	Workers           int   `env:"IMPORT_WORKERS" envDefault:"2"`
	QueueSize         int   `env:"IMPORT_QUEUE_SIZE" envDefault:"1000"`
	MaxUploadBytes    int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	AutoFixMaxRetries int   `env:"AUTOFIX_MAX_RETRIES" envDefault:"3"`
}

type LogOptions struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Config is the full service configuration
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	APIKey          string        `env:"IMPORTER_API_KEY"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	AllowedBaseDir  string        `env:"ALLOWED_BASE_DIR" envDefault:"/data/incoming"`
	MetricsPath     string        `env:"METRICS_PATH" envDefault:"/metrics"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	ERPNext ERPNextOptions
	Import  ImportOptions
	Log     LogOptions
}

// LoadEnv loads the env files that exist and reports how many were read
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads the env files, then parses and validates the environment
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	if _, err := LoadEnv(files); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return Parse()
}

// Parse reads Config from the process environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that env parsing cannot express
func (c *Config) Validate() error {
	if c.Import.Workers < 1 {
		return fmt.Errorf("IMPORT_WORKERS must be at least 1, got %d", c.Import.Workers)
	}
	if c.Import.QueueSize < 1 {
		return fmt.Errorf("IMPORT_QUEUE_SIZE must be at least 1, got %d", c.Import.QueueSize)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Import.MaxUploadBytes)
	}
	if c.Import.AutoFixMaxRetries < 1 {
		return fmt.Errorf("AUTOFIX_MAX_RETRIES must be at least 1, got %d", c.Import.AutoFixMaxRetries)
	}
	if c.ERPNext.Timeout <= 0 {
		return fmt.Errorf("ERPNEXT_TIMEOUT must be positive, got %s", c.ERPNext.Timeout)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got '%s'", c.Log.Format)
	}
	return nil
}

// UsesDatabase reports whether PostgreSQL stores are configured
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
