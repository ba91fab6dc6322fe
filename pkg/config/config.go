// Package config loads the service configuration from CMS_-prefixed
// environment variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avelichko/promo-cms/pkg/observability"
)

// Storage backend identifiers accepted by CMS_STORAGE_TYPE.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageGORM     = "gorm"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Admin   AdminConfig
	Uploads UploadsConfig

	// Production tightens error output and makes admin credentials and
	// the database DSN mandatory.
	Production bool

	LogLevel       observability.LogLevel
	MetricsEnabled bool

	// PublicBaseURL, when set, is used verbatim when building absolute
	// upload URLs.
	PublicBaseURL string

	// Version is reported by the health endpoint.
	Version string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Type is one of file, postgres, gorm.
	Type string
	// DataFile is the JSON document path for the file backend.
	DataFile string
	// PostgresDSN backs both SQL variants.
	PostgresDSN  string
	MaxOpenConns int
	MaxIdleConns int
	ConnTimeout  time.Duration
}

// AdminConfig carries the credentials accepted by the login endpoint.
// Outside production, missing values fall back to well-known development
// credentials.
type AdminConfig struct {
	Login    string
	Password string
}

// UploadsConfig configures the image sink.
type UploadsConfig struct {
	Dir string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	production := strings.EqualFold(getEnv("CMS_ENV", ""), "production")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CMS_HOST", "0.0.0.0"),
			Port:            getEnv("CMS_PORT", "3001"),
			ReadTimeout:     getEnvDuration("CMS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CMS_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CMS_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CMS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Type:         strings.ToLower(getEnv("CMS_STORAGE_TYPE", StorageFile)),
			DataFile:     getEnv("CMS_DATA_FILE", "data/cms.json"),
			PostgresDSN:  getEnv("CMS_DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("CMS_POSTGRES_MAX_CONNS", 10),
			MaxIdleConns: getEnvInt("CMS_POSTGRES_IDLE_CONNS", 5),
			ConnTimeout:  getEnvDuration("CMS_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			Login:    strings.TrimSpace(getEnv("CMS_ADMIN_LOGIN", "")),
			Password: strings.TrimSpace(getEnv("CMS_ADMIN_PASSWORD", "")),
		},
		Uploads: UploadsConfig{
			Dir: getEnv("CMS_UPLOADS_DIR", "data/uploads"),
		},
		Production:     production,
		LogLevel:       observability.ParseLogLevel(getEnv("CMS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CMS_METRICS_ENABLED", true),
		PublicBaseURL:  strings.TrimSpace(getEnv("CMS_PUBLIC_BASE_URL", "")),
		Version:        getEnv("CMS_VERSION", "dev"),
	}

	if !production {
		if cfg.Admin.Login == "" {
			cfg.Admin.Login = "admin"
		}
		if cfg.Admin.Password == "" {
			cfg.Admin.Password = "admin123"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration. In production, admin credentials are
// mandatory and the SQL backends require a DSN; these failures are meant
// to stop the process at startup.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.DataFile == "" {
			return fmt.Errorf("data file path is required for file storage")
		}
	case StoragePostgres, StorageGORM:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("CMS_DATABASE_URL is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be file, postgres, or gorm)", c.Storage.Type)
	}

	if c.Production && (c.Admin.Login == "" || c.Admin.Password == "") {
		return fmt.Errorf("CMS_ADMIN_LOGIN and CMS_ADMIN_PASSWORD must be set in production")
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads directory is required")
	}
	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
