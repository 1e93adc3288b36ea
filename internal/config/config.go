// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication (previous secret supports key rotation)
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Object storage (S3-compatible) for document uploads
	StorageBucketName      string `koanf:"storage_bucket_name"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	StorageEndpoint        string `koanf:"storage_endpoint"`
	MaxUploadSizeMB        int    `koanf:"max_upload_size_mb"`

	// Redis (optional; rate limiting falls back to in-memory when empty)
	RedisURL string `koanf:"redis_url"`

	// CORS allowed origins, comma-separated. Empty disables CORS headers.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultMaxUploadSizeMB     = 15
	DefaultTracingSamplingRate = 0.1
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// YAML file first, lower precedence.
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", k.Int("max_upload_size_mb"), DefaultMaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	samplingRate := DefaultTracingSamplingRate
	if k.Exists("tracing_sampling_rate") {
		samplingRate = k.Float64("tracing_sampling_rate")
	}
	if val := os.Getenv("TRACING_SAMPLING_RATE"); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("TRACING_SAMPLING_RATE must be a float: %w", err))
		} else {
			samplingRate = parsed
		}
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		tracingEnabled = val == "true" || val == "1"
	}

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		StorageBucketName:      getEnvOrKoanf("STORAGE_BUCKET_NAME", k, "storage_bucket_name"),
		StorageAccessKeyID:     getEnvOrKoanf("STORAGE_ACCESS_KEY_ID", k, "storage_access_key_id"),
		StorageSecretAccessKey: getEnvOrKoanf("STORAGE_SECRET_ACCESS_KEY", k, "storage_secret_access_key"),
		StorageEndpoint:        getEnvOrKoanf("STORAGE_ENDPOINT", k, "storage_endpoint"),
		MaxUploadSizeMB:        maxUploadSize,
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CORSAllowedOrigins:     getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         tracingEnabled,
		TracingExporter:        getEnvOrKoanf("TRACING_EXPORTER", k, "tracing_exporter"),
		TracingOTLPEndpoint:    getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:    samplingRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks required settings and returns every violation found.
func (c *Config) Validate() []error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	return errs
}

// StorageConfigured reports whether the object-storage settings are
// complete enough to enable presigned uploads.
func (c *Config) StorageConfigured() bool {
	return c.StorageBucketName != "" && c.StorageAccessKeyID != "" &&
		c.StorageSecretAccessKey != "" && c.StorageEndpoint != ""
}

// getEnvOrKoanf returns the environment variable value if set, otherwise
// the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise
// the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault parses an integer environment variable with koanf and
// default fallbacks.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be an integer: %w", envKey, err)
		}
		return parsed, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}
