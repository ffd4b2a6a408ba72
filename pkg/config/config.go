// Package config loads the expense store configuration from defaults, an
// optional YAML file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingDatabaseURL is returned when no connection string is configured
var ErrMissingDatabaseURL = errors.New("database url is required (set DATABASE_URL)")

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	Driver           string        `mapstructure:"driver"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	InsertPageSize   int           `mapstructure:"insert_page_size"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig holds OpenTelemetry export settings
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Endpoint    string `mapstructure:"endpoint"`
}

// Config holds the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	return LoadFromFile(configPath())
}

// LoadWithoutURL loads configuration like Load but accepts a missing
// database url, for callers that pass a connection string per operation.
func LoadWithoutURL() (*Config, error) {
	return loadFromFile(configPath(), false)
}

func configPath() string {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	configFile := os.Getenv("EXPENSES_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	return configFile
}

// LoadFromFile loads configuration from the given YAML file, falling back to
// defaults and environment variables when the file does not exist.
func LoadFromFile(path string) (*Config, error) {
	return loadFromFile(path, true)
}

func loadFromFile(path string, requireURL bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(requireURL); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireURL bool) error {
	if requireURL && strings.TrimSpace(c.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.InsertPageSize <= 0 {
		return fmt.Errorf("database.insert_page_size must be positive, got %d", c.Database.InsertPageSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.operation_timeout", "60s")
	v.SetDefault("database.insert_page_size", 100)

	v.SetDefault("logging.level", "info")

	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.read_timeout", "30s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "15s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "expenses")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "expense-store")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.endpoint", "localhost:4317")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("EXPENSES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by docker and hosting platforms
	_ = v.BindEnv("database.url", "EXPENSES_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("logging.level", "EXPENSES_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("api.listen_address", "EXPENSES_API_LISTEN_ADDRESS", "API_LISTEN_ADDRESS")
	_ = v.BindEnv("tracing.endpoint", "EXPENSES_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}
