package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const VERSION = "1.2"

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Delivery    DeliveryConfig
	Retention   RetentionConfig
	Environment string
	LogLevel    string
	Version     string
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	URL string
}

type DeliveryConfig struct {
	HTTPTimeout     time.Duration
	MaxAttempts     int
	BackoffSchedule []time.Duration
	Concurrency     int
	MaxPayloadBytes int64
	CacheTTL        time.Duration
}

type RetentionConfig struct {
	Horizon       time.Duration
	SweepInterval time.Duration
}

// LoadOptions contains options for loading configuration
type LoadOptions struct {
	EnvFile string // Optional environment file to load (e.g., ".env", ".env.test")
}

// Load loads the configuration with default options
func Load() (*Config, error) {
	// Try to load .env file but don't require it
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hookline")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERSION", VERSION)

	// Delivery defaults; the backoff schedule entry N is the wait between
	// attempt N and attempt N+1, in seconds.
	v.SetDefault("HTTP_TIMEOUT", 5)
	v.SetDefault("MAX_ATTEMPTS", 5)
	v.SetDefault("BACKOFF_SCHEDULE", "10,30,60,300,900")
	v.SetDefault("WORKER_CONCURRENCY", 8)
	v.SetDefault("MAX_PAYLOAD_BYTES", 1<<20)
	v.SetDefault("SUBSCRIPTION_CACHE_TTL", 600)

	v.SetDefault("RETENTION_HOURS", 72)
	v.SetDefault("RETENTION_SWEEP_MINUTES", 60)

	// Load environment file if specified
	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}

		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	maxAttempts := v.GetInt("MAX_ATTEMPTS")
	if maxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", maxAttempts)
	}

	backoff, err := parseBackoffSchedule(v.GetString("BACKOFF_SCHEDULE"))
	if err != nil {
		return nil, err
	}

	concurrency := v.GetInt("WORKER_CONCURRENCY")
	if concurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", concurrency)
	}

	config := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Delivery: DeliveryConfig{
			HTTPTimeout:     time.Duration(v.GetInt("HTTP_TIMEOUT")) * time.Second,
			MaxAttempts:     maxAttempts,
			BackoffSchedule: backoff,
			Concurrency:     concurrency,
			MaxPayloadBytes: v.GetInt64("MAX_PAYLOAD_BYTES"),
			CacheTTL:        time.Duration(v.GetInt("SUBSCRIPTION_CACHE_TTL")) * time.Second,
		},
		Retention: RetentionConfig{
			Horizon:       time.Duration(v.GetInt("RETENTION_HOURS")) * time.Hour,
			SweepInterval: time.Duration(v.GetInt("RETENTION_SWEEP_MINUTES")) * time.Minute,
		},
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Version:     v.GetString("VERSION"),
	}

	return config, nil
}

// parseBackoffSchedule parses a comma-separated list of delays in seconds.
func parseBackoffSchedule(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	if len(parts) == 0 || (len(parts) == 1 && strings.TrimSpace(parts[0]) == "") {
		return nil, fmt.Errorf("BACKOFF_SCHEDULE must not be empty")
	}

	schedule := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		seconds, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid BACKOFF_SCHEDULE entry %q: %w", part, err)
		}
		if seconds < 0 {
			return nil, fmt.Errorf("BACKOFF_SCHEDULE entries must not be negative, got %d", seconds)
		}
		schedule = append(schedule, time.Duration(seconds)*time.Second)
	}

	return schedule, nil
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
