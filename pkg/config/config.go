package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const DefaultEnvFile = "config.env"

type Config struct {
	HTTP     HTTPConfig
	DB       DBConfig
	Log      LogConfig
	Cache    CacheConfig
	RabbitMQ RabbitMQConfig
}

type HTTPConfig struct {
	Addr     string
	TimeZone *time.Location
	CertFile string
	KeyFile  string
}

// TLSEnabled reports whether both a certificate and a key are configured.
func (c HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type LogConfig struct {
	Dir     string
	Console bool
}

type CacheConfig struct {
	TTL time.Duration
}

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Load reads envFile when it exists (variables already set in the environment
// win) and builds the configuration with defaults for anything unset.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("DISPLAY_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}

	console, err := strconv.ParseBool(getEnv("LOG_CONSOLE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_CONSOLE: %w", err)
	}

	return &Config{
		HTTP: HTTPConfig{
			Addr:     getEnv("HTTP_ADDR", ":8080"),
			TimeZone: loc,
			CertFile: os.Getenv("HTTP_TLS_CERT"),
			KeyFile:  os.Getenv("HTTP_TLS_KEY"),
		},
		DB: DBConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         port,
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "bankflow"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxIdle,
		},
		Log: LogConfig{
			Dir:     getEnv("LOG_DIR", "logs"),
			Console: console,
		},
		Cache: CacheConfig{TTL: ttl},
		RabbitMQ: RabbitMQConfig{
			URL:        os.Getenv("RABBITMQ_URL"),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "bankflow.operations"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "operations.recorded"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
