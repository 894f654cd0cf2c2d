// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	// PageMaxLimit caps the limit query parameter on list endpoints.
	PageMaxLimit int
	LogLevel     string
}

type ServerConfig struct {
	Port               string
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

type StoreConfig struct {
	Driver         string
	MongoURI       string
	MongoDatabase  string
	PostgresURL    string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type KafkaConfig struct {
	// Brokers is empty when event publishing is disabled.
	Brokers      []string
	ProductTopic string
	OrderTopic   string
}

type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is empty when tracing export is disabled.
	OTLPEndpoint string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Host:               getEnv("HOST", "0.0.0.0"),
			ReadTimeout:        getEnvAsDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getEnvAsDuration("WRITE_TIMEOUT", 10*time.Second),
			RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 8*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
			MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:  getEnv("MONGO_DATABASE", "storefront"),
			PostgresURL:    os.Getenv("POSTGRES_URL"),
			ConnectTimeout: getEnvAsDuration("STORE_CONNECT_TIMEOUT", 10*time.Second),
			QueryTimeout:   getEnvAsDuration("STORE_QUERY_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsSlice("KAFKA_BROKERS", nil),
			ProductTopic: getEnv("KAFKA_PRODUCT_TOPIC", "product.created"),
			OrderTopic:   getEnv("KAFKA_ORDER_TOPIC", "order.created"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:    getEnv("SERVICE_NAME", "storefront"),
			ServiceVersion: getEnv("SERVICE_VERSION", "0.1.0"),
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		PageMaxLimit: getEnvAsInt("PAGE_MAX_LIMIT", 100),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongo driver")
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %s (must be mongo, postgres, or memory)", c.Store.Driver)
	}

	if c.PageMaxLimit < 1 {
		return fmt.Errorf("PAGE_MAX_LIMIT must be positive, got %d", c.PageMaxLimit)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("5s") or a bare number of
// seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
