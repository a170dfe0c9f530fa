package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Session storage drivers.
const (
	SessionDriverMemory   = "memory"
	SessionDriverPostgres = "postgres"
	SessionDriverRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Breaker  BreakerConfig
	Session  SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	Cookies  CookieConfig
	Logger   LoggerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// BackendConfig holds the storefront backend API configuration.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
	// ImageBaseURL prefixes image public ids when no direct URL is present.
	ImageBaseURL string
}

// BreakerConfig holds circuit breaker settings for backend calls.
type BreakerConfig struct {
	MaxFailures        int
	OpenTimeoutSeconds int
}

// SessionConfig selects where per-visitor session storage lives.
type SessionConfig struct {
	Driver         string
	TTLSeconds     int
	IdleStoreLimit int // seconds a visitor cart store stays in memory unused
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PaymentConfig holds payment gateway settings.
type PaymentConfig struct {
	BaseURL     string
	SecretKey   string
	Currency    string
	CallbackURL string
}

// CookieConfig names the cookies the storefront reads and writes.
type CookieConfig struct {
	Visitor string
	Token   string
	Locale  string
	Secure  bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_URL", "http://localhost:3001/api"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT", 15),
			ImageBaseURL:   getEnv("IMAGE_BASE_URL", ""),
		},
		Breaker: BreakerConfig{
			MaxFailures:        getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			OpenTimeoutSeconds: getEnvAsInt("BREAKER_OPEN_TIMEOUT", 30),
		},
		Session: SessionConfig{
			Driver:         getEnv("SESSION_DRIVER", SessionDriverMemory),
			TTLSeconds:     getEnvAsInt("SESSION_TTL", 86400),
			IdleStoreLimit: getEnvAsInt("SESSION_IDLE_STORE_LIMIT", 1800),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Payment: PaymentConfig{
			BaseURL:     getEnv("MOYASAR_URL", "https://api.moyasar.com/v1"),
			SecretKey:   getEnv("MOYASAR_SECRET_KEY", ""),
			Currency:    getEnv("PAYMENT_CURRENCY", "SAR"),
			CallbackURL: getEnv("PAYMENT_CALLBACK_URL", ""),
		},
		Cookies: CookieConfig{
			Visitor: getEnv("COOKIE_VISITOR", "sf_visitor"),
			Token:   getEnv("COOKIE_TOKEN", "token"),
			Locale:  getEnv("COOKIE_LOCALE", "NEXT_LOCALE"),
			Secure:  getEnvAsBool("COOKIE_SECURE", false),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend URL is required")
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend URL: %s", c.Backend.BaseURL)
	}

	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend timeout must be at least 1 second")
	}

	if c.Breaker.MaxFailures < 0 {
		return fmt.Errorf("breaker max failures cannot be negative")
	}

	switch c.Session.Driver {
	case SessionDriverMemory:
	case SessionDriverPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case SessionDriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required when session driver is redis")
		}
	default:
		return fmt.Errorf("invalid session driver: %s (must be memory, postgres, or redis)", c.Session.Driver)
	}

	if c.Cookies.Visitor == "" || c.Cookies.Token == "" || c.Cookies.Locale == "" {
		return fmt.Errorf("cookie names are required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
