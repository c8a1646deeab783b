package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config represents the application configuration
type Config struct {
	ServiceName string
	Server      ServerConfig
	API         APIConfig
	Composer    ComposerConfig
	Session     SessionConfig
	JWT         JWTConfig
	DB          DBConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// APIConfig holds the upstream inventory API settings
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ComposerConfig holds purchase order page settings
type ComposerConfig struct {
	RecentOrdersLimit int
	SuccessBannerTTL  time.Duration
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	Store         string
	CookieName    string
	TTL           time.Duration
	// SweepInterval is how often expired sessions and their workspaces are released
	SweepInterval time.Duration
}

// JWTConfig holds JWT configuration. An empty signing key disables signature checks.
type JWTConfig struct {
	SigningKey string
}

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

const (
	// SessionStoreMemory keeps sessions in process memory
	SessionStoreMemory = "memory"
	// SessionStorePostgres keeps sessions in PostgreSQL through gorm
	SessionStorePostgres = "postgres"
)

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "procurement-service"),
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8085"),
			Env:  getEnv("APP_ENV", "development"),
		},
		API: APIConfig{
			BaseURL: getEnv("INVENTORY_API_URL", "http://127.0.0.1:8000"),
			Timeout: getEnvAsDuration("INVENTORY_API_TIMEOUT", 15*time.Second),
		},
		Composer: ComposerConfig{
			RecentOrdersLimit: getEnvAsInt("RECENT_ORDERS_LIMIT", 5),
			SuccessBannerTTL:  getEnvAsDuration("SUCCESS_BANNER_TTL", 3*time.Second),
		},
		Session: SessionConfig{
			Store:         getEnv("SESSION_STORE", SessionStoreMemory),
			CookieName:    getEnv("SESSION_COOKIE_NAME", "po_session"),
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
		},
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "procurement_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "error"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "procurement"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Store {
	case SessionStoreMemory, SessionStorePostgres:
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Session.Store)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("INVENTORY_API_URL must not be empty")
	}
	if c.Composer.RecentOrdersLimit <= 0 {
		return fmt.Errorf("RECENT_ORDERS_LIMIT must be positive, got %d", c.Composer.RecentOrdersLimit)
	}
	return nil
}

// LogConfig returns the configuration as zap fields
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("inventory_api", c.API.BaseURL),
		zap.String("session_store", c.Session.Store),
	}
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
