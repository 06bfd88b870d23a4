package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the vault service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	GCP      GCPConfig
	NATS     NATSConfig
	Vault    VaultConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional idempotency cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// GCPConfig holds GCP-specific configuration
type GCPConfig struct {
	ProjectID string
	// Credentials are loaded via Workload Identity - no explicit credentials needed
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	Enabled bool
	URL     string
}

// VaultConfig holds key management and workflow configuration
type VaultConfig struct {
	// MasterKeySource selects where the system master key comes from:
	// "env" reads MasterKeyEnvVar, "gcp" fetches MasterKeySecretName from
	// Secret Manager.
	MasterKeySource      string
	MasterKeyEnvVar      string
	MasterKeySecretName  string
	FulfillmentBaseURL   string
	IdempotencyRetention time.Duration
	IdempotencyCacheTTL  time.Duration
	SweepInterval        time.Duration
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "devtest"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "vault_service"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		GCP: GCPConfig{
			ProjectID: getEnv("GCP_PROJECT_ID", ""),
		},
		NATS: NATSConfig{
			Enabled: getBoolEnv("NATS_ENABLED", true),
			URL:     getEnv("NATS_URL", "nats://nats:4222"),
		},
		Vault: VaultConfig{
			MasterKeySource:      getEnv("MASTER_KEY_SOURCE", "env"),
			MasterKeyEnvVar:      getEnv("MASTER_KEY_ENV_VAR", "VAULT_MASTER_KEY"),
			MasterKeySecretName:  getEnv("MASTER_KEY_SECRET_NAME", "vault-master-key"),
			FulfillmentBaseURL:   getEnv("FULFILLMENT_BASE_URL", "http://localhost:8080/api/v1"),
			IdempotencyRetention: getDurationEnv("IDEMPOTENCY_RETENTION", 24*time.Hour),
			IdempotencyCacheTTL:  getDurationEnv("IDEMPOTENCY_CACHE_TTL", 1*time.Hour),
			SweepInterval:        getDurationEnv("IDEMPOTENCY_SWEEP_INTERVAL", 15*time.Minute),
		},
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + c.SSLMode
}

// IsProd returns true if running in production environment
func (c *ServerConfig) IsProd() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// Helper functions

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
