// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Auth       AuthConfig
	Worker     WorkerConfig
	GitHub     GitHubConfig
	Engine     EngineConfig
	Encryption EncryptionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// IsProduction returns true in a production deployment.
func (c AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig holds authentication configuration. Token issuance is owned
// by the identity service; this API only verifies bearer tokens.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

// GitHubConfig holds code-search provider configuration.
type GitHubConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// MinInterval is the minimum spacing between consecutive provider
	// calls within a single scan.
	MinInterval time.Duration
	// PerPage is the page size requested from the search API.
	PerPage int
	// MaxHitsPerQuery caps the total hits collected across pages for one
	// query; excess pages are not fetched.
	MaxHitsPerQuery int
	// MaxRetries bounds retries of a quota-limited query before the
	// query is skipped.
	MaxRetries int
	// DefaultBackoff is used when the provider gives no Retry-After hint.
	DefaultBackoff time.Duration
	// FetchContent enables fetching file content for raw context.
	FetchContent bool
}

// EngineConfig holds scan engine configuration.
type EngineConfig struct {
	// ExcludedPathPrefixes are file path prefixes dropped during
	// candidate extraction (vendored dependencies and similar noise).
	ExcludedPathPrefixes []string
	// SensitiveExtensions raise a finding's risk score when the file
	// path carries one of them.
	SensitiveExtensions []string
	// MaxFindingsPerFile caps findings extracted from a single file.
	MaxFindingsPerFile int
	// RawContentLimit truncates stored raw context to this many bytes.
	RawContentLimit int
}

// EncryptionConfig holds credential encryption configuration.
type EncryptionConfig struct {
	// Key is a hex-encoded 32-byte AES key. Empty key disables
	// encryption (development only).
	Key string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "leeky"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20), // 1MB default
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "leeky"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "leeky"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "leeky"),
		},
		Worker: WorkerConfig{
			Enabled:     getEnvBool("WORKER_ENABLED", true),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		},
		GitHub: GitHubConfig{
			BaseURL:         getEnv("GITHUB_BASE_URL", "https://api.github.com"),
			RequestTimeout:  getEnvDuration("GITHUB_REQUEST_TIMEOUT", 10*time.Second),
			MinInterval:     getEnvDuration("GITHUB_MIN_INTERVAL", 2*time.Second),
			PerPage:         getEnvInt("GITHUB_PER_PAGE", 15),
			MaxHitsPerQuery: getEnvInt("GITHUB_MAX_HITS_PER_QUERY", 100),
			MaxRetries:      getEnvInt("GITHUB_MAX_RETRIES", 3),
			DefaultBackoff:  getEnvDuration("GITHUB_DEFAULT_BACKOFF", 30*time.Second),
			FetchContent:    getEnvBool("GITHUB_FETCH_CONTENT", true),
		},
		Engine: EngineConfig{
			ExcludedPathPrefixes: getEnvList("ENGINE_EXCLUDED_PATHS", []string{
				"vendor/", "node_modules/", "third_party/", "dist/", "build/",
			}),
			SensitiveExtensions: getEnvList("ENGINE_SENSITIVE_EXTENSIONS", []string{
				".env", ".config", ".yml", ".yaml", ".json", ".ini", ".properties",
			}),
			MaxFindingsPerFile: getEnvInt("ENGINE_MAX_FINDINGS_PER_FILE", 5),
			RawContentLimit:    getEnvInt("ENGINE_RAW_CONTENT_LIMIT", 500),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) validate() error {
	if c.App.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.Encryption.Key == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production")
		}
	}
	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		return fmt.Errorf("GITHUB_PER_PAGE must be between 1 and 100")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
