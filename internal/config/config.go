package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/lock"
	"github.com/forgo/nemesis/api/internal/model"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Matching  MatchingConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host          string
	Port          string
	TLS           bool
	Namespace     string
	Database      string
	User          string
	Password      string
	MigrationsDir string
	AutoMigrate   bool

	ConnectTimeout time.Duration
	ConnectRetries int
	QueryTimeout   time.Duration
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	TTL            time.Duration
	Issuer         string
}

// RedisConfig holds the optional distributed lock backend.
// When Host is empty, locks stay in process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MatchingConfig holds the matching policy and where it was loaded from
type MatchingConfig struct {
	Policy     model.MatchingPolicy
	PolicyFile string
}

// SchedulerConfig holds the batch cycle cadence
type SchedulerConfig struct {
	Enabled       bool
	Day           int // day of month, 1-28
	Hour          int // UTC
	Minute        int
	CheckInterval time.Duration
}

// NotifyConfig holds SMTP settings for match emails
type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	Timeout      time.Duration
}

// AdminConfig holds the service key for external cycle triggers
type AdminConfig struct {
	KeyHash string // bcrypt hash of the X-Admin-Key value
}

// RateLimitConfig holds the find-enemy rate limit
type RateLimitConfig struct {
	Rate   int
	Window time.Duration
	Burst  int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "8000"),
			TLS:           getBoolEnv("DB_TLS", false),
			Namespace:     getEnv("DB_NAMESPACE", "nemesis"),
			Database:      getEnv("DB_DATABASE", "main"),
			User:          getEnv("DB_USER", "root"),
			Password:      getEnv("DB_PASSWORD", "root"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getBoolEnv("DB_AUTO_MIGRATE", false),

			ConnectTimeout: getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
			ConnectRetries: getIntEnv("DB_CONNECT_RETRIES", 5),
			QueryTimeout:   getDurationEnv("DB_QUERY_TIMEOUT", 30*time.Second),
		},
		JWT: JWTConfig{
			PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
			PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			TTL:            getDurationEnv("JWT_TTL", time.Hour),
			Issuer:         getEnv("JWT_ISSUER", "nemesis.forgo.software"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getIntEnv("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Matching: MatchingConfig{
			Policy:     policyFromEnv(model.DefaultMatchingPolicy()),
			PolicyFile: getEnv("MATCHING_POLICY_FILE", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			Day:           getIntEnv("SCHEDULER_DAY", 1),
			Hour:          getIntEnv("SCHEDULER_HOUR", 9),
			Minute:        getIntEnv("SCHEDULER_MINUTE", 0),
			CheckInterval: getDurationEnv("SCHEDULER_CHECK_INTERVAL", time.Hour),
		},
		Notify: NotifyConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", "Nemesis <no-reply@nemesis.forgo.software>"),
			Timeout:      getDurationEnv("SMTP_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			KeyHash: getEnv("ADMIN_KEY_HASH", ""),
		},
		RateLimit: RateLimitConfig{
			Rate:   getIntEnv("RATE_LIMIT_FIND_ENEMY", 10),
			Window: getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			Burst:  getIntEnv("RATE_LIMIT_BURST", 5),
		},
	}

	if cfg.Matching.PolicyFile != "" {
		policy, err := LoadPolicyFile(cfg.Matching.PolicyFile, cfg.Matching.Policy)
		if err != nil {
			return nil, err
		}
		cfg.Matching.Policy = policy
	}

	return cfg, nil
}

// policyFromEnv overlays MATCHING_* variables on base
func policyFromEnv(base model.MatchingPolicy) model.MatchingPolicy {
	return model.MatchingPolicy{
		MinOverlap:      getIntEnv("MATCHING_MIN_OVERLAP", base.MinOverlap),
		ExclusionCycles: getIntEnv("MATCHING_EXCLUSION_CYCLES", base.ExclusionCycles),
		Mode:            model.SelectionMode(getEnv("MATCHING_MODE", string(base.Mode))),
		MirrorPairs:     getBoolEnv("MATCHING_MIRROR_PAIRS", base.MirrorPairs),
		MaxInbound:      getIntEnv("MATCHING_MAX_INBOUND", base.MaxInbound),
	}
}

// LoadPolicyFile reads a YAML policy file. Keys absent from the file keep
// their value from base.
func LoadPolicyFile(path string, base model.MatchingPolicy) (model.MatchingPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading policy file: %w", err)
	}

	policy := base
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return base, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return policy, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Enabled reports whether a Redis backend is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// ClientConfig converts the settings for database.NewSurrealDB
func (d DatabaseConfig) ClientConfig() database.Config {
	return database.Config{
		Host:           d.Host,
		Port:           d.Port,
		TLS:            d.TLS,
		User:           d.User,
		Password:       d.Password,
		Namespace:      d.Namespace,
		Database:       d.Database,
		ConnectTimeout: d.ConnectTimeout,
		ConnectRetries: d.ConnectRetries,
		QueryTimeout:   d.QueryTimeout,
	}
}

// LockConfig converts the settings for lock.NewRedisLocker
func (r RedisConfig) LockConfig() lock.Config {
	cfg := lock.DefaultConfig()
	cfg.Host = r.Host
	cfg.Port = r.Port
	cfg.Password = r.Password
	cfg.DB = r.DB
	return cfg
}

// SMTPEnabled reports whether match emails should go out over SMTP
func (n NotifyConfig) SMTPEnabled() bool {
	return n.SMTPHost != "" && n.SMTPUser != ""
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.Database.ConnectRetries < 0 {
		errs = append(errs, errors.New("DB_CONNECT_RETRIES must not be negative"))
	}

	// JWT validation
	if c.IsProduction() && c.JWT.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	// Matching validation
	if err := c.Matching.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching policy: %w", err))
	}

	// Scheduler validation
	if c.Scheduler.Enabled {
		if c.Scheduler.Day < 1 || c.Scheduler.Day > 28 {
			errs = append(errs, fmt.Errorf("SCHEDULER_DAY must be between 1 and 28, got %d", c.Scheduler.Day))
		}
		if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
			errs = append(errs, fmt.Errorf("SCHEDULER_HOUR must be between 0 and 23, got %d", c.Scheduler.Hour))
		}
		if c.Scheduler.Minute < 0 || c.Scheduler.Minute > 59 {
			errs = append(errs, fmt.Errorf("SCHEDULER_MINUTE must be between 0 and 59, got %d", c.Scheduler.Minute))
		}
		if c.Scheduler.CheckInterval <= 0 {
			errs = append(errs, errors.New("SCHEDULER_CHECK_INTERVAL must be positive"))
		}
	}

	// Notification validation
	if c.Notify.SMTPEnabled() {
		var missing []string
		if c.Notify.SMTPPassword == "" {
			missing = append(missing, "SMTP_PASSWORD")
		}
		if c.Notify.From == "" {
			missing = append(missing, "SMTP_FROM")
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("SMTP: missing required fields: %s", strings.Join(missing, ", ")))
		}
	}

	// Admin key must be a bcrypt hash, never the key itself
	if c.Admin.KeyHash != "" && !strings.HasPrefix(c.Admin.KeyHash, "$2") {
		errs = append(errs, errors.New("ADMIN_KEY_HASH must be a bcrypt hash (see nemesisctl hash-key)"))
	}

	if c.RateLimit.Rate <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_FIND_ENEMY must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
