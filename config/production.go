// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values of DB_BACKEND
const (
	DatabaseBackendSQLite   = "sqlite"
	DatabaseBackendSupabase = "supabase"
	DatabaseBackendPostgres = "postgres"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Admin      AdminConfig      `json:"admin"`
	Email      EmailConfig      `json:"email"`
	Download   DownloadConfig   `json:"download"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Kafka      KafkaConfig      `json:"kafka"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Backend         string        `json:"backend"` // sqlite, supabase, postgres
	SQLitePath      string        `json:"sqlite_path"`
	URL             string        `json:"url"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per window
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
	HSTSMaxAge     int    `json:"hsts_max_age"`

	// Admin cookie
	CookieSecure   bool   `json:"cookie_secure"`
	CookieSameSite string `json:"cookie_samesite"`
	CookieDomain   string `json:"cookie_domain"`
}

type JWTConfig struct {
	SecretKey  string        `json:"secret_key"`
	PrivateKey string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey  string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	SessionTTL time.Duration `json:"session_ttl"`
	Issuer     string        `json:"issuer"`
	Audience   string        `json:"audience"`
}

type AdminConfig struct {
	Password       string        `json:"-"`
	PasswordHash   string        `json:"-"` // bcrypt, preferred over Password when set
	CaptchaEnabled bool          `json:"captcha_enabled"`
	CaptchaTTL     time.Duration `json:"captcha_ttl"`
	CaptchaPadding int           `json:"captcha_padding"`
}

type EmailConfig struct {
	Provider      string        `json:"provider"` // mock, resend
	APIKey        string        `json:"-"`
	APIBaseURL    string        `json:"api_base_url"`
	FromEmail     string        `json:"from_email"`
	FromName      string        `json:"from_name"`
	ReplyTo       string        `json:"reply_to"`
	RetryAttempts int           `json:"retry_attempts"`
	Timeout       time.Duration `json:"timeout"`
}

type DownloadConfig struct {
	BaseURL   string        `json:"base_url"`
	TokenTTL  time.Duration `json:"token_ttl"`
	SingleUse bool          `json:"single_use"`
	FileURL   string        `json:"file_url"`

	// Expired tokens are purged once they are older than CleanupRetention. Zero interval disables the job.
	CleanupInterval  time.Duration `json:"cleanup_interval"`
	CleanupRetention time.Duration `json:"cleanup_retention"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, console
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled          bool          `json:"enabled"`
	Provider         string        `json:"provider"` // redis, database
	RedisURL         string        `json:"redis_url"`
	RedisDB          int           `json:"redis_db"`
	RedisPrefix      string        `json:"redis_prefix"`
	HealthInterval   time.Duration `json:"health_interval"`
	OperationTimeout time.Duration `json:"operation_timeout"`
}

type KafkaConfig struct {
	Enabled        bool          `json:"enabled"`
	Brokers        []string      `json:"brokers"`
	AnalyticsTopic string        `json:"analytics_topic"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// IsDevelopment reports whether the service runs in a local or development environment
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "local" || d.Environment == "test"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := FromEnv()

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds the configuration from the process environment without validating it
func FromEnv() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			Backend:         strings.ToLower(getEnvString("DB_BACKEND", DatabaseBackendSQLite)),
			SQLitePath:      getEnvString("SQLITE_PATH", "data/landing.db"),
			URL:             getEnvString("DATABASE_URL", ""),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:    getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:        getEnvString("CSP_POLICY", "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none';"),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			HSTSMaxAge:       getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			CookieSecure:     getEnvBool("ADMIN_COOKIE_SECURE", true),
			CookieSameSite:   getEnvString("ADMIN_COOKIE_SAMESITE", "Lax"),
			CookieDomain:     getEnvString("ADMIN_COOKIE_DOMAIN", ""),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey: getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			SessionTTL: getEnvDuration("JWT_SESSION_TTL", 24*time.Hour),
			Issuer:     getEnvString("JWT_ISSUER", "ebook-landing"),
			Audience:   getEnvString("JWT_AUDIENCE", "ebook-landing-admin"),
		},
		Admin: AdminConfig{
			Password:       getEnvString("ADMIN_PASSWORD", ""),
			PasswordHash:   getEnvString("ADMIN_PASSWORD_HASH", ""),
			CaptchaEnabled: getEnvBool("ADMIN_CAPTCHA_ENABLED", false),
			CaptchaTTL:     getEnvDuration("ADMIN_CAPTCHA_TTL", 2*time.Minute),
			CaptchaPadding: getEnvInt("ADMIN_CAPTCHA_PADDING", 15),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnvString("EMAIL_PROVIDER", "mock")),
			APIKey:        getEnvString("EMAIL_API_KEY", ""),
			APIBaseURL:    getEnvString("EMAIL_API_BASE_URL", "https://api.resend.com"),
			FromEmail:     getEnvString("EMAIL_FROM_EMAIL", "noreply@example.com"),
			FromName:      getEnvString("EMAIL_FROM_NAME", "Free Ebook"),
			ReplyTo:       getEnvString("EMAIL_REPLY_TO", ""),
			RetryAttempts: getEnvInt("EMAIL_RETRY_ATTEMPTS", 2),
			Timeout:       getEnvDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Download: DownloadConfig{
			BaseURL:   strings.TrimRight(getEnvString("BASE_URL", "http://localhost:8080"), "/"),
			TokenTTL:  getEnvDuration("DOWNLOAD_TOKEN_TTL", 24*time.Hour),
			SingleUse: getEnvBool("DOWNLOAD_TOKEN_SINGLE_USE", false),
			FileURL:   getEnvString("DOWNLOAD_FILE_URL", ""),

			CleanupInterval:  getEnvDuration("DOWNLOAD_TOKEN_CLEANUP_INTERVAL", time.Hour),
			CleanupRetention: getEnvDuration("DOWNLOAD_TOKEN_RETENTION", 7*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:          getEnvBool("CACHE_ENABLED", false),
			Provider:         getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:         getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:          getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:      getEnvString("CACHE_REDIS_PREFIX", "landing:"),
			HealthInterval:   getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
			OperationTimeout: getEnvDuration("CACHE_OPERATION_TIMEOUT", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:        getEnvBool("KAFKA_ENABLED", false),
			Brokers:        getEnvStringSlice("KAFKA_BROKERS", []string{}),
			AnalyticsTopic: getEnvString("KAFKA_ANALYTICS_TOPIC", "landing.analytics"),
			WriteTimeout:   getEnvDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}
}

// loadEnvFile loads environment variables from the given file if it exists.
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	switch cfg.Database.Backend {
	case DatabaseBackendSQLite:
		if cfg.Database.SQLitePath == "" {
			errors = append(errors, "SQLITE_PATH is required for the sqlite backend")
		}
	case DatabaseBackendSupabase, DatabaseBackendPostgres:
		if cfg.Database.URL == "" {
			if cfg.Database.Host == "" {
				errors = append(errors, "DATABASE_URL or DB_HOST is required")
			}
			if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
				errors = append(errors, "DB_PORT must be between 1 and 65535")
			}
			if cfg.Database.User == "" {
				errors = append(errors, "DB_USER is required")
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("DB_BACKEND must be one of: %v", []string{DatabaseBackendSQLite, DatabaseBackendSupabase, DatabaseBackendPostgres}))
	}

	// Validate JWT configuration
	if !cfg.JWT.UseRSAKeys && len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.UseRSAKeys && (cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "") {
		errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
	}
	if cfg.JWT.SessionTTL <= 0 {
		errors = append(errors, "JWT_SESSION_TTL must be positive")
	}

	// Validate admin configuration
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		errors = append(errors, "ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate email configuration
	switch cfg.Email.Provider {
	case "mock":
	case "resend":
		if cfg.Email.APIKey == "" {
			errors = append(errors, "EMAIL_API_KEY is required for the resend provider")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required for the resend provider")
		}
	default:
		errors = append(errors, "EMAIL_PROVIDER must be one of: [mock resend]")
	}

	// Validate download configuration
	if cfg.Download.BaseURL == "" {
		errors = append(errors, "BASE_URL is required")
	}
	if cfg.Download.TokenTTL <= 0 {
		errors = append(errors, "DOWNLOAD_TOKEN_TTL must be positive")
	}
	if cfg.Download.CleanupInterval > 0 && cfg.Download.CleanupRetention < cfg.Download.TokenTTL {
		errors = append(errors, "DOWNLOAD_TOKEN_RETENTION must not be shorter than the token lifetime")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Validate kafka configuration if enabled
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			errors = append(errors, "KAFKA_BROKERS is required when kafka is enabled")
		}
		if cfg.Kafka.AnalyticsTopic == "" {
			errors = append(errors, "KAFKA_ANALYTICS_TOPIC is required when kafka is enabled")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
