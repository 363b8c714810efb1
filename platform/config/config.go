// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	IsSchedulerEmbedded() bool
}

// CacheConfig provides settings for the directory read-through cache.
type CacheConfig interface {
	GetRedisURL() string
	GetDirectoryCacheTTL() time.Duration
	IsDirectoryCacheEnabled() bool
}

// EmailConfig provides settings for SMTP delivery of notifications.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketFollowUpArchive() string
	IsMinIOEnabled() bool
}

// FollowUpConfig provides tuning for the follow-up scheduling engine.
type FollowUpConfig interface {
	GetFollowUpLocation() *time.Location
	GetDependencyTimeout() time.Duration
	GetBulkConcurrency() int
	GetBulkRatePerSecond() float64
	GetListFetchLimit() int
	GetReminderLead() time.Duration
	GetRulesFile() string
}

// NotificationConfig provides settings for rendering notification links.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// PhoneConfig provides the default region for phone normalization.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// Config holds all application configuration.
type Config struct {
	Env                        string
	HTTPAddr                   string
	AppBaseURL                 string
	DatabaseURL                string
	JWTAccessSecret            string
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	RedisURL                   string
	RedisTLSInsecure           bool
	AsynqQueueName             string
	AsynqConcurrency           int
	SchedulerEmbedded          bool
	DirectoryCacheTTL          time.Duration
	EmailEnabled               bool
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	EmailFromName              string
	EmailFromAddress           string
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketFollowUpArchive string
	FollowUpLocation           *time.Location
	DependencyTimeout          time.Duration
	BulkConcurrency            int
	BulkRatePerSecond          float64
	ListFetchLimit             int
	ReminderLead               time.Duration
	RulesFile                  string
	PhoneDefaultRegion         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEmbedded() bool  { return c.SchedulerEmbedded }

// CacheConfig implementation
func (c *Config) GetDirectoryCacheTTL() time.Duration { return c.DirectoryCacheTTL }
func (c *Config) IsDirectoryCacheEnabled() bool {
	return c.RedisURL != "" && c.DirectoryCacheTTL > 0
}

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketFollowUpArchive() string {
	return c.MinioBucketFollowUpArchive
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// FollowUpConfig implementation
func (c *Config) GetFollowUpLocation() *time.Location  { return c.FollowUpLocation }
func (c *Config) GetDependencyTimeout() time.Duration  { return c.DependencyTimeout }
func (c *Config) GetBulkConcurrency() int              { return c.BulkConcurrency }
func (c *Config) GetBulkRatePerSecond() float64        { return c.BulkRatePerSecond }
func (c *Config) GetListFetchLimit() int               { return c.ListFetchLimit }
func (c *Config) GetReminderLead() time.Duration       { return c.ReminderLead }
func (c *Config) GetRulesFile() string                 { return c.RulesFile }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	location, err := time.LoadLocation(getEnv("FOLLOWUP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid FOLLOWUP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		AppBaseURL:                 strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		JWTAccessSecret:            getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:           mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SchedulerEmbedded:          strings.EqualFold(getEnv("SCHEDULER_EMBEDDED", "false"), "true"),
		DirectoryCacheTTL:          mustDuration(getEnv("DIRECTORY_CACHE_TTL", "5m")),
		EmailEnabled:               emailEnabled && smtpHost != "",
		SMTPHost:                   smtpHost,
		SMTPPort:                   mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		EmailFromName:              getEnv("EMAIL_FROM_NAME", "Follow-ups"),
		EmailFromAddress:           getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketFollowUpArchive: getEnv("MINIO_BUCKET_FOLLOWUP_ARCHIVE", "followup-archive"),
		FollowUpLocation:           location,
		DependencyTimeout:          mustDuration(getEnv("FOLLOWUP_DEPENDENCY_TIMEOUT", "5s")),
		BulkConcurrency:            mustInt(getEnv("FOLLOWUP_BULK_CONCURRENCY", "4")),
		BulkRatePerSecond:          mustFloat(getEnv("FOLLOWUP_BULK_RATE_PER_SEC", "10")),
		ListFetchLimit:             mustInt(getEnv("FOLLOWUP_LIST_FETCH_LIMIT", "1000")),
		ReminderLead:               mustDuration(getEnv("FOLLOWUP_REMINDER_LEAD", "15m")),
		RulesFile:                  getEnv("FOLLOWUP_RULES_FILE", ""),
		PhoneDefaultRegion:         getEnv("PHONE_DEFAULT_REGION", "US"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.DependencyTimeout <= 0 {
		return nil, fmt.Errorf("FOLLOWUP_DEPENDENCY_TIMEOUT must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
