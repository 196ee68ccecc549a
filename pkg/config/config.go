package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Outbound mail
	Email EmailConfig

	// Statutory reporting
	Reporting ReportingConfig

	// Trigger and staff credentials
	Auth AuthConfig

	// Optional SNS topic for staff alerts
	Alerts AlertsConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EmailConfig selects and configures the mail provider
type EmailConfig struct {
	Provider string // ses, smtp, http, log
	From     string
	FromName string

	// SES
	AWSRegion string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// HTTP mail API (POST {to, subject, content})
	APIURL string
	APIKey string

	// Sends per second across all replicas
	RatePerSecond int
}

// ReportingConfig holds the statutory reporting rules that vary per office
type ReportingConfig struct {
	// Office mailbox: sender of seller reports and recipient of internal alerts
	SenderFallbackAddress string
	SiteBaseURL           string

	TimeZone     string
	HolidaysFile string

	ItemTimeout        time.Duration
	LockTTL            time.Duration
	WarningDays        int
	AlertWindowDays    int
	StatsCacheTTL      time.Duration
	ReminderStaleDays  int
	ReminderProgressLT int

	// Cron expressions (with seconds)
	ReportsSchedule   string
	AlertsSchedule    string
	RemindersSchedule string
	ReformSchedule    string
	TeamSchedule      string
}

// AuthConfig holds the shared secrets
type AuthConfig struct {
	CronSecret     string
	StaffJWTSecret string
}

// AlertsConfig holds the optional SNS fan-out for staff alerts
type AlertsConfig struct {
	SNSTopicARN string
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			From:          getEnv("EMAIL_FROM", ""),
			FromName:      getEnv("EMAIL_FROM_NAME", "センチュリー21ホームマート"),
			AWSRegion:     getEnv("AWS_REGION", "ap-northeast-1"),
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:  getEnv("SMTP_USERNAME", ""),
			SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
			APIURL:        getEnv("EMAIL_API_URL", ""),
			APIKey:        getEnv("EMAIL_API_KEY", ""),
			RatePerSecond: getEnvAsInt("EMAIL_RATE_PER_SECOND", 10),
		},

		Reporting: ReportingConfig{
			SenderFallbackAddress: getEnv("ADMIN_EMAIL", "admin@example.com"),
			SiteBaseURL:           strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
			TimeZone:              getEnv("BUSINESS_TIMEZONE", "Asia/Tokyo"),
			HolidaysFile:          getEnv("HOLIDAYS_FILE", ""),
			ItemTimeout:           getEnvAsDuration("REPORT_ITEM_TIMEOUT", "30s"),
			LockTTL:               getEnvAsDuration("REPORT_LOCK_TTL", "30m"),
			WarningDays:           getEnvAsInt("REINS_WARNING_DAYS", 3),
			AlertWindowDays:       getEnvAsInt("REINS_ALERT_WINDOW_DAYS", 7),
			StatsCacheTTL:         getEnvAsDuration("STATS_CACHE_TTL", "1m"),
			ReminderStaleDays:     getEnvAsInt("REMINDER_STALE_DAYS", 7),
			ReminderProgressLT:    getEnvAsInt("REMINDER_PROGRESS_BELOW", 50),
			ReportsSchedule:       getEnv("SCHEDULE_REPORTS", "0 0 9 * * *"),
			AlertsSchedule:        getEnv("SCHEDULE_ALERTS", "0 5 9 * * *"),
			RemindersSchedule:     getEnv("SCHEDULE_REMINDERS", "0 10 9 * * *"),
			ReformSchedule:        getEnv("SCHEDULE_REFORM", "0 15 9 * * *"),
			TeamSchedule:          getEnv("SCHEDULE_TEAM", "0 30 8 * * MON"),
		},

		Auth: AuthConfig{
			CronSecret:     getEnv("CRON_SECRET", ""),
			StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),
		},

		Alerts: AlertsConfig{
			SNSTopicARN: getEnv("ALERT_SNS_TOPIC_ARN", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the business time zone used to decide "today"
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reporting.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Email.Provider {
	case "ses", "smtp", "http", "log":
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of: ses, smtp, http, log")
	}

	if c.Email.Provider == "smtp" && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required for the smtp provider")
	}
	if c.Email.Provider == "http" && c.Email.APIURL == "" {
		return fmt.Errorf("EMAIL_API_URL is required for the http provider")
	}

	if _, err := time.LoadLocation(c.Reporting.TimeZone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}

	// Production must not run with open trigger endpoints
	if c.Env == "production" && c.Auth.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required in production")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Explicit file from --config wins
	if path := os.Getenv("HOMEMART_ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
		return
	}

	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
