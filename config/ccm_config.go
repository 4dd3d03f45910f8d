package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MailProvider selects the mail gateway variant.
const (
	MailProviderGmail = "gmail"
	MailProviderIMAP  = "imap"
)

// CacheProvider selects the report cache variant.
const (
	CacheProviderMemory = "memory"
	CacheProviderRemote = "remote"
)

type Config struct {
	Port        string
	Environment string

	// Logging
	LogLevel    string
	LogFilePath string

	// Mailbox
	MailProvider       string
	MailUser           string
	MailSubjectPattern string
	ProcessedMarker    string

	// Gmail OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	// IMAP fallback
	IMAPHost     string
	IMAPPort     int
	IMAPPassword string
	IMAPTLS      bool

	// Drive
	AttachmentsFolderID string

	// Database
	DatabaseDSN string
	RedisURL    string

	// Cache
	CacheProvider string
	CacheTTL      time.Duration

	// Reports
	BranchID        int
	AllowedBranches []int
	UpcomingWindow  int

	// Sync
	StateDir string

	// Retry
	RetryMaxAttempts int

	// Scheduler
	SchedulerEnabled bool
	SchedulerSpec    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFilePath: getEnv("LOG_FILE_PATH", ""),

		MailProvider:       getEnv("MAIL_PROVIDER", MailProviderGmail),
		MailUser:           getEnv("MAIL_USER", ""),
		MailSubjectPattern: getEnv("MAIL_SUBJECT_PATTERN", "Misioneros que llegan"),
		ProcessedMarker:    getEnv("PROCESSED_MARKER", "misioneros-procesados"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPTLS:      getEnvBool("IMAP_TLS", true),

		AttachmentsFolderID: getEnv("ATTACHMENTS_FOLDER_ID", ""),

		DatabaseDSN: getEnv("DB_DSN", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		CacheProvider: getEnv("CACHE_PROVIDER", CacheProviderMemory),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_MINUTES", 30)) * time.Minute,

		BranchID:        getEnvInt("BRANCH_ID", 0),
		AllowedBranches: getEnvIntSlice("ALLOWED_BRANCHES", nil),
		UpcomingWindow:  getEnvInt("UPCOMING_WINDOW_DAYS", 14),

		StateDir: getEnv("SYNC_STATE_DIR", "data/sync_state"),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerSpec:    getEnv("SCHEDULER_CRON", "0 */6 * * *"),
	}

	if cfg.CacheProvider != CacheProviderMemory && cfg.CacheProvider != CacheProviderRemote {
		return nil, fmt.Errorf("unknown CACHE_PROVIDER %q", cfg.CacheProvider)
	}
	if cfg.CacheProvider == CacheProviderRemote && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when CACHE_PROVIDER=remote")
	}
	if cfg.MailProvider != MailProviderGmail && cfg.MailProvider != MailProviderIMAP {
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		result = append(result, n)
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
