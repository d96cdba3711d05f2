package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultOutputFile is where the analyzer writes its JSON report unless told otherwise
const DefaultOutputFile = "controversy_analysis.json"

// DefaultKeywords is the curated list of sensitive keywords searched for
var DefaultKeywords = []string{
	"abortion",
	"gun control",
	"immigration",
	"election fraud",
	"vaccine",
	"racism",
	"religion",
	"transgender",
	"climate change",
	"police",
	"protest",
	"israel",
	"palestine",
	"riot",
	"conspiracy",
	"woke",
	"hate",
	"terrorist",
	"fake news",
	"censorship",
}

// Config holds all configuration for the application
type Config struct {
	Debug bool

	// API credentials
	TwitterBearerToken string
	OpenAIAPIKey       string

	// Upstream endpoints, overridable for proxies and tests
	TwitterBaseURL string
	OpenAIBaseURL  string

	// Keywords to search for
	Keywords []string

	// Search behaviour
	RateLimitWait       time.Duration
	MaxRateLimitRetries int // 0 means retry until the search API lets us through

	// Classifier
	OpenAIModel         string
	Temperature         float64 // 0 is sent as a small positive value, see analysis.MinTemperature
	MaxTokens           int
	ClassifyConcurrency int

	// Report archive; Azure Blob Storage when StorageAccount is set, ReportDir otherwise
	StorageAccount   string
	StorageContainer string
	ReportDir        string
	ReportRetention  int // reports kept per account, 0 keeps all

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Watch mode
	Port           string
	ReportSchedule string // "daily" or "weekly"
	WatchAccounts  []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getBoolEnv("DEBUG", false),

		TwitterBearerToken: getEnv("X_BEARER_TOKEN", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),

		TwitterBaseURL: getEnv("X_API_BASE_URL", "https://api.twitter.com"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		Keywords: getSliceEnv("KEYWORDS", DefaultKeywords),

		RateLimitWait:       getDurationEnv("RATE_LIMIT_WAIT", 60*time.Second),
		MaxRateLimitRetries: getIntEnv("X_MAX_RATE_LIMIT_RETRIES", 0),

		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Temperature:         getFloatEnv("OPENAI_TEMPERATURE", 0.3),
		MaxTokens:           getIntEnv("OPENAI_MAX_TOKENS", 500),
		ClassifyConcurrency: getIntEnv("CLASSIFY_CONCURRENCY", 1),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "controversy-reports"),
		ReportDir:        getEnv("REPORT_DIR", "data"),
		ReportRetention:  getIntEnv("REPORT_RETENTION", 30),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		Port:           getEnv("PORT", "8080"),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "daily"),
		WatchAccounts:  getSliceEnv("WATCH_ACCOUNTS", nil),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TwitterBearerToken == "" {
		return fmt.Errorf("X_BEARER_TOKEN environment variable not set")
	}

	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	if len(c.Keywords) == 0 {
		return fmt.Errorf("KEYWORDS must contain at least one keyword")
	}

	if c.MaxRateLimitRetries < 0 {
		return fmt.Errorf("X_MAX_RATE_LIMIT_RETRIES must not be negative")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be between 0 and 2")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// ValidateWatch checks the settings that only the scheduled bot needs
func (c *Config) ValidateWatch() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if len(c.WatchAccounts) == 0 {
		return fmt.Errorf("WATCH_ACCOUNTS must list at least one account")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
