// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	ExtractionModel string
	ExtractTimeout  time.Duration
	ExtractRetries  int

	// Salesforce settings
	SalesforceInstanceURL  string
	SalesforceClientID     string
	SalesforceClientSecret string
	SalesforceRefreshToken string
	CRMTimeout             time.Duration

	// Session settings
	SessionStore       string // "memory" or "bolt"
	SessionBoltPath    string
	SessionTTL         time.Duration
	SessionIdleTimeout time.Duration
	SessionGracePeriod time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		ExtractionModel: getEnv("EXTRACTION_MODEL", ""),
		ExtractTimeout:  getDurationEnv("EXTRACT_TIMEOUT", 45*time.Second),
		ExtractRetries:  getIntEnv("EXTRACT_RETRIES", 2),

		// Salesforce
		SalesforceInstanceURL:  getEnv("SALESFORCE_INSTANCE_URL", ""),
		SalesforceClientID:     getEnv("SALESFORCE_CLIENT_ID", ""),
		SalesforceClientSecret: getEnv("SALESFORCE_CLIENT_SECRET", ""),
		SalesforceRefreshToken: getEnv("SALESFORCE_REFRESH_TOKEN", ""),
		CRMTimeout:             getDurationEnv("CRM_TIMEOUT", 30*time.Second),

		// Sessions
		SessionStore:       getEnv("SESSION_STORE", "memory"),
		SessionBoltPath:    getEnv("SESSION_BOLT_PATH", "data/sessions.bolt"),
		SessionTTL:         getDurationEnv("SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionGracePeriod: getDurationEnv("SESSION_GRACE_PERIOD", time.Hour),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// IsSalesforceConfigured reports whether all OAuth credentials are present.
func (c *Config) IsSalesforceConfigured() bool {
	return c.SalesforceInstanceURL != "" &&
		c.SalesforceClientID != "" &&
		c.SalesforceClientSecret != "" &&
		c.SalesforceRefreshToken != ""
}

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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
