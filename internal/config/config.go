package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the gateway-wide configuration loaded from the environment.
type Config struct {
	Port string

	// PublicBaseURL is the externally reachable base URL the telephony
	// provider delivers callbacks to. Call placement fails fast without it.
	PublicBaseURL string

	// Twilio credentials for the master account. Sub-account scoped calls
	// still authenticate with these.
	TwilioAccountSID string
	TwilioAuthToken  string

	// CountryCode is the ISO country used for number search.
	CountryCode string

	// DefaultCallerNumber is the fallback outbound caller ID for tenants
	// that have not reserved their own number yet.
	DefaultCallerNumber string

	// ProviderTimeout bounds every outbound call to the telephony provider.
	ProviderTimeout time.Duration

	// StoreTimeout bounds the persistence step of webhook handling so the
	// provider always gets a prompt acknowledgment.
	StoreTimeout time.Duration

	// ReminderPacing is the minimum delay between successive reminder
	// dispatches. Zero disables pacing (tests).
	ReminderPacing time.Duration

	// Number search limit clamp.
	NumberSearchMin int
	NumberSearchMax int

	// TenantTokenSecret signs/verifies the tenant-scoped JWT API tokens.
	TenantTokenSecret string
}

// LoadFromEnv loads the configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Port:                getEnvOrDefault("PORT", "8082"),
		PublicBaseURL:       getEnvOrDefault("PUBLIC_BASE_URL", ""),
		TwilioAccountSID:    getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		CountryCode:         getEnvOrDefault("TWILIO_COUNTRY_CODE", "US"),
		DefaultCallerNumber: getEnvOrDefault("DEFAULT_CALLER_NUMBER", ""),
		ProviderTimeout:     getEnvDurationOrDefault("PROVIDER_TIMEOUT_SECONDS", 15*time.Second),
		StoreTimeout:        getEnvDurationOrDefault("STORE_TIMEOUT_SECONDS", 2*time.Second),
		ReminderPacing:      getEnvDurationOrDefault("REMINDER_PACING_SECONDS", 2*time.Second),
		NumberSearchMin:     getEnvIntOrDefault("NUMBER_SEARCH_MIN", 5),
		NumberSearchMax:     getEnvIntOrDefault("NUMBER_SEARCH_MAX", 20),
		TenantTokenSecret:   getEnvOrDefault("TENANT_TOKEN_SECRET", ""),
	}
}

// getEnvOrDefault gets an environment variable or returns the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault gets an environment variable as int or returns the default.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault reads a whole-seconds environment variable as a
// duration or returns the default.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
