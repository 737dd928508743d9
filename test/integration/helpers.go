//go:build integration

package integration

import (
	"os"
	"time"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	AuthURL    string
	ServerName string
	Timeout    time.Duration
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables. The cloud
// credentials themselves come from the usual OS_* variables.
func LoadTestConfig() *TestConfig {
	timeout := 2 * time.Minute

	if raw := os.Getenv("OSAPI_IT_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}

	return &TestConfig{
		AuthURL:    os.Getenv("OS_AUTH_URL"),
		ServerName: os.Getenv("OSAPI_IT_SERVER_NAME"),
		Timeout:    timeout,
		Verbose:    os.Getenv("OSAPI_VERBOSE") == "true",
	}
}
