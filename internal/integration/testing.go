// Package integration holds end-to-end tests that talk to the real Azure
// OpenAI deployment and the live search backend. They only build with
// -tags integration.
package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"finnguide/internal/infra/config"
)

// Config holds integration test configuration from the environment.
type Config struct {
	AzureKey      string
	AzureEndpoint string
	Deployment    string
	TestTimeout   time.Duration
	SkipSlow      bool
	Verbose       bool
}

// LoadConfig loads integration test configuration from the environment.
func LoadConfig() *Config {
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	if deployment == "" {
		deployment = "gpt-35-turbo-default"
	}
	return &Config{
		AzureKey:      os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
		Deployment:    deployment,
		TestTimeout:   2 * time.Minute,
		SkipSlow:      os.Getenv("SKIP_SLOW_TESTS") == "1",
		Verbose:       os.Getenv("FINNGUIDE_E2E_VERBOSE") == "1",
	}
}

// AppConfig returns a finnguide config pointing at the Azure deployment
// under test, with everything else at its defaults.
func (c *Config) AppConfig() *config.Config {
	cfg := config.Defaults()
	cfg.LLM.Providers[0].APIKey = c.AzureKey
	cfg.LLM.Providers[0].BaseURL = c.AzureEndpoint
	cfg.LLM.Providers[0].Deployment = c.Deployment
	cfg.Search.RateLimit = config.RateLimitConfig{RequestsPerMinute: 20, Burst: 1}
	return cfg
}

// Logger returns a debug logger when FINNGUIDE_E2E_VERBOSE=1.
func (c *Config) Logger() *slog.Logger {
	if !c.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SkipIfNoAzure skips the test unless the Azure key and endpoint are set.
func SkipIfNoAzure(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.AzureKey == "" || cfg.AzureEndpoint == "" {
		t.Skip("Skipping: AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT not set")
	}
}

// SkipIfShort skips integration tests in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
