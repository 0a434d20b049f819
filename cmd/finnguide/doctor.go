package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finnguide/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string
}

// Check is a named health check.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

// doctor runs checks against a loaded (or failed) config.
type doctor struct {
	client *http.Client
	out    io.Writer
}

func newDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on the configuration and upstream services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			d := &doctor{client: &http.Client{Timeout: 10 * time.Second}, out: cmd.OutOrStdout()}
			return d.run(ctx, *cfgPath)
		},
	}
}

func (d *doctor) run(ctx context.Context, cfgPath string) error {
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "LLM connectivity", Fn: d.checkLLMConnectivity},
		{Name: "Search backend", Fn: d.checkSearchBackend},
	}

	fmt.Fprintln(d.out, "finnguide doctor")
	fmt.Fprintln(d.out, strings.Repeat("=", 50))
	fmt.Fprintln(d.out)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(d.out, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(d.out, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, strings.Repeat("-", 50))
	fmt.Fprintf(d.out, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loaded.
// A missing file is only a warning since defaults plus env can suffice.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and the FINNGUIDE_* environment",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies every non-bedrock provider has an API key.
func checkLLMAPIKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	var withKey, withoutKey []string
	for _, p := range cfg.LLM.Providers {
		switch {
		case p.Type == "bedrock":
			withKey = append(withKey, p.Name+" (aws credentials)")
		case p.APIKey != "":
			withKey = append(withKey, p.Name)
		default:
			withoutKey = append(withoutKey, p.Name)
		}
	}

	if len(withKey) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API keys found for providers: %s", strings.Join(withoutKey, ", ")),
			Fix:     "Set FINNGUIDE_LLM_PROVIDER_<NAME>_API_KEY or AZURE_OPENAI_API_KEY",
		}
	}
	if len(withoutKey) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("keys configured for [%s]; missing for [%s]", strings.Join(withKey, ", "), strings.Join(withoutKey, ", ")),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API keys configured for: %s", strings.Join(withKey, ", ")),
	}
}

// checkLLMConnectivity tests that the default provider's endpoint answers.
func (d *doctor) checkLLMConnectivity(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	var provider *config.ProviderConfig
	for i := range cfg.LLM.Providers {
		if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
			provider = &cfg.LLM.Providers[i]
			break
		}
	}
	if provider == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("default provider %q not found in config", cfg.LLM.DefaultProvider),
		}
	}

	endpoint := providerEndpoint(provider)
	if endpoint == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no known endpoint for provider type %q; skipping", provider.Type),
		}
	}
	return d.probe(ctx, provider.Name, endpoint)
}

// providerEndpoint returns a URL that answers any HTTP request when the
// provider host is reachable.
func providerEndpoint(p *config.ProviderConfig) string {
	switch p.Type {
	case "azure":
		return strings.TrimRight(p.BaseURL, "/")
	case "openai", "":
		if p.BaseURL != "" {
			return strings.TrimRight(p.BaseURL, "/")
		}
		return "https://api.openai.com/v1/models"
	case "bedrock":
		if p.Region == "" {
			return ""
		}
		return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/", p.Region)
	default:
		return ""
	}
}

// checkSearchBackend tests that the configured search endpoint answers.
func (d *doctor) checkSearchBackend(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	endpoint := cfg.Search.DuckDuckGoURL
	if cfg.Search.Backend == "searxng" {
		endpoint = cfg.Search.SearXNGURL
	}
	result := d.probe(ctx, cfg.Search.Backend, endpoint)
	if result.Status == StatusFail && cfg.Search.Backend == "searxng" {
		result.Fix = "Start SearXNG: docker run -d -p 8888:8080 searxng/searxng"
	}
	return result
}

// probe issues a GET to endpoint. Any HTTP response counts as reachable.
func (d *doctor) probe(ctx context.Context, name, endpoint string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid endpoint %q: %v", endpoint, err)}
	}

	resp, err := d.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and firewall settings",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (HTTP %d, latency: %dms)", name, resp.StatusCode, latency.Milliseconds()),
	}
}
