package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateLLM(cfg, ve)
	validateSearch(cfg, ve)
	validateAgent(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port: %v", cfg.Server.Addr, err)
	}
	if cfg.Server.ReadHeaderTimeout < 0 {
		ve.Add("server.read_header_timeout must be >= 0")
	}
}

var validProviderTypes = map[string]bool{
	"openai":  true,
	"azure":   true,
	"bedrock": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		ve.Add("llm.temperature must be between 0 and 2")
	}
	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must configure at least one provider")
		return
	}

	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, azure, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && p.Type != "bedrock" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via FINNGUIDE_LLM_PROVIDER_%s_API_KEY)",
				i, p.Name, envName(p.Name))
		}
		switch p.Type {
		case "azure":
			if p.BaseURL == "" {
				ve.Add("llm.providers[%d] (%s): base_url is required for azure (or set AZURE_OPENAI_ENDPOINT)", i, p.Name)
			} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				ve.Add("llm.providers[%d] (%s): base_url %q is not an absolute URL", i, p.Name, p.BaseURL)
			}
			if p.Deployment == "" {
				ve.Add("llm.providers[%d] (%s): deployment is required for azure", i, p.Name)
			}
			if p.APIVersion == "" {
				ve.Add("llm.providers[%d] (%s): api_version is required for azure", i, p.Name)
			}
		case "bedrock":
			if p.Region == "" {
				ve.Add("llm.providers[%d] (%s): region is required for bedrock provider", i, p.Name)
			}
			if p.Model == "" {
				ve.Add("llm.providers[%d] (%s): model is required for bedrock provider", i, p.Name)
			}
		}
	}

	if cfg.LLM.DefaultProvider != "" && !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.Failover.Enabled {
		for _, name := range cfg.LLM.Failover.Fallbacks {
			if !seen[name] {
				ve.Add("llm.failover.fallbacks: unknown provider %q", name)
			}
		}
	}
}

func validateSearch(cfg *Config, ve *ValidationError) {
	s := cfg.Search
	switch s.Backend {
	case "duckduckgo":
		if s.DuckDuckGoURL == "" {
			ve.Add("search.duckduckgo_url must not be empty")
		}
	case "searxng":
		if s.SearXNGURL == "" {
			ve.Add("search.searxng_url must not be empty when backend is searxng")
		}
	default:
		ve.Add("search.backend %q is invalid (want: duckduckgo, searxng)", s.Backend)
	}
	if s.Timeout < 0 {
		ve.Add("search.timeout must be >= 0")
	}
	if s.MaxResults <= 0 {
		ve.Add("search.max_results must be > 0")
	}
	if s.RateLimit.RequestsPerMinute < 0 {
		ve.Add("search.rate_limit.requests_per_minute must be >= 0")
	}
	if s.RateLimit.RequestsPerMinute > 0 && s.RateLimit.Burst <= 0 {
		ve.Add("search.rate_limit.burst must be > 0 when rate limiting is enabled")
	}
	if s.Sites.Apartment == "" || s.Sites.ResidentPermit == "" || s.Sites.StudyProgramme == "" {
		ve.Add("search.sites: apartment, resident_permit and study_programme must all be set")
	}
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.MaxIterations <= 0 {
		ve.Add("agent.max_iterations must be > 0")
	}
	if cfg.Agent.Timeout < 0 {
		ve.Add("agent.timeout must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, noop)", cfg.Tracer.Exporter)
	}
}
