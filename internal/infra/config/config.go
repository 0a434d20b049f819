package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Search SearchConfig `yaml:"search"`
	Agent  AgentConfig  `yaml:"agent"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	WebSocket         bool          `yaml:"websocket"`
	MCP               bool          `yaml:"mcp"`
}

// LLMConfig holds language model provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Temperature     float64              `yaml:"temperature"`
	MaxTokens       int                  `yaml:"max_tokens"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// FailoverConfig lists providers tried in order when the default one fails.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
//
// For type "azure", BaseURL is the resource endpoint
// (https://<resource>.openai.azure.com) and Deployment names the model
// deployment; Model is informational only.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Deployment  string        `yaml:"deployment,omitempty"`
	APIVersion  string        `yaml:"api_version,omitempty"`
	Region      string        `yaml:"region,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// SearchConfig holds web search backend settings.
type SearchConfig struct {
	Backend       string          `yaml:"backend"`
	DuckDuckGoURL string          `yaml:"duckduckgo_url"`
	SearXNGURL    string          `yaml:"searxng_url"`
	Region        string          `yaml:"region"`
	Timeout       time.Duration   `yaml:"timeout"`
	MaxResults    int             `yaml:"max_results"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Sites         SitesConfig     `yaml:"sites"`
}

// RateLimitConfig throttles outbound search requests. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// SitesConfig holds the site filters of the site-restricted search tools.
type SitesConfig struct {
	Apartment      string `yaml:"apartment"`
	ResidentPermit string `yaml:"resident_permit"`
	StudyProgramme string `yaml:"study_programme"`
}

// AgentConfig holds reasoning loop settings.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	// Timeout bounds one request's reasoning loop. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"service_name"`
}

// Defaults returns a Config matching the reference deployment: an Azure
// OpenAI chat deployment, DuckDuckGo search and a 15 step reasoning cap.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			WebSocket:         true,
			MCP:               false,
		},
		LLM: LLMConfig{
			DefaultProvider: "azure",
			Temperature:     0.0,
			Providers: []ProviderConfig{
				{
					Name:       "azure",
					Type:       "azure",
					Model:      "gpt-35-turbo",
					Deployment: "gpt-35-turbo-default",
					APIVersion: "2024-02-15-preview",
				},
			},
		},
		Search: SearchConfig{
			Backend:       "duckduckgo",
			DuckDuckGoURL: "https://html.duckduckgo.com/html/",
			SearXNGURL:    "http://localhost:8888",
			Region:        "wt-wt",
			Timeout:       10 * time.Second,
			MaxResults:    5,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 0,
				Burst:             1,
			},
			Sites: SitesConfig{
				Apartment:      "hoas.fi/en/",
				ResidentPermit: "hoas.fi/en/",
				StudyProgramme: "opintopolku.fi/konfo/en/",
			},
		},
		Agent: AgentConfig{
			MaxIterations: 15,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:     false,
			Exporter:    "noop",
			ServiceName: "finnguide",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, decrypts
// secrets and validates the result. A missing file is not an error: the
// defaults plus environment are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err == nil {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("FINNGUIDE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps FINNGUIDE_* env vars, plus the conventional
// OpenAI and Azure OpenAI variables, onto config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FINNGUIDE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FINNGUIDE_SERVER_MCP"); v != "" {
		cfg.Server.MCP = v == "true"
	}
	if v := os.Getenv("FINNGUIDE_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("FINNGUIDE_SEARCH_BACKEND"); v != "" {
		cfg.Search.Backend = v
	}
	if v := os.Getenv("FINNGUIDE_SEARCH_SEARXNG_URL"); v != "" {
		cfg.Search.SearXNGURL = v
	}
	if v := os.Getenv("FINNGUIDE_AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("FINNGUIDE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("FINNGUIDE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("FINNGUIDE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	for i := range cfg.LLM.Providers {
		applyProviderEnv(&cfg.LLM.Providers[i])
	}
}

// applyProviderEnv fills empty provider fields from the environment.
// FINNGUIDE_LLM_PROVIDER_<NAME>_API_KEY always wins; the vendor variables
// only fill gaps.
func applyProviderEnv(p *ProviderConfig) {
	switch p.Type {
	case "azure":
		setIfEmpty(&p.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
		setIfEmpty(&p.BaseURL, os.Getenv("AZURE_OPENAI_ENDPOINT"))
		if v := os.Getenv("OPENAI_API_VERSION"); v != "" {
			p.APIVersion = v
		}
	case "openai", "":
		setIfEmpty(&p.APIKey, os.Getenv("OPENAI_API_KEY"))
		setIfEmpty(&p.BaseURL, os.Getenv("OPENAI_BASE_URL"))
	case "bedrock":
		setIfEmpty(&p.Region, os.Getenv("AWS_REGION"))
	}

	envKey := fmt.Sprintf("FINNGUIDE_LLM_PROVIDER_%s_API_KEY", envName(p.Name))
	if v := os.Getenv(envKey); v != "" {
		p.APIKey = v
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// envName upper-cases a provider name and replaces characters that are not
// valid in environment variable names.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
