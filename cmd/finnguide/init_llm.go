package main

import (
	"context"
	"fmt"
	"log/slog"

	"finnguide/internal/adapter/llm"
	"finnguide/internal/domain"
	"finnguide/internal/infra/config"
)

// LLMComponents holds the provider registry and the provider the agent
// talks to.
type LLMComponents struct {
	Registry   *llm.Registry
	DefaultLLM domain.LLMProvider
}

// initLLM registers every configured provider, wraps each with a circuit
// breaker when enabled and resolves the default provider with its
// failover chain.
func initLLM(ctx context.Context, cfg *config.Config, log *slog.Logger) (*LLMComponents, error) {
	registry := llm.NewRegistry(log)

	cbCfg := cfg.LLM.CircuitBreaker
	for _, pc := range cfg.LLM.Providers {
		provider, err := createLLMProvider(ctx, pc, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
		if cbCfg.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, cbCfg, log)
		}
		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cbCfg.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cbCfg.MaxFailures,
			"timeout", cbCfg.Timeout,
			"interval", cbCfg.Interval,
		)
	}

	var fallbacks []string
	if cfg.LLM.Failover.Enabled {
		fallbacks = cfg.LLM.Failover.Fallbacks
	}
	defaultLLM, err := registry.Resolve(cfg.LLM.DefaultProvider, fallbacks)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) > 0 {
		log.Info("model failover enabled", "fallbacks", fallbacks)
	}

	return &LLMComponents{
		Registry:   registry,
		DefaultLLM: defaultLLM,
	}, nil
}

func createLLMProvider(ctx context.Context, pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "azure", "openai", "":
		return llm.NewOpenAIProvider(pc, log), nil
	case "bedrock":
		return createBedrockProvider(ctx, pc, log)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", pc.Type)
	}
}
