//go:build bedrock

package main

import (
	"context"
	"log/slog"

	"finnguide/internal/adapter/llm"
	"finnguide/internal/domain"
	"finnguide/internal/infra/config"
)

func createBedrockProvider(ctx context.Context, pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	return llm.NewBedrockProvider(ctx, pc, log)
}
