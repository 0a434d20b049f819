package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finnguide/internal/domain"
)

// FailoverProvider wraps a primary LLM provider with fallback providers.
// If the primary fails, it tries each fallback in order.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable provider.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat tries the primary provider first, then each fallback on failure.
// A cancelled context stops the walk immediately.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var errs []error
	for i, p := range f.chain() {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.InfoContext(ctx, "failover succeeded", "provider", p.Name())
			}
			return resp, nil
		}
		f.logger.WarnContext(ctx, "llm provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// ChatStream tries streaming from each stream-capable provider in order.
func (f *FailoverProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	var errs []error
	for i, p := range f.chain() {
		if !domain.CanStream(p) {
			continue
		}
		ch, err := p.(domain.StreamingLLMProvider).ChatStream(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.InfoContext(ctx, "streaming failover succeeded", "provider", p.Name())
			}
			return ch, nil
		}
		f.logger.WarnContext(ctx, "streaming llm provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no streaming-capable providers available", domain.ErrProviderError)
	}
	return nil, fmt.Errorf("all streaming providers failed: %w", errors.Join(errs...))
}

// Streams reports whether the primary provider can stream.
func (f *FailoverProvider) Streams() bool {
	return domain.CanStream(f.primary)
}

// Name returns a composite name.
func (f *FailoverProvider) Name() string {
	return f.primary.Name() + "+failover"
}

func (f *FailoverProvider) chain() []domain.LLMProvider {
	return append([]domain.LLMProvider{f.primary}, f.fallbacks...)
}

var _ domain.StreamingLLMProvider = (*FailoverProvider)(nil)
