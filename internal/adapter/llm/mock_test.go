package llm

import (
	"context"

	"finnguide/internal/domain"
)

type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return m.chatFunc(ctx, req)
}

func (m *mockProvider) Name() string { return m.name }

type mockStreamProvider struct {
	mockProvider
	streamFunc func(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error)
}

func (m *mockStreamProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	return m.streamFunc(ctx, req)
}

func okChat(content string) func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: content}}, nil
	}
}

func failChat(err error) func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return nil, err
	}
}

func closedStream(parts ...string) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, len(parts)+1)
	for _, p := range parts {
		ch <- domain.StreamDelta{Content: p}
	}
	ch <- domain.StreamDelta{Done: true}
	close(ch)
	return ch
}
