package domain

import "context"

// LLMProvider is the interface for any LLM backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "azure", "openai").
	Name() string
}

// StreamDelta is a single incremental chunk from a streaming LLM response.
type StreamDelta struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
	// Err is set on the last delta when the stream broke off mid-way.
	Err error `json:"-"`
}

// StreamingLLMProvider extends LLMProvider with streaming support.
type StreamingLLMProvider interface {
	LLMProvider
	// ChatStream sends a request and returns a channel of incremental deltas.
	// The channel is closed when the response ends or ctx is cancelled.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}

// CanStream reports whether p can serve ChatStream. Wrappers that always
// expose ChatStream report the capability of what they wrap through a
// Streams method.
func CanStream(p LLMProvider) bool {
	if _, ok := p.(StreamingLLMProvider); !ok {
		return false
	}
	if s, ok := p.(interface{ Streams() bool }); ok {
		return s.Streams()
	}
	return true
}
