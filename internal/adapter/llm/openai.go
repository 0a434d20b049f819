package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"finnguide/internal/domain"
	"finnguide/internal/infra/config"
	"finnguide/internal/infra/tracer"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements domain.StreamingLLMProvider for the OpenAI chat
// completions API and for Azure OpenAI deployments, which speak the same
// wire format behind a different URL scheme and auth header.
type OpenAIProvider struct {
	name     string
	model    string
	apiKey   string
	endpoint string
	azure    bool
	client   *http.Client
	logger   *slog.Logger
}

// NewOpenAIProvider creates a provider with configured timeouts. For
// cfg.Type "azure" requests go to
// {base_url}/openai/deployments/{deployment}/chat/completions?api-version=...
func NewOpenAIProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	p := &OpenAIProvider{
		name:   cfg.Name,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		client: NewHTTPClient(cfg),
		logger: logger,
	}

	if cfg.Type == "azure" {
		p.azure = true
		p.endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			baseURL, url.PathEscape(cfg.Deployment), url.QueryEscape(cfg.APIVersion))
		return p
	}

	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	p.endpoint = baseURL + "/chat/completions"
	return p
}

// Name implements domain.LLMProvider.
func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	if p.azure {
		return map[string]string{"api-key": p.apiKey}
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// Chat implements domain.LLMProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	req.Stream = false
	body, err := json.Marshal(p.toOpenAIRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, p.client, p.endpoint, body, p.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp(p.name, err)
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError(p.name, domain.ErrProviderError, "unmarshal response: "+err.Error())
	}
	if len(oaiResp.Choices) == 0 {
		err := domain.NewDomainError(p.name, domain.ErrProviderError, "response has no choices")
		tracer.RecordError(span, err)
		return nil, err
	}

	result := fromOpenAIResponse(oaiResp)
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(ctx, p.logger, p.name, result)

	return result, nil
}

// ChatStream implements domain.StreamingLLMProvider.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	req.Stream = true

	body, err := json.Marshal(p.toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := doStreamRequest(ctx, p.client, p.endpoint, body, p.headers())
	if err != nil {
		return nil, domain.WrapOp(p.name, err)
	}

	return parseSSEStream(ctx, httpResp.Body, parseOpenAIChunk), nil
}

// --- OpenAI API wire types ---

type openaiRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Created int64          `json:"created"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiStreamChunk struct {
	ID      string               `json:"id"`
	Choices []openaiStreamChoice `json:"choices"`
	Usage   *openaiUsage         `json:"usage,omitempty"`
}

type openaiStreamChoice struct {
	Delta        openaiStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openaiStreamDelta struct {
	Content string `json:"content,omitempty"`
}

func (p *OpenAIProvider) toOpenAIRequest(req domain.ChatRequest) openaiRequest {
	msgs := make([]openaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openaiMessage{Role: m.Role, Content: m.Content})
	}

	temperature := req.Temperature
	oaiReq := openaiRequest{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}
	// Azure selects the model through the deployment in the URL.
	if !p.azure {
		oaiReq.Model = req.Model
	}
	return oaiReq
}

func parseOpenAIChunk(data []byte) (*domain.StreamDelta, error) {
	var chunk openaiStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, err
	}

	delta := &domain.StreamDelta{}
	if len(chunk.Choices) > 0 {
		c := chunk.Choices[0]
		delta.Content = c.Delta.Content
		if c.FinishReason != nil && *c.FinishReason != "" {
			delta.Done = true
		}
	}
	if chunk.Usage != nil {
		delta.Usage = &domain.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	// Azure sends a leading chunk with only content filter results.
	if delta.Content == "" && !delta.Done && delta.Usage == nil {
		return nil, nil
	}
	return delta, nil
}

func fromOpenAIResponse(resp openaiResponse) *domain.ChatResponse {
	result := &domain.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Message = domain.Message{
			Role:      domain.RoleAssistant,
			Content:   choice.Message.Content,
			Timestamp: result.CreatedAt,
		}
	}
	return result
}

var _ domain.StreamingLLMProvider = (*OpenAIProvider)(nil)
