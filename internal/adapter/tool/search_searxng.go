package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"finnguide/internal/domain"
)

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
	NumberOfResults float64 `json:"number_of_results"`
}

// SearXNGBackend searches the web via a SearXNG instance's JSON API.
type SearXNGBackend struct {
	client      *http.Client
	instanceURL string
	language    string
	logger      *slog.Logger
}

// NewSearXNGBackend creates a search backend backed by a SearXNG instance.
func NewSearXNGBackend(instanceURL string, logger *slog.Logger) *SearXNGBackend {
	return &SearXNGBackend{
		client:      newSearchHTTPClient(),
		instanceURL: strings.TrimRight(instanceURL, "/"),
		language:    "en",
		logger:      logger,
	}
}

func (b *SearXNGBackend) Name() string { return "searxng" }

func (b *SearXNGBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	const op = "searxng.Search"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.instanceURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	if b.language != "" {
		q.Set("language", b.language)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyRequestError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyRequestError(op, ctx.Err())
		}
		return nil, domain.NewDomainError(op, domain.ErrProviderError, "read response: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(op, resp.StatusCode, body)
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrProviderError, "parse response: "+err.Error())
	}

	results := make([]SearchResult, 0, min(count, len(searxResp.Results)))
	for _, r := range searxResp.Results {
		if len(results) >= count {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	b.logger.DebugContext(ctx, "searxng search completed", "query", query, "results", len(results))
	return results, nil
}
