package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"finnguide/internal/domain"
)

// maxSearchBodySize bounds how much of a search response is read.
const maxSearchBodySize = 1 << 20 // 1MB

// SearchBackend abstracts a web search engine.
type SearchBackend interface {
	// Search performs a web search and returns at most count results.
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
	// Name returns the backend identifier (e.g. "duckduckgo").
	Name() string
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// newSearchHTTPClient returns a client without an overall timeout; callers
// bound each search with a context deadline instead.
func newSearchHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyRequestError maps transport failures of a search request to
// domain errors. Deadlines and network timeouts become ErrTimeout.
func classifyRequestError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewDomainError(op, domain.ErrTimeout, "search request timed out")
	}
	return domain.NewDomainError(op, domain.ErrProviderError, fmt.Sprintf("search request: %v", err))
}

// classifyStatus maps a non-200 search response to a domain error.
func classifyStatus(op string, status int, body []byte) error {
	detail := fmt.Sprintf("HTTP %d", status)
	if len(body) > 0 {
		if len(body) > 200 {
			body = body[:200]
		}
		detail += ": " + string(body)
	}
	switch status {
	case http.StatusAccepted, http.StatusTooManyRequests:
		return domain.NewDomainError(op, domain.ErrRateLimit, detail)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return domain.NewDomainError(op, domain.ErrTimeout, detail)
	default:
		return domain.NewDomainError(op, domain.ErrProviderError, detail)
	}
}
