package tool

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

func newTestLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// fakeBackend records queries and returns canned results.
type fakeBackend struct {
	mu      sync.Mutex
	queries []string
	counts  []int
	results []SearchResult
	err     error
	search  func(ctx context.Context, query string, count int) ([]SearchResult, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.counts = append(f.counts, count)
	f.mu.Unlock()
	if f.search != nil {
		return f.search(ctx, query, count)
	}
	return f.results, f.err
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}
