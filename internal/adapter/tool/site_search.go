package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"finnguide/internal/domain"
	"finnguide/internal/infra/tracer"
)

// noResultsText is returned when a search yields no snippets.
const noResultsText = "No good DuckDuckGo Search Result was found"

// SiteSearchTool answers with the snippets of a web search, optionally
// restricted to one site with a "site:" filter.
type SiteSearchTool struct {
	name            string
	description     string
	site            string
	backend         SearchBackend
	maxResults      int
	timeout         time.Duration
	trailingNewline bool
	logger          *slog.Logger
}

// SiteSearchOption configures a SiteSearchTool.
type SiteSearchOption func(*SiteSearchTool)

// WithSite restricts searches to site (e.g. "hoas.fi/en/").
func WithSite(site string) SiteSearchOption {
	return func(t *SiteSearchTool) { t.site = site }
}

// WithMaxResults sets how many snippets are requested per search.
func WithMaxResults(n int) SiteSearchOption {
	return func(t *SiteSearchTool) {
		if n > 0 {
			t.maxResults = n
		}
	}
}

// WithTimeout bounds each search. Zero leaves the caller's context as is.
func WithTimeout(d time.Duration) SiteSearchOption {
	return func(t *SiteSearchTool) { t.timeout = d }
}

// WithoutTrailingNewline drops the newline appended to successful results.
func WithoutTrailingNewline() SiteSearchOption {
	return func(t *SiteSearchTool) { t.trailingNewline = false }
}

// NewSiteSearchTool creates a search tool named name.
func NewSiteSearchTool(name, description string, backend SearchBackend, logger *slog.Logger, opts ...SiteSearchOption) *SiteSearchTool {
	t := &SiteSearchTool{
		name:            name,
		description:     description,
		backend:         backend,
		maxResults:      5,
		trailingNewline: true,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SiteSearchTool) Name() string        { return t.name }
func (t *SiteSearchTool) Description() string { return t.description }

// Site returns the site filter, empty for an unrestricted search.
func (t *SiteSearchTool) Site() string { return t.site }

// Run searches once for phrase. Failures are reported in the returned text.
func (t *SiteSearchTool) Run(ctx context.Context, phrase string) string {
	query := t.buildQuery(phrase)

	ctx, span := tracer.StartSpan(ctx, "search.query",
		trace.WithAttributes(
			tracer.StringAttr("tool.name", t.name),
			tracer.StringAttr("search.backend", t.backend.Name()),
		),
	)
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	results, err := t.backend.Search(ctx, query, t.maxResults)
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, domain.ErrTimeout) {
			t.logger.WarnContext(ctx, "search timed out", "tool", t.name, "query", query, "error", err)
			return err.Error() + "\n"
		}
		t.logger.WarnContext(ctx, "search failed", "tool", t.name, "query", query,
			"error", err, "code", domain.ErrorCodeOf(err))
		return fmt.Sprintf("An error occurred: %v\n", err)
	}

	span.SetAttributes(tracer.IntAttr("search.results", len(results)))
	tracer.SetOK(span)
	t.logger.DebugContext(ctx, "search completed", "tool", t.name, "query", query, "results", len(results))

	out := joinSnippets(results)
	if t.trailingNewline {
		out += "\n"
	}
	return out
}

func (t *SiteSearchTool) buildQuery(phrase string) string {
	if t.site == "" {
		return phrase
	}
	return "site:" + t.site + " " + phrase
}

func joinSnippets(results []SearchResult) string {
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Snippet); s != "" {
			snippets = append(snippets, s)
		}
	}
	if len(snippets) == 0 {
		return noResultsText
	}
	return strings.Join(snippets, " ")
}
