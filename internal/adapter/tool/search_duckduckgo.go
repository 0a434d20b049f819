package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"finnguide/internal/domain"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	duckDuckGoUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DuckDuckGoBackend searches the web by scraping DuckDuckGo's HTML endpoint.
type DuckDuckGoBackend struct {
	client  *http.Client
	baseURL string
	region  string
	logger  *slog.Logger
}

// NewDuckDuckGoBackend creates a DuckDuckGo backend. An empty baseURL uses the
// public HTML endpoint; region is DuckDuckGo's kl parameter (e.g. "wt-wt").
func NewDuckDuckGoBackend(baseURL, region string, logger *slog.Logger) *DuckDuckGoBackend {
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	return &DuckDuckGoBackend{
		client:  newSearchHTTPClient(),
		baseURL: baseURL,
		region:  region,
		logger:  logger,
	}
}

func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	const op = "duckduckgo.Search"

	u, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "base url: "+err.Error())
	}
	q := u.Query()
	q.Set("q", query)
	if b.region != "" {
		q.Set("kl", b.region)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", duckDuckGoUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyRequestError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(op, resp.StatusCode, body)
	}

	results, err := parseDuckDuckGoResults(io.LimitReader(resp.Body, maxSearchBodySize), count)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyRequestError(op, ctx.Err())
		}
		return nil, domain.NewDomainError(op, domain.ErrProviderError, err.Error())
	}

	b.logger.DebugContext(ctx, "duckduckgo search completed", "query", query, "results", len(results))
	return results, nil
}

// parseDuckDuckGoResults extracts up to maxResults results from the HTML
// result page. Result containers are divs whose class includes both
// "result" and "results_links"; ads carry "result--ad" and are skipped.
func parseDuckDuckGoResults(r io.Reader, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := getAttrValue(n, "class")
			if strings.Contains(class, "results_links") && !strings.Contains(class, "result--ad") {
				if res := extractResult(n); res.URL != "" && res.Title != "" {
					results = append(results, res)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) SearchResult {
	var res SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := getAttrValue(n, "class")
			switch {
			case n.Data == "a" && hasClass(class, "result__a"):
				res.URL = resolveDuckDuckGoURL(getAttrValue(n, "href"))
				res.Title = getTextContent(n)
			case hasClass(class, "result__snippet"):
				res.Snippet = getTextContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return res
}

// resolveDuckDuckGoURL unwraps //duckduckgo.com/l/?uddg=<target> redirects.
func resolveDuckDuckGoURL(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == name {
			return true
		}
	}
	return false
}

func getAttrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// getTextContent returns the node's text with whitespace collapsed.
func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
