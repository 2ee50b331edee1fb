// Package websearch implements the web_search tool over DuckDuckGo's
// HTML endpoint. Results carry a citations array the presenter turns
// into numbered references.
package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/EanHD/kai/internal/tools"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"
	userAgent      = "kai/1.0 (+https://github.com/EanHD/kai)"
	maxResults     = 5
	maxBodyBytes   = 2 << 20
)

// ParamsSchema declares the web_search input contract.
const ParamsSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "max_results": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["query"]
}`

// SearchResult is one parsed hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Tool performs web searches.
type Tool struct {
	client  *http.Client
	enabled bool
}

// New creates the web_search tool. A nil client gets a default with a
// 10s timeout.
func New(client *http.Client, enabled bool) *Tool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Tool{client: client, enabled: enabled}
}

// Name implements tools.Tool.
func (t *Tool) Name() string { return "web_search" }

// Enabled implements tools.Disabler.
func (t *Tool) Enabled() bool { return t.enabled }

// Execute implements tools.Tool.
func (t *Tool) Execute(ctx context.Context, params map[string]any) (tools.Result, error) {
	if err := tools.ValidateParams(ParamsSchema, params); err != nil {
		return tools.Result{}, err
	}

	query, _ := params["query"].(string)
	limit := maxResults
	if v, ok := params["max_results"].(float64); ok {
		limit = int(v)
	}

	results, err := t.search(ctx, query, limit)
	if err != nil {
		return tools.Result{}, err
	}

	return tools.Result{Status: tools.StatusSuccess, Data: resultData(query, results)}, nil
}

// Fallback implements tools.Tool: one plain retry, then a failed
// result. Search being down must not sink the whole plan; the executor
// records the failed result and goes on with the remaining steps.
func (t *Tool) Fallback(ctx context.Context, params map[string]any, execErr error) (tools.Result, error) {
	query, _ := params["query"].(string)

	results, err := t.search(ctx, query, maxResults)
	if err != nil {
		return tools.Result{
			Status: tools.StatusFailed,
			Data:   map[string]any{},
			Error:  fmt.Sprintf("search unavailable: %v (retry: %v)", execErr, err),
		}, nil
	}

	return tools.Result{Status: tools.StatusSuccess, Data: resultData(query, results)}, nil
}

func resultData(query string, results []SearchResult) map[string]any {
	items := make([]any, 0, len(results))
	citations := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
		})
		citations = append(citations, map[string]any{
			"title": r.Title,
			"url":   r.URL,
		})
	}

	return map[string]any{
		"query":     query,
		"results":   items,
		"citations": citations,
	}
}

var (
	resultLinkRe    = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
)

// search queries the HTML endpoint and scrapes the result list.
func (t *Tool) search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	return parseResults(string(body), limit), nil
}

// parseResults extracts title/url/snippet triples from the result page.
func parseResults(page string, limit int) []SearchResult {
	links := resultLinkRe.FindAllStringSubmatch(page, -1)
	snippets := resultSnippetRe.FindAllStringSubmatch(page, -1)

	results := make([]SearchResult, 0, limit)
	for i, link := range links {
		if len(results) >= limit {
			break
		}

		href := cleanURL(link[1])
		if href == "" {
			continue
		}

		r := SearchResult{
			Title: cleanText(link[2]),
			URL:   href,
		}
		if i < len(snippets) {
			r.Snippet = cleanText(snippets[i][1])
		}
		results = append(results, r)
	}
	return results
}

// cleanURL unwraps DuckDuckGo's redirect links.
func cleanURL(raw string) string {
	raw = html.UnescapeString(raw)
	if strings.Contains(raw, "uddg=") {
		if u, err := url.Parse(raw); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

func cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(raw, "")))
}
