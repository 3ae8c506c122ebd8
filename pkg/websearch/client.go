// Package websearch queries a Tavily-compatible search API and formats the
// results as model-readable text.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nestor-ai/nestor/pkg/httpclient"
)

// ErrNoAPIKey reports a missing search credential. The condition is
// permanent for the process lifetime.
var ErrNoAPIKey = errors.New("web search unavailable: TAVILY_API_KEY is not set")

const defaultBaseURL = "https://api.tavily.com"

// Client calls the search API.
type Client struct {
	apiKey     string
	baseURL    string
	depth      string
	maxResults int
	httpClient *httpclient.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxResults caps results per query.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithDepth sets the search depth ("basic" or "advanced").
func WithDepth(depth string) Option {
	return func(c *Client) {
		if depth != "" {
			c.depth = depth
		}
	}
}

// WithHTTPClient overrides the retrying HTTP client.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a search client. An empty apiKey yields a client whose
// Search always fails with ErrNoAPIKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		depth:      "basic",
		maxResults: 5,
		httpClient: httpclient.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns the formatted results: the synthesized
// answer paragraph, then one line per source.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty search query")
	}

	payload, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   c.depth,
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decoding search response: %w", err)
	}
	return formatResults(query, decoded), nil
}

func formatResults(query string, resp searchResponse) string {
	var parts []string
	if strings.TrimSpace(resp.Answer) != "" {
		parts = append(parts, strings.TrimSpace(resp.Answer))
	}

	var lines []string
	for _, r := range resp.Results {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", r.Title, r.URL, strings.TrimSpace(r.Content)))
	}
	if len(lines) > 0 {
		parts = append(parts, strings.Join(lines, "\n"))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("No web results found for %q.", query)
	}
	return strings.Join(parts, "\n\n")
}
