// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Jina AI Reader operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader.
	Read(ctx context.Context, targetURL string, opts ReadOptions) (*ReadResponse, error)
	// Search performs a web search via Jina AI Search and returns results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// Return formats accepted by the reader.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

// ReadOptions maps onto the reader's X- request headers. Zero values are
// left to the service defaults.
type ReadOptions struct {
	Format          string
	Timeout         time.Duration
	WaitForSelector string
	NoCache         bool
}

// ReadResponse is the parsed Jina API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina. Content holds html when the html
// format was requested.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	HTML    string    `json:"html"`
	Usage   ReadUsage `json:"usage"`
}

// Body returns the html payload when present, otherwise Content.
func (d ReadData) Body() string {
	if d.HTML != "" {
		return d.HTML
	}
	return d.Content
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) {
		o.siteFilter = domain
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchBaseURL sets a custom search base URL (for testing).
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
}

// NewClient creates a new Jina AI Reader client. Retries are left to the
// caller so every request maps to exactly one budgeted call.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "jina: read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) Read(ctx context.Context, targetURL string, opts ReadOptions) (*ReadResponse, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}

	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", format)
	if opts.Timeout > 0 {
		req.Header.Set("X-Timeout", strconv.Itoa(int(opts.Timeout.Seconds())))
	}
	if opts.WaitForSelector != "" {
		req.Header.Set("X-Wait-For-Selector", opts.WaitForSelector)
	}
	if opts.NoCache {
		req.Header.Set("X-No-Cache", "true")
	}

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}

	if statusCode != http.StatusOK {
		return nil, &APIError{StatusCode: statusCode, Body: string(body)}
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := fmt.Sprintf("%s/%s", c.searchBaseURL, url.QueryEscape(query))

	if so.siteFilter != "" {
		reqURL += "?site=" + url.QueryEscape(so.siteFilter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request failed")
	}

	// Jina returns 422 when no results are available for the query.
	if statusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: 422}, nil
	}

	if statusCode != http.StatusOK {
		return nil, &APIError{StatusCode: statusCode, Body: string(body)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}

	return &result, nil
}
