// Package firecrawl provides a client for the Firecrawl scrape API.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Firecrawl v1 API.
const defaultBaseURL = "https://api.firecrawl.dev/v1"

// Output formats accepted by /scrape.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatRawHTML  = "rawHtml"
	FormatLinks    = "links"
)

// Client defines the Firecrawl API operations.
type Client interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// ScrapeRequest is the body for POST /scrape. WaitFor and Timeout are in
// milliseconds.
type ScrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
	Timeout         int      `json:"timeout,omitempty"`
	Actions         []Action `json:"actions,omitempty"`
}

// Action is a browser step run before the page is captured.
type Action struct {
	Type         string `json:"type"`
	Milliseconds int    `json:"milliseconds,omitempty"`
	Direction    string `json:"direction,omitempty"`
}

// ScrollDown scrolls one viewport down.
func ScrollDown() Action { return Action{Type: "scroll", Direction: "down"} }

// Wait pauses for ms milliseconds.
func Wait(ms int) Action { return Action{Type: "wait", Milliseconds: ms} }

// ScrapeResponse is the response from POST /scrape.
type ScrapeResponse struct {
	Success bool     `json:"success"`
	Data    PageData `json:"data"`
}

// PageData represents a single page result from Firecrawl.
type PageData struct {
	Markdown string   `json:"markdown"`
	HTML     string   `json:"html"`
	RawHTML  string   `json:"rawHtml"`
	Links    []string `json:"links"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes the captured page.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceURL"`
	URL         string `json:"url"`
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error"`
}

// FinalURL is the URL after redirects, falling back to the requested one.
func (m Metadata) FinalURL() string {
	if m.URL != "" {
		return m.URL
	}
	return m.SourceURL
}

// APIError is returned when Firecrawl responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Firecrawl client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 90 * time.Second,
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

func (c *httpClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	var resp ScrapeResponse
	if err := c.post(ctx, "/scrape", req, &resp); err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape")
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape %s unsuccessful: %s", req.URL, resp.Data.Metadata.Error)
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
