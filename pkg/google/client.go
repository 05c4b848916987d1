// Package google provides a client for Google Places text search.
package google

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

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask limits the response to the fields the pipeline reads.
const fieldMask = "places.displayName,places.websiteUri,places.formattedAddress," +
	"places.internationalPhoneNumber,places.rating,places.userRatingCount"

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body for places:searchText. RegionCode is an
// ISO 3166-1 alpha-2 code.
type TextSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	RegionCode   string `json:"regionCode,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
	PageSize     int    `json:"pageSize,omitempty"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	DisplayName              DisplayName `json:"displayName"`
	WebsiteURI               string      `json:"websiteUri"`
	FormattedAddress         string      `json:"formattedAddress"`
	InternationalPhoneNumber string      `json:"internationalPhoneNumber"`
	Rating                   float64     `json:"rating"`
	UserRatingCount          int         `json:"userRatingCount"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, sr TextSearchRequest) (*TextSearchResponse, error) {
	if sr.TextQuery == "" {
		return nil, eris.New("google: empty text query")
	}

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}
