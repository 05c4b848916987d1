package acquire

import (
	"context"
	"strings"

	"github.com/sells-group/enrich-cli/internal/validate"
	"github.com/sells-group/enrich-cli/pkg/google"
	"github.com/sells-group/enrich-cli/pkg/jina"
)

// SearchResult is one web search hit.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

// SearchOptions narrows a search. Region is an ISO 3166-1 alpha-2 code.
type SearchOptions struct {
	Region string
	Limit  int
	Site   string
}

// Searcher runs a web search for candidate entity pages.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

const (
	jinaSearchName   = "jina_search"
	placesSearchName = "google_places"
	defaultLimit     = 10
)

// JinaSearch searches the web through s.jina.ai.
type JinaSearch struct {
	client jina.Client
}

// NewJinaSearch wraps a Jina client.
func NewJinaSearch(client jina.Client) *JinaSearch {
	return &JinaSearch{client: client}
}

func (s *JinaSearch) Name() string { return jinaSearchName }

// Search implements Searcher.
func (s *JinaSearch) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	var jopts []jina.SearchOption
	if opts.Site != "" {
		jopts = append(jopts, jina.WithSiteFilter(opts.Site))
	}
	resp, err := s.client.Search(ctx, query, jopts...)
	if err != nil {
		return nil, apiError(jinaSearchName, err)
	}

	out := make([]SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		u, ok := validate.URL(r.URL)
		if !ok {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = validate.Truncate(validate.CollapseSpace(r.Content), 300)
		}
		out = append(out, SearchResult{URL: u, Title: r.Title, Description: desc, Provider: jinaSearchName})
	}
	return limit(out, opts.Limit), nil
}

// PlacesSearch looks businesses up in Google Places and returns their
// websites. Places without a website are dropped.
type PlacesSearch struct {
	client google.Client
}

// NewPlacesSearch wraps a Places client.
func NewPlacesSearch(client google.Client) *PlacesSearch {
	return &PlacesSearch{client: client}
}

func (s *PlacesSearch) Name() string { return placesSearchName }

// Search implements Searcher. Site filters are ignored.
func (s *PlacesSearch) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	n := opts.Limit
	if n <= 0 || n > 20 {
		n = defaultLimit
	}
	resp, err := s.client.TextSearch(ctx, google.TextSearchRequest{
		TextQuery:  query,
		RegionCode: strings.ToUpper(opts.Region),
		PageSize:   n,
	})
	if err != nil {
		return nil, apiError(placesSearchName, err)
	}

	out := make([]SearchResult, 0, len(resp.Places))
	for _, p := range resp.Places {
		u, ok := validate.URL(p.WebsiteURI)
		if !ok {
			continue
		}
		desc := p.FormattedAddress
		if p.InternationalPhoneNumber != "" {
			desc = strings.TrimSpace(desc + " · " + p.InternationalPhoneNumber)
		}
		out = append(out, SearchResult{
			URL:         u,
			Title:       p.DisplayName.Text,
			Description: desc,
			Provider:    placesSearchName,
		})
	}
	return limit(out, opts.Limit), nil
}

func limit(rs []SearchResult, n int) []SearchResult {
	if n > 0 && len(rs) > n {
		return rs[:n]
	}
	return rs
}
