package acquire

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/firecrawl"
)

const (
	firecrawlName = "firecrawl"
	scrollSteps   = 3
	scrollPauseMS = 400
)

// Firecrawl renders pages in Firecrawl's headless browser. It is the only
// provider that honors Wait and ScrollToBottom.
type Firecrawl struct {
	client firecrawl.Client
}

// NewFirecrawl wraps a Firecrawl client.
func NewFirecrawl(client firecrawl.Client) *Firecrawl {
	return &Firecrawl{client: client}
}

func (f *Firecrawl) Name() string                { return firecrawlName }
func (f *Firecrawl) Supports(target string) bool { return isWeb(target) }

// scrapeRequest translates FetchOptions into a Firecrawl request.
func scrapeRequest(target string, opts FetchOptions) firecrawl.ScrapeRequest {
	req := firecrawl.ScrapeRequest{
		URL:     target,
		Formats: []string{firecrawl.FormatMarkdown},
		WaitFor: int(opts.Wait.Milliseconds()),
		Timeout: int(opts.Timeout.Milliseconds()),
	}
	if opts.IncludeHTML {
		req.Formats = []string{firecrawl.FormatHTML, firecrawl.FormatMarkdown}
	}
	if opts.ScrollToBottom {
		for range scrollSteps {
			req.Actions = append(req.Actions, firecrawl.ScrollDown(), firecrawl.Wait(scrollPauseMS))
		}
	}
	return req
}

// Fetch scrapes target, preferring html when requested.
func (f *Firecrawl) Fetch(ctx context.Context, target string, opts FetchOptions) (*model.RawContent, error) {
	resp, err := f.client.Scrape(ctx, scrapeRequest(target, opts))
	if err != nil {
		return nil, apiError(firecrawlName, err)
	}

	page := resp.Data
	if page.Metadata.StatusCode >= 400 {
		return nil, resilience.HTTPError(firecrawlName, page.Metadata.StatusCode, page.Metadata.Error)
	}

	markdown := strings.TrimSpace(page.Markdown)
	if len(markdown) < localMinBody && strings.TrimSpace(page.HTML) == "" {
		return nil, eris.Wrapf(ErrEmpty, "firecrawl: %s", target)
	}
	if isChallenge(markdown) {
		return nil, &BlockError{Provider: firecrawlName, Type: BlockChallenge}
	}

	rc := &model.RawContent{
		Target:     target,
		FinalURL:   page.Metadata.FinalURL(),
		Provider:   firecrawlName,
		Type:       model.ContentMarkdown,
		Title:      page.Metadata.Title,
		Body:       markdown,
		StatusCode: page.Metadata.StatusCode,
	}
	if opts.IncludeHTML && strings.TrimSpace(page.HTML) != "" {
		rc.Type = model.ContentHTML
		rc.Body = page.HTML
	}
	if rc.FinalURL == "" {
		rc.FinalURL = target
	}
	return rc, nil
}
