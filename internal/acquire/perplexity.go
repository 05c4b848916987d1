package acquire

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/pkg/perplexity"
)

const perplexityName = "perplexity"

const perplexityPrompt = `Research the public profile at %s.
Answer with one fact per line, each line starting with its label, and leave out anything you cannot find:
Name:
Description:
Industry:
Company size:
Headquarters:
Website:
Founded in:
Specialties:
Email:
Phone:
Then list every other official social profile URL you find, one per line.`

// Perplexity answers for login-walled profile URLs using web research. It
// only supports profile targets on platforms that describe an entity.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(client perplexity.Client) *Perplexity {
	return &Perplexity{client: client}
}

func (p *Perplexity) Name() string                { return perplexityName }
func (p *Perplexity) Supports(target string) bool { return IsProfileTarget(target) }

// Fetch asks for a labelled research summary of the profile. Citations are
// appended so their profile links reach the extractors.
func (p *Perplexity) Fetch(ctx context.Context, target string, _ FetchOptions) (*model.RawContent, error) {
	zero := 0.0
	req := perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(perplexityPrompt, target)},
		},
		Temperature: &zero,
	}
	if m, ok := platform.Classify(target); ok {
		if spec, ok := platform.Lookup(m.Platform); ok && len(spec.Hosts) > 0 {
			req.SearchDomainFilter = []string{spec.Hosts[0]}
		}
	}

	resp, err := p.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, apiError(perplexityName, err)
	}
	text := resp.Text()
	if len(text) < 20 {
		return nil, eris.Wrapf(ErrEmpty, "perplexity: %s", target)
	}

	var b strings.Builder
	b.WriteString(text)
	if len(resp.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, c := range resp.Citations {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteByte('\n')
		}
	}

	return &model.RawContent{
		Target:     target,
		FinalURL:   target,
		Provider:   perplexityName,
		Type:       model.ContentMarkdown,
		Title:      labelledValue(text, "name"),
		Body:       b.String(),
		StatusCode: 200,
	}, nil
}

// labelledValue returns the value of the first "Label: value" line.
func labelledValue(text, label string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-*# ")
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.Trim(strings.TrimSpace(k), "*")
		if strings.EqualFold(k, label) {
			return strings.TrimSpace(strings.Trim(strings.TrimSpace(v), "*"))
		}
	}
	return ""
}
