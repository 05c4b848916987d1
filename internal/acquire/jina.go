package acquire

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/jina"
)

const jinaName = "jina"

// Jina fetches pages through the Jina AI reader.
type Jina struct {
	client jina.Client
}

// NewJina wraps a reader client.
func NewJina(client jina.Client) *Jina {
	return &Jina{client: client}
}

func (j *Jina) Name() string                { return jinaName }
func (j *Jina) Supports(target string) bool { return isWeb(target) }

// Fetch reads target as html when requested, markdown otherwise.
func (j *Jina) Fetch(ctx context.Context, target string, opts FetchOptions) (*model.RawContent, error) {
	format := jina.FormatMarkdown
	if opts.IncludeHTML {
		format = jina.FormatHTML
	}

	resp, err := j.client.Read(ctx, target, jina.ReadOptions{
		Format:  format,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, apiError(jinaName, err)
	}

	if resp.Code != 0 && resp.Code != 200 {
		return nil, eris.Errorf("jina: reader code %d for %s", resp.Code, target)
	}
	body := strings.TrimSpace(resp.Data.Body())
	if len(body) < localMinBody {
		return nil, eris.Wrapf(ErrEmpty, "jina: %s", target)
	}
	if isChallenge(body) {
		return nil, &BlockError{Provider: jinaName, Type: BlockChallenge}
	}

	ct := model.ContentMarkdown
	if format == jina.FormatHTML && looksLikeHTML(body) {
		ct = model.ContentHTML
	}

	final := resp.Data.URL
	if final == "" {
		final = target
	}

	return &model.RawContent{
		Target:     target,
		FinalURL:   final,
		Provider:   jinaName,
		Type:       ct,
		Title:      resp.Data.Title,
		Body:       body,
		StatusCode: 200,
	}, nil
}
