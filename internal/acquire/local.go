package acquire

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	localName        = "local_http"
	defaultUserAgent = "Mozilla/5.0 (compatible; EnrichBot/1.0)"
	localMaxBody     = 512 * 1024
	localMinBody     = 100
)

// LocalHTTP fetches pages directly with net/http. It costs nothing and
// always returns markup, so it runs first and falls through to the paid
// providers when blocked.
type LocalHTTP struct {
	client    *http.Client
	userAgent string
}

// LocalOption configures LocalHTTP.
type LocalOption func(*LocalHTTP)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalHTTP) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalHTTP) { l.client = hc }
}

// NewLocalHTTP creates a LocalHTTP with sensible defaults.
func NewLocalHTTP(opts ...LocalOption) *LocalHTTP {
	l := &LocalHTTP{
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LocalHTTP) Name() string                { return localName }
func (l *LocalHTTP) Supports(target string) bool { return isWeb(target) }

// Fetch GETs target and returns its body.
func (l *LocalHTTP) Fetch(ctx context.Context, target string, _ FetchOptions) (*model.RawContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, localMaxBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, &BlockError{Provider: localName, Type: blockType}
	}

	if resp.StatusCode >= 400 {
		return nil, resilience.HTTPError(localName, resp.StatusCode, string(body))
	}

	text := string(body)
	if len(strings.TrimSpace(text)) < localMinBody {
		return nil, eris.Wrapf(ErrEmpty, "local_http: %d bytes from %s", len(body), target)
	}

	ct := model.ContentText
	if strings.Contains(resp.Header.Get("Content-Type"), "html") || looksLikeHTML(text) {
		ct = model.ContentHTML
	}

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return &model.RawContent{
		Target:     target,
		FinalURL:   final,
		Provider:   localName,
		Type:       ct,
		Body:       text,
		StatusCode: resp.StatusCode,
	}, nil
}
