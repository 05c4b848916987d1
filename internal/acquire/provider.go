// Package acquire fetches content and search results from external
// providers. A Chain tries providers in order behind the rate guard,
// per-provider circuit breakers and a content cache.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

// FetchOptions tunes one acquisition. Providers ignore options they
// cannot honor.
type FetchOptions struct {
	IncludeHTML    bool          `mapstructure:"include_html" yaml:"include_html"`
	Wait           time.Duration `mapstructure:"wait" yaml:"wait"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ScrollToBottom bool          `mapstructure:"scroll_to_bottom" yaml:"scroll_to_bottom"`
}

// Provider fetches a single target and returns its content.
type Provider interface {
	Name() string
	Supports(target string) bool
	Fetch(ctx context.Context, target string, opts FetchOptions) (*model.RawContent, error)
}

var (
	// ErrBlocked matches every BlockError.
	ErrBlocked = eris.New("acquire: blocked")
	// ErrLoginWall matches BlockErrors raised for login-gated profiles.
	ErrLoginWall = eris.New("acquire: login wall")
	// ErrEmpty means a provider answered without usable content.
	ErrEmpty = eris.New("acquire: empty content")
	// ErrExcluded means the target path is not worth fetching.
	ErrExcluded = eris.New("acquire: target excluded")
	// ErrInvalidTarget means the target is not an http(s) URL.
	ErrInvalidTarget = eris.New("acquire: invalid target")
	// ErrNoProvider means no configured provider supports the target.
	ErrNoProvider = eris.New("acquire: no provider supports target")
)

// BlockError reports anti-bot protection or a login wall.
type BlockError struct {
	Provider string
	Type     BlockType
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s: blocked (%s)", e.Provider, e.Type)
}

// Is matches ErrBlocked, and ErrLoginWall for login walls.
func (e *BlockError) Is(target error) bool {
	return target == ErrBlocked || (e.Type == BlockLoginWall && target == ErrLoginWall)
}

// httpStatuser is implemented by the pkg client APIErrors.
type httpStatuser interface {
	HTTPStatus() int
}

// apiError maps a client error onto the resilience taxonomy: retryable
// statuses become transient and 402 means the provider's credits are gone.
func apiError(service string, err error) error {
	var se httpStatuser
	if !errors.As(err, &se) {
		return eris.Wrap(err, service)
	}
	switch status := se.HTTPStatus(); {
	case status == 402:
		return &resilience.QuotaError{Provider: service, MonthKey: model.MonthKey(time.Now())}
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(eris.Wrap(err, service), status)
	default:
		return eris.Wrap(err, service)
	}
}

// isWeb reports whether target is an http(s) URL.
func isWeb(target string) bool {
	t := strings.ToLower(target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

// IsProfileTarget reports whether target is a canonical profile URL on a
// platform whose pages describe an entity.
func IsProfileTarget(target string) bool {
	m, ok := platform.Classify(target)
	return ok && platform.IsProfilePlatform(m.Platform) && platform.ValidProfileURL(target)
}

// looksLikeHTML sniffs markup from a body prefix.
func looksLikeHTML(body string) bool {
	head := strings.ToLower(body[:min(len(body), 1024)])
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<body") || strings.Contains(head, "<div")
}
