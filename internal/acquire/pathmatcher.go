package acquire

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns are used when no custom patterns are provided.
// Assets and API endpoints never describe an entity.
var defaultExcludePatterns = []string{
	"*.pdf",
	"*.jpg",
	"*.jpeg",
	"*.png",
	"*.gif",
	"*.svg",
	"*.webp",
	"*.zip",
	"*.mp4",
	"*.css",
	"*.js",
	"/wp-json/*",
	"/cdn-cgi/*",
}

// PathMatcher filters URLs based on glob-style path patterns. A pattern
// without a slash is matched against the last path segment; "/dir/*"
// matches every path below dir.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/blog/*", "*.pdf").
// Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL matches any exclude pattern.
// Unparseable URLs are excluded. A nil matcher excludes nothing.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if m == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where "/blog/*" matches both
// "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(urlPath))
		return ok
	}
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
