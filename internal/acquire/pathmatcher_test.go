package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_Defaults(t *testing.T) {
	t.Parallel()

	m := NewPathMatcher(nil)
	tests := []struct {
		url      string
		excluded bool
	}{
		{"https://acme.com", false},
		{"https://acme.com/about", false},
		{"https://acme.com/contact-us", false},
		{"https://acme.com/files/brochure.PDF", true},
		{"https://acme.com/logo.png", true},
		{"https://acme.com/wp-json/wp/v2/pages", true},
		{"https://acme.com/cdn-cgi/l/email-protection", true},
		{"https://acme.com/jsonapi", false},
		{"://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.url))
		})
	}
}

func TestPathMatcher_Custom(t *testing.T) {
	t.Parallel()

	m := NewPathMatcher([]string{"/Blog/*", "/careers"})
	assert.Equal(t, []string{"/blog/*", "/careers"}, m.Patterns())
	assert.True(t, m.IsExcluded("https://acme.com/blog"))
	assert.True(t, m.IsExcluded("https://acme.com/blog/2024/launch"))
	assert.True(t, m.IsExcluded("https://acme.com/careers"))
	assert.False(t, m.IsExcluded("https://acme.com/careers/open"))
	assert.False(t, m.IsExcluded("https://acme.com/brochure.pdf"))
}

func TestPathMatcher_Nil(t *testing.T) {
	t.Parallel()
	var m *PathMatcher
	assert.False(t, m.IsExcluded("https://acme.com/a.pdf"))
}
