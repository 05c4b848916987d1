package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, query, title, desc, url string
		min, max                      float64
	}{
		{"exact title", "Acme Rockets", "Acme Rockets", "", "", 0.99, 1},
		{"suffixes ignored", "Acme Rockets, Inc.", "ACME Rockets LLC | Home", "", "", 0.9, 1},
		{"diacritics folded", "Café Olé", "Cafe Ole", "", "", 0.99, 1},
		{"covered by description", "Acme Rockets", "Launch services", "Acme Rockets builds rockets", "", 0.7, 1},
		{"covered by domain", "Acme Rockets", "Home", "", "https://acmerockets.com", 0.7, 1},
		{"unrelated", "Acme Rockets", "Totally Different Widgets", "We sell widgets", "https://widgets.io", 0, 0.3},
		{"empty query", "Inc", "Inc", "", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Similarity(tt.query, tt.title, tt.desc, tt.url)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		code  string
		ok    bool
	}{
		{"US", "US", true},
		{"DEU", "DE", true},
		{"France", "FR", true},
		{"Frence", "FR", true},
		{"US-NY", "US", true},
		{"", "", false},
		{"Atlantis Prime", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			code, name, ok := Region(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
			if ok {
				assert.NotEmpty(t, name)
			}
		})
	}
}
