package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/acquire"
	"github.com/sells-group/enrich-cli/internal/model"
)

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  model.EntityReference
		want []Attempt
	}{
		{
			name: "profile before domain",
			ref:  model.EntityReference{Domain: "Acme.com", ProfileURL: "linkedin.com/company/acme/"},
			want: []Attempt{
				{Kind: KindProfile, Target: "https://www.linkedin.com/company/acme"},
				{Kind: KindWebsite, Target: "https://acme.com"},
			},
		},
		{
			name: "non-platform profile url is a website",
			ref:  model.EntityReference{ProfileURL: "https://acme.com/about"},
			want: []Attempt{{Kind: KindWebsite, Target: "https://acme.com/about"}},
		},
		{
			name: "email domain deduplicated against domain",
			ref:  model.EntityReference{Domain: "www.acme.com", Email: "ceo@acme.com"},
			want: []Attempt{{Kind: KindWebsite, Target: "https://acme.com"}},
		},
		{
			name: "freemail is ignored",
			ref:  model.EntityReference{Email: "acme.rockets@gmail.com"},
			want: nil,
		},
		{
			name: "name with region",
			ref:  model.EntityReference{Name: "Acme", Region: "DE"},
			want: []Attempt{{Kind: KindSearch, Query: "Acme Germany", Region: "DE"}},
		},
		{
			name: "unresolved region kept as text",
			ref:  model.EntityReference{Name: "Acme", Region: " Greater   Oklahoma City "},
			want: []Attempt{{Kind: KindSearch, Query: "Acme Greater Oklahoma City"}},
		},
		{
			name: "linkedin person profile",
			ref:  model.EntityReference{ProfileURL: "https://www.linkedin.com/in/jane-doe/"},
			want: []Attempt{{Kind: KindProfile, Target: "https://www.linkedin.com/in/jane-doe"}},
		},
		{
			name: "phone",
			ref:  model.EntityReference{Phone: "+1 (512) 555-0100"},
			want: []Attempt{
				{Kind: KindPhone, Target: "https://wa.me/15125550100"},
				{Kind: KindSearch, Query: "+15125550100"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Plan(tt.ref))
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{results: []acquire.SearchResult{
		{URL: "https://a.example.org", Title: "Acme Rockets", Description: "rockets"},
		{URL: "not a url", Title: "Acme Rockets"},
		{URL: "https://www.instagram.com/acmerockets", Title: "Acme Rockets (@acmerockets)"},
		{URL: "https://www.pinterest.com/acmerockets", Title: "Acme Rockets"},
		{URL: "https://acme-rockets.net", Title: "Acme Rockets official"},
		{URL: "https://acmerockets.com", Title: "Launch services", Description: "We are Acme Rockets"},
		{URL: "https://other.com", Title: "Other"},
	}}
	cfg := DefaultConfig()
	cfg.MaxSearchCandidates = 3
	o := newTestOrchestrator(&fakeFetcher{}, cfg, WithSearcher(s))

	got, err := o.candidates(t.Context(), model.EntityReference{Name: "Acme Rockets Inc."}, Attempt{Kind: KindSearch, Query: "Acme Rockets"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.NotEqual(t, "https://other.com", a.Target)
		assert.NotContains(t, a.Target, "pinterest", "non-profile platform pages are skipped")
		assert.GreaterOrEqual(t, a.Score, cfg.SearchThreshold)
	}
	assert.Equal(t, "https://a.example.org", got[0].Target, "exact title match ranks first")

	kinds := make(map[string]AttemptKind)
	for _, a := range got {
		kinds[a.Target] = a.Kind
	}
	assert.Equal(t, KindProfile, kinds["https://www.instagram.com/acmerockets"])
}

func TestCandidates_Phone(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{results: []acquire.SearchResult{
		{URL: "https://acme.com/contact", Title: "Contact", Description: "Call us on (512) 555-0100"},
		{URL: "https://spam.com", Title: "Who called me?", Description: "Lookup 512-555-9999"},
	}}
	o := newTestOrchestrator(&fakeFetcher{}, DefaultConfig(), WithSearcher(s))

	ref := model.EntityReference{Phone: "+1 512 555 0100"}
	got, err := o.candidates(t.Context(), ref, Attempt{Kind: KindSearch, Query: "+15125550100"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme.com/contact", got[0].Target)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	content := model.RawContent{
		Target: "https://acme.com",
		Type:   model.ContentHTML,
		Body: `<html><body>
<a href="https://twitter.com/acme">X</a>
<a href="https://www.linkedin.com/company/acme/">LinkedIn</a>
<a href="https://github.com/acme">GitHub</a>
</body></html>`,
	}

	got := discover(content, nil, 1)
	require.Len(t, got, 1)
	assert.Equal(t, Attempt{Kind: KindDiscovered, Target: "https://www.linkedin.com/company/acme"}, got[0])

	assert.Len(t, discover(content, nil, 5), 2, "github pages do not describe the entity")
	assert.Empty(t, discover(content, nil, 0))
}
