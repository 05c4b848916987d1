package acquire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/google"
	"github.com/sells-group/enrich-cli/pkg/google/mocks"
	"github.com/sells-group/enrich-cli/pkg/jina"
)

func TestJinaSearch(t *testing.T) {
	t.Parallel()

	fj := &fakeJina{search: &jina.SearchResponse{Code: 200, Data: []jina.SearchResult{
		{Title: "Acme Corp | Official Site", URL: "https://acme.com/", Description: "Rockets"},
		{Title: "broken", URL: "not a url"},
		{Title: "Acme on LinkedIn", URL: "https://www.linkedin.com/company/acme", Content: "Acme   Corp\nAerospace"},
		{Title: "Third", URL: "https://third.example.com"},
	}}}

	got, err := NewJinaSearch(fj).Search(context.Background(), "Acme Corp", SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SearchResult{URL: "https://acme.com", Title: "Acme Corp | Official Site", Description: "Rockets", Provider: jinaSearchName}, got[0])
	assert.Equal(t, "Acme Corp Aerospace", got[1].Description)
	assert.Equal(t, []string{"Acme Corp"}, fj.queries)
}

func TestJinaSearch_Error(t *testing.T) {
	t.Parallel()

	fj := &fakeJina{searchErr: &jina.APIError{StatusCode: 503}}
	_, err := NewJinaSearch(fj).Search(context.Background(), "Acme", SearchOptions{})
	assert.True(t, resilience.IsTransient(err))
}

func TestPlacesSearch(t *testing.T) {
	t.Parallel()

	mc := mocks.NewMockClient(t)
	mc.On("TextSearch", mock.Anything, google.TextSearchRequest{
		TextQuery:  "Acme Bakery Berlin",
		RegionCode: "DE",
		PageSize:   defaultLimit,
	}).Return(&google.TextSearchResponse{Places: []google.Place{
		{DisplayName: google.DisplayName{Text: "Acme Bakery"}, WebsiteURI: "https://acme-bakery.de/", FormattedAddress: "Hauptstr. 1, Berlin", InternationalPhoneNumber: "+49 30 123456"},
		{DisplayName: google.DisplayName{Text: "No Website"}},
	}}, nil)

	got, err := NewPlacesSearch(mc).Search(context.Background(), "Acme Bakery Berlin", SearchOptions{Region: "de"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme-bakery.de", got[0].URL)
	assert.Equal(t, "Acme Bakery", got[0].Title)
	assert.Equal(t, "Hauptstr. 1, Berlin · +49 30 123456", got[0].Description)
	assert.Equal(t, placesSearchName, got[0].Provider)
}

func TestPlacesSearch_Quota(t *testing.T) {
	t.Parallel()

	mc := mocks.NewMockClient(t)
	mc.On("TextSearch", mock.Anything, mock.Anything).Return(nil, &google.APIError{StatusCode: 402})

	_, err := NewPlacesSearch(mc).Search(context.Background(), "Acme", SearchOptions{Limit: 50})
	assert.ErrorIs(t, err, resilience.ErrQuotaExhausted)
}
