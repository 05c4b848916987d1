package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		platform model.Platform
		url      string
		handle   string
	}{
		{"linkedin company", "https://www.linkedin.com/company/acme-corp/about/?trk=x", model.PlatformLinkedIn, "https://www.linkedin.com/company/acme-corp", "acme-corp"},
		{"linkedin locale subdomain", "fr.linkedin.com/company/acme", model.PlatformLinkedIn, "https://www.linkedin.com/company/acme", "acme"},
		{"instagram", "instagram.com/acme.shop?igshid=123", model.PlatformInstagram, "https://www.instagram.com/acme.shop", "acme.shop"},
		{"twitter legacy host", "https://twitter.com/acmehq", model.PlatformTwitter, "https://x.com/acmehq", "acmehq"},
		{"x host", "https://x.com/acmehq/status/1", model.PlatformTwitter, "https://x.com/acmehq", "acmehq"},
		{"youtube handle", "https://www.youtube.com/@AcmeTV", model.PlatformYouTube, "https://www.youtube.com/@AcmeTV", "AcmeTV"},
		{"youtube channel", "https://youtube.com/channel/UC123abc", model.PlatformYouTube, "https://www.youtube.com/channel/UC123abc", "channel/UC123abc"},
		{"youtube legacy user", "https://www.youtube.com/user/acmetv", model.PlatformYouTube, "https://www.youtube.com/c/acmetv", "c/acmetv"},
		{"linkedin school", "https://www.linkedin.com/school/mit/", model.PlatformLinkedIn, "https://www.linkedin.com/school/mit", "school/mit"},
		{"linkedin person", "https://uk.linkedin.com/in/jane-doe-42a1b/?originalSubdomain=uk", model.PlatformLinkedIn, "https://www.linkedin.com/in/jane-doe-42a1b", "in/jane-doe-42a1b"},
		{"tiktok", "tiktok.com/@acme_official", model.PlatformTikTok, "https://www.tiktok.com/@acme_official", "acme_official"},
		{"facebook", "https://m.facebook.com/acmecorp/", model.PlatformFacebook, "https://www.facebook.com/acmecorp", "acmecorp"},
		{"github", "https://github.com/acme-labs", model.PlatformGitHub, "https://github.com/acme-labs", "acme-labs"},
		{"crunchbase", "https://www.crunchbase.com/organization/acme", model.PlatformCrunchbase, "https://www.crunchbase.com/organization/acme", "acme"},
		{"whatsapp short", "https://wa.me/15550102000", model.PlatformWhatsApp, "https://wa.me/15550102000", "15550102000"},
		{"whatsapp api", "https://api.whatsapp.com/send?phone=+15550102000&text=hi", model.PlatformWhatsApp, "https://wa.me/15550102000", "15550102000"},
		{"text fragment", `follow <a href="https://instagram.com/acme">us</a>`, model.PlatformInstagram, "https://www.instagram.com/acme", "acme"},
		{"reserved then valid", "instagram.com/p/Cx1 and instagram.com/acme", model.PlatformInstagram, "https://www.instagram.com/acme", "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ok := Classify(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.platform, m.Platform)
			assert.Equal(t, tt.url, m.URL)
			assert.Equal(t, tt.handle, m.Handle)
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"https://instagram.com",
		"https://instagram.com/explore",
		"https://www.facebook.com/sharer/sharer.php?u=x",
		"https://twitter.com/intent/tweet?text=hi",
		"https://box.com/acme",
		"https://example.com/about",
		"https://wa.me/",
		"@acme",
	} {
		_, ok := Classify(in)
		assert.False(t, ok, in)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range All() {
		p := p
		t.Run(string(p), func(t *testing.T) {
			t.Parallel()
			handle := "acmecorp"
			if s, _ := Lookup(p); s.PhoneKeyed {
				handle = "15550102000"
			}
			built, ok := Build(p, handle)
			require.True(t, ok)

			m, ok := Classify(built)
			require.True(t, ok, built)
			assert.Equal(t, p, m.Platform)
			assert.Equal(t, handle, m.Handle)

			rebuilt, ok := Build(m.Platform, m.Handle)
			require.True(t, ok)
			assert.Equal(t, built, rebuilt)
			assert.Equal(t, built, m.URL)
		})
	}
}

// Every URL shape, not only a platform's default one, must rebuild to the
// URL it was classified as.
func TestRoundTripEveryShape(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"https://www.linkedin.com/company/acme-corp",
		"https://www.linkedin.com/school/mit",
		"https://www.linkedin.com/in/jane-doe",
		"https://www.youtube.com/@AcmeTV",
		"https://www.youtube.com/channel/UC123abc",
		"https://www.youtube.com/c/acmetv",
		"https://api.whatsapp.com/send?phone=15550102000",
	} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			m, ok := Classify(in)
			require.True(t, ok)

			rebuilt, ok := Build(m.Platform, m.Handle)
			require.True(t, ok)
			assert.Equal(t, m.URL, rebuilt)

			again, ok := Classify(rebuilt)
			require.True(t, ok)
			assert.Equal(t, m, again)
		})
	}
}

func TestBuildRejectsUnknownShape(t *testing.T) {
	t.Parallel()

	_, ok := Build(model.PlatformInstagram, "school/mit")
	assert.False(t, ok)

	u, ok := Build(model.PlatformLinkedIn, "in/jane-doe")
	require.True(t, ok)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", u)

	u, ok = Build(model.PlatformLinkedIn, "acme")
	require.True(t, ok)
	assert.Equal(t, "https://www.linkedin.com/company/acme", u)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	u, ok := Build(model.PlatformTwitter, "@acmehq")
	assert.True(t, ok)
	assert.Equal(t, "https://x.com/acmehq", u)

	u, ok = Build(model.PlatformWhatsApp, "+1 (555) 010-2000")
	assert.True(t, ok)
	assert.Equal(t, "https://wa.me/15550102000", u)

	_, ok = Build(model.PlatformInstagram, "explore")
	assert.False(t, ok)

	_, ok = Build("myspace", "acme")
	assert.False(t, ok)
}

func TestValidProfileURL(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidProfileURL("https://www.linkedin.com/company/acme"))
	assert.True(t, ValidProfileURL("https://www.linkedin.com/in/jane-doe"))
	assert.True(t, ValidProfileURL("https://wa.me/15550102000"))
	assert.False(t, ValidProfileURL("https://www.linkedin.com"))
	assert.False(t, ValidProfileURL("https://wa.me"))
	assert.False(t, ValidProfileURL("https://acme.com/company/acme"))
}

func TestHostPlatform(t *testing.T) {
	t.Parallel()

	p, ok := HostPlatform("https://mobile.twitter.com/acme")
	assert.True(t, ok)
	assert.Equal(t, model.PlatformTwitter, p)

	_, ok = HostPlatform("https://acme.com")
	assert.False(t, ok)

	assert.True(t, IsProfilePlatform(model.PlatformLinkedIn))
	assert.False(t, IsProfilePlatform(model.PlatformWhatsApp))
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	text := `Find us: https://www.linkedin.com/company/acme | https://twitter.com/acmehq
	and again https://x.com/acmehq, plus https://www.instagram.com/acme.shop/ and https://example.com`

	got := ExtractAll(text)
	require.Len(t, got, 3)

	platforms := map[model.Platform]string{}
	for _, m := range got {
		platforms[m.Platform] = m.URL
	}
	assert.Equal(t, "https://www.linkedin.com/company/acme", platforms[model.PlatformLinkedIn])
	assert.Equal(t, "https://x.com/acmehq", platforms[model.PlatformTwitter])
	assert.Equal(t, "https://www.instagram.com/acme.shop", platforms[model.PlatformInstagram])
}
