package acquire

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		blocked bool
		typ     BlockType
	}{
		{"clean page", 200, nil, acmePage, false, BlockNone},
		{"cloudflare header", 503, map[string]string{"Server": "cloudflare"}, "x", true, BlockCloudflare},
		{"cloudflare header on 200 ignored", 200, map[string]string{"Cf-Ray": "1"}, acmePage, false, BlockNone},
		{"browser check", 200, nil, "<p>Checking your browser before accessing</p>", true, BlockCloudflare},
		{"robot prompt", 200, nil, "Are you a robot?", true, BlockCaptcha},
		{"small recaptcha shell", 200, nil, `<div class="g-recaptcha"></div>`, true, BlockCaptcha},
		{"contact form with recaptcha", 200, nil, acmePage + strings.Repeat("<p>lorem ipsum</p>", 400) + `<div class="g-recaptcha"></div>`, false, BlockNone},
		{"noscript shell", 200, nil, `<noscript>You need to enable JavaScript to run this app.</noscript>`, true, BlockJSShell},
		{"meta refresh", 200, nil, `<meta http-equiv="refresh" content="0;url=/x">`, true, BlockJSShell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			for k, v := range tt.headers {
				resp.Header.Set(k, v)
			}
			blocked, typ := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.typ, typ)
		})
	}

	blocked, _ := DetectBlock(nil, []byte("x"))
	assert.False(t, blocked)
}

func TestIsChallenge(t *testing.T) {
	t.Parallel()
	assert.True(t, isChallenge("Just a moment..."))
	assert.True(t, isChallenge("Attention Required! | Cloudflare"))
	assert.False(t, isChallenge(strings.Repeat("We protect sites with Cloudflare. ", 40)))
	assert.False(t, isChallenge("Acme builds rockets."))
}

func TestIsLoginWall(t *testing.T) {
	t.Parallel()
	assert.True(t, isLoginWall("Sign in"))
	assert.True(t, isLoginWall(strings.Repeat("x", 200)+" Sign in to view the full profile"))
	assert.True(t, isLoginWall(strings.Repeat("y", 6000)+" authwall join now to see"))
	assert.False(t, isLoginWall(strings.Repeat("Acme Corp builds rockets. ", 300)+" Join LinkedIn"))
	assert.False(t, isLoginWall(strings.Repeat("Acme Corp builds rockets. ", 10)))
}
