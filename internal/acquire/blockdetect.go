package acquire

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockChallenge  BlockType = "challenge"
	BlockLoginWall  BlockType = "login_wall"
)

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "verify you are human") ||
		strings.Contains(lower, "are you a robot") ||
		strings.Contains(lower, "complete the captcha") ||
		strings.Contains(lower, "complete the recaptcha") {
		return true, BlockCaptcha
	}
	// Contact forms embed captcha widgets too; only a near-empty page
	// built around one is a block.
	if len(body) < 5000 && (strings.Contains(lower, "g-recaptcha") || strings.Contains(lower, "h-captcha")) {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// isChallenge reports whether rendered content is an interstitial rather
// than the page. Only short bodies qualify; real pages mention these
// phrases in passing.
func isChallenge(content string) bool {
	content = strings.TrimSpace(content)
	if len(content) >= 1000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

var loginWallSignatures = []string{
	"authwall",
	"sign in to view",
	"sign in to see",
	"join now to see",
	"join linkedin",
	"log in to see",
	"log in to continue",
	"log into facebook",
	"you must log in",
	"sign up to see",
	"login • instagram",
}

// isLoginWall reports whether a profile page was replaced by a login
// prompt. Long pages with a stray "sign in" link still count as content.
func isLoginWall(content string) bool {
	lower := strings.ToLower(content)
	if len(strings.TrimSpace(lower)) < 100 {
		return true
	}
	hits := 0
	for _, sig := range loginWallSignatures {
		if strings.Contains(lower, sig) {
			hits++
		}
	}
	return hits >= 2 || (hits == 1 && len(lower) < 5000)
}
