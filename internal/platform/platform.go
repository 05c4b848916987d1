// Package platform maps URLs and text fragments to social platforms.
package platform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// pattern matches one URL shape and captures the handle in group 1.
// Shapes other than a platform's default carry a kind, which prefixes the
// handle ("school/mit") so Build can pick the same template back.
type pattern struct {
	re       *regexp.Regexp
	template string
	kind     string
}

// Spec describes how to recognize and rebuild one platform's URLs.
type Spec struct {
	Platform   model.Platform
	Hosts      []string
	PhoneKeyed bool // accounts are keyed by a phone number
	Profile    bool // pages describe the entity and can be fetched
	patterns   []pattern
	handleRe   *regexp.Regexp
	reserved   map[string]bool
}

// Template returns the canonical URL format string.
func (s *Spec) Template() string { return s.patterns[0].template }

func mk(expr, template string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)(?:^|[^a-z0-9.\-])(?:https?://)?(?:(?:www|m|mobile|api|[a-z]{2})\.)?` + expr), template: template}
}

func mkKind(kind, expr, template string) pattern {
	p := mk(expr, template)
	p.kind = kind
	return p
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var specs = []*Spec{
	{
		Platform: model.PlatformLinkedIn,
		Hosts:    []string{"linkedin.com"},
		Profile:  true,
		patterns: []pattern{
			mk(`linkedin\.com/company/([A-Za-z0-9\-_.%]+)`, "https://www.linkedin.com/company/%s"),
			mkKind("school", `linkedin\.com/school/([A-Za-z0-9\-_.%]+)`, "https://www.linkedin.com/school/%s"),
			mkKind("in", `linkedin\.com/in/([A-Za-z0-9\-_%]+)`, "https://www.linkedin.com/in/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9\-_.%]{2,100}$`),
		reserved: set("login", "signup", "feed", "jobs"),
	},
	{
		Platform: model.PlatformInstagram,
		Hosts:    []string{"instagram.com", "instagr.am"},
		Profile:  true,
		patterns: []pattern{
			mk(`(?:instagram\.com|instagr\.am)/([A-Za-z0-9_.]+)`, "https://www.instagram.com/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_.]{1,30}$`),
		reserved: set("p", "reel", "reels", "explore", "accounts", "stories", "tv", "about", "developer", "legal", "direct"),
	},
	{
		Platform: model.PlatformFacebook,
		Hosts:    []string{"facebook.com", "fb.com"},
		Profile:  true,
		patterns: []pattern{
			mk(`(?:facebook|fb)\.com/(?:pg/)?([A-Za-z0-9.\-]+)`, "https://www.facebook.com/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9.\-]{5,80}$`),
		reserved: set("sharer", "sharer.php", "share.php", "dialog", "plugins", "login", "login.php", "groups", "events", "watch", "policies", "help", "profile.php", "photo.php", "hashtag", "business", "privacy", "pages"),
	},
	{
		Platform: model.PlatformTwitter,
		Hosts:    []string{"twitter.com", "x.com"},
		Profile:  true,
		patterns: []pattern{
			mk(`(?:twitter|x)\.com/([A-Za-z0-9_]+)`, "https://x.com/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`),
		reserved: set("intent", "share", "home", "search", "hashtag", "i", "login", "signup", "explore", "settings", "privacy", "tos", "messages", "notifications"),
	},
	{
		Platform: model.PlatformYouTube,
		Hosts:    []string{"youtube.com", "youtu.be"},
		Profile:  true,
		patterns: []pattern{
			mk(`youtube\.com/@([A-Za-z0-9_.\-]+)`, "https://www.youtube.com/@%s"),
			mkKind("channel", `youtube\.com/channel/([A-Za-z0-9_\-]+)`, "https://www.youtube.com/channel/%s"),
			mkKind("c", `youtube\.com/(?:c|user)/([A-Za-z0-9_.\-]+)`, "https://www.youtube.com/c/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_.\-]{2,100}$`),
		reserved: set("watch", "embed", "results", "feed", "playlist"),
	},
	{
		Platform: model.PlatformTikTok,
		Hosts:    []string{"tiktok.com"},
		Profile:  true,
		patterns: []pattern{
			mk(`tiktok\.com/@([A-Za-z0-9_.]+)`, "https://www.tiktok.com/@%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_.]{2,24}$`),
	},
	{
		Platform: model.PlatformPinterest,
		Hosts:    []string{"pinterest.com"},
		patterns: []pattern{
			mk(`pinterest\.(?:com|[a-z]{2})/([A-Za-z0-9_]+)`, "https://www.pinterest.com/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`),
		reserved: set("pin", "search", "ideas", "today", "login", "_"),
	},
	{
		Platform: model.PlatformGitHub,
		Hosts:    []string{"github.com"},
		patterns: []pattern{
			mk(`github\.com/([A-Za-z0-9\-]+)`, "https://github.com/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9\-]{0,38})$`),
		reserved: set("features", "pricing", "login", "join", "about", "topics", "marketplace", "orgs", "sponsors", "settings", "explore"),
	},
	{
		Platform: model.PlatformCrunchbase,
		Hosts:    []string{"crunchbase.com"},
		Profile:  true,
		patterns: []pattern{
			mk(`crunchbase\.com/organization/([A-Za-z0-9\-]+)`, "https://www.crunchbase.com/organization/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9\-]{2,100}$`),
	},
	{
		Platform: model.PlatformTelegram,
		Hosts:    []string{"t.me", "telegram.me"},
		patterns: []pattern{
			mk(`(?:t|telegram)\.me/([A-Za-z0-9_]+)`, "https://t.me/%s"),
		},
		handleRe: regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`),
		reserved: set("share", "joinchat", "addstickers", "proxy"),
	},
	{
		Platform:   model.PlatformWhatsApp,
		Hosts:      []string{"wa.me", "whatsapp.com"},
		PhoneKeyed: true,
		patterns: []pattern{
			mk(`wa\.me/\+?(\d{7,15})`, "https://wa.me/%s"),
			mk(`whatsapp\.com/send/?\?(?:[^\s"'<>]*&)?phone=\+?(\d{7,15})`, "https://wa.me/%s"),
		},
		handleRe: regexp.MustCompile(`^\d{7,15}$`),
	},
}

var byPlatform = func() map[model.Platform]*Spec {
	m := make(map[model.Platform]*Spec, len(specs))
	for _, s := range specs {
		m[s.Platform] = s
	}
	return m
}()

// Lookup returns the spec for p.
func Lookup(p model.Platform) (*Spec, bool) {
	s, ok := byPlatform[p]
	return s, ok
}

// All returns every known platform in matching order.
func All() []model.Platform {
	out := make([]model.Platform, len(specs))
	for i, s := range specs {
		out[i] = s.Platform
	}
	return out
}

// Match is a recognized platform link.
type Match struct {
	Platform model.Platform
	URL      string
	Handle   string
}

func (s *Spec) validHandle(h string) bool {
	if h == "" || s.reserved[strings.ToLower(h)] {
		return false
	}
	if s.handleRe != nil && !s.handleRe.MatchString(h) {
		return false
	}
	if s.Platform == model.PlatformLinkedIn || s.PhoneKeyed {
		return true
	}
	_, ok := validate.Handle(h)
	return ok
}

// accept validates a captured handle against p and builds the match.
func (s *Spec) accept(p pattern, captured string) (Match, bool) {
	h := strings.TrimRight(captured, ".")
	if !s.validHandle(h) {
		return Match{}, false
	}
	handle := h
	if p.kind != "" {
		handle = p.kind + "/" + h
	}
	return Match{Platform: s.Platform, URL: fmt.Sprintf(p.template, h), Handle: handle}, true
}

// match tries every pattern of s against input and returns the first
// match whose handle validates.
func (s *Spec) match(input string) (Match, bool) {
	for _, p := range s.patterns {
		for _, sub := range p.re.FindAllStringSubmatch(input, -1) {
			if m, ok := s.accept(p, sub[1]); ok {
				return m, true
			}
		}
	}
	return Match{}, false
}

// shape splits a kind prefix off handle and returns the pattern it names.
// Unprefixed handles use the default shape.
func (s *Spec) shape(handle string) (pattern, string) {
	if kind, rest, ok := strings.Cut(handle, "/"); ok {
		for _, p := range s.patterns {
			if p.kind != "" && strings.EqualFold(p.kind, kind) {
				return p, rest
			}
		}
	}
	return s.patterns[0], handle
}

// Classify identifies the platform of a URL or text fragment. Inputs that
// name a platform host without a valid handle are rejected.
func Classify(input string) (Match, bool) {
	in := strings.TrimSpace(input)
	if in == "" {
		return Match{}, false
	}
	for _, s := range specs {
		if m, ok := s.match(in); ok {
			return m, true
		}
	}
	return Match{}, false
}

// Build rebuilds a canonical profile URL from a platform and handle.
func Build(p model.Platform, handle string) (string, bool) {
	s, ok := byPlatform[p]
	if !ok {
		return "", false
	}
	pat, h := s.shape(strings.TrimSpace(handle))
	h = strings.TrimPrefix(h, "@")
	if s.PhoneKeyed {
		h = validate.Digits(h)
	}
	if !s.validHandle(h) {
		return "", false
	}
	return fmt.Sprintf(pat.template, h), true
}

// HostPlatform returns the platform whose host matches u, handle or not.
func HostPlatform(u string) (model.Platform, bool) {
	d, ok := validate.Domain(u)
	if !ok {
		return "", false
	}
	for _, s := range specs {
		for _, h := range s.Hosts {
			if d == h || strings.HasSuffix(d, "."+h) {
				return s.Platform, true
			}
		}
	}
	return "", false
}

// ValidProfileURL reports whether u names a specific account. Bare
// platform domains only qualify for phone-keyed platforms carrying a number.
func ValidProfileURL(u string) bool {
	if _, ok := HostPlatform(u); !ok {
		return false
	}
	_, ok := Classify(u)
	return ok
}

// IsProfilePlatform reports whether p pages describe an entity.
func IsProfilePlatform(p model.Platform) bool {
	s, ok := byPlatform[p]
	return ok && s.Profile
}

// ExtractAll returns every distinct platform link found in text.
func ExtractAll(text string) []Match {
	var out []Match
	seen := make(map[string]bool)
	for _, s := range specs {
		for _, p := range s.patterns {
			for _, sub := range p.re.FindAllStringSubmatch(text, -1) {
				m, ok := s.accept(p, sub[1])
				if !ok {
					continue
				}
				key := strings.ToLower(m.URL)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, m)
			}
		}
	}
	return out
}
