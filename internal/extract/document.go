package extract

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/validate"
)

var (
	mdLinkRe   = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)
	bareURLRe  = regexp.MustCompile(`https?://[^\s<>"'()\]]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
)

// Document is a RawContent parsed once and shared by every strategy.
// Strategies must treat it as read-only.
type Document struct {
	Content model.RawContent

	once  sync.Once
	doc   *goquery.Document
	text  string
	links []string
}

// NewDocument wraps content for extraction.
func NewDocument(content model.RawContent) *Document {
	return &Document{Content: content}
}

func (d *Document) parse() {
	d.once.Do(func() {
		if d.Content.Type == model.ContentHTML {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.Content.Body))
			if err == nil {
				d.doc = doc
			}
		}
		d.text = d.buildText()
		d.links = d.buildLinks()
	})
}

// HTML returns the parsed DOM, or nil for non-HTML content.
func (d *Document) HTML() *goquery.Document {
	d.parse()
	return d.doc
}

// Text returns the visible text of the content.
func (d *Document) Text() string {
	d.parse()
	return d.text
}

// Links returns every distinct absolute outbound link.
func (d *Document) Links() []string {
	d.parse()
	return d.links
}

// Title returns the <title> text, falling back to the provider's title.
func (d *Document) Title() string {
	d.parse()
	if d.doc != nil {
		if t := validate.CollapseSpace(d.doc.Find("title").First().Text()); t != "" {
			return t
		}
	}
	return validate.CollapseSpace(d.Content.Title)
}

// buildText drops non-content elements and collapses whitespace while
// keeping block boundaries as newlines.
func (d *Document) buildText() string {
	if d.doc == nil {
		return strings.TrimSpace(d.Content.Body)
	}
	body := d.doc.Find("body").Clone()
	if body.Length() == 0 {
		body = d.doc.Selection.Clone()
	}
	body.Find("script, style, noscript, template, svg, iframe").Remove()
	body.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, section, article, dd, dt, header, footer, address").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := body.Text()
	text = spaceRunRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRunRe.ReplaceAllString(text, "\n\n"))
}

func (d *Document) buildLinks() []string {
	var raw []string
	if d.doc != nil {
		d.doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			raw = append(raw, d.resolve(href))
		})
	} else {
		for _, m := range mdLinkRe.FindAllStringSubmatch(d.Content.Body, -1) {
			raw = append(raw, m[1])
		}
		for _, u := range bareURLRe.FindAllString(d.Content.Body, -1) {
			raw = append(raw, strings.TrimRight(u, ".,;:!?"))
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		u, ok := validate.URL(r)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// resolve makes href absolute against the content's URL.
func (d *Document) resolve(href string) string {
	href = strings.TrimSpace(href)
	base := d.Content.FinalURL
	if base == "" {
		base = d.Content.Target
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
