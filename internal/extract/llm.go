package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// maxLLMInput caps the text sent to the model.
const maxLLMInput = 24000

const llmSystemPrompt = `You extract facts about one organization from a web page.
Respond with a single JSON object and nothing else. Use only facts stated in the page.
Omit keys you cannot find. Never guess.`

// Completer sends a prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLM asks a language model for the field table as JSON.
type LLM struct {
	completer Completer
}

// NewLLM returns the model-backed strategy. A nil completer leaves it
// unconfigured.
func NewLLM(c Completer) *LLM { return &LLM{completer: c} }

// Method implements Strategy.
func (l *LLM) Method() model.Method { return model.MethodLLM }

// Configured implements Optional.
func (l *LLM) Configured() bool { return l != nil && l.completer != nil }

// Extract implements Strategy.
func (l *LLM) Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodLLM)
	if !l.Configured() {
		return res, nil
	}
	text := doc.Text()
	if len(text) < 50 {
		return res, nil
	}

	reply, err := l.completer.Complete(ctx, llmSystemPrompt, buildLLMPrompt(doc, validate.Truncate(text, maxLLMInput)))
	if err != nil {
		return res, eris.Wrap(err, "extract: llm completion")
	}

	body := cleanJSON(reply)
	if !gjson.Valid(body) {
		return res, resilience.NewMalformedError("llm reply", 0)
	}
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return res, resilience.NewMalformedError("llm reply", 0)
	}

	parsed.ForEach(func(key, val gjson.Result) bool {
		k := key.String()
		if strings.EqualFold(k, "social_links") {
			for _, u := range stringsOf(val) {
				if m, ok := platform.Classify(u); ok {
					res.AddLink(model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle})
				}
			}
			return true
		}
		switch {
		case val.IsArray():
			res.AddKey(k, model.List(stringsOf(val)...))
		case val.Type == gjson.Number:
			res.AddKey(k, model.Int(val.Int()))
		case val.Type == gjson.String:
			res.AddKey(k, model.Text(val.String()))
		}
		return true
	})
	return res, nil
}

func buildLLMPrompt(doc *Document, text string) string {
	var b strings.Builder
	b.WriteString("Return a JSON object with these keys when present:\n")
	for _, s := range model.Fields() {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Field, kindHint(s.Kind))
	}
	b.WriteString("- social_links (array of profile URLs)\n\n")
	if t := doc.Title(); t != "" {
		fmt.Fprintf(&b, "Page title: %s\n", t)
	}
	fmt.Fprintf(&b, "Page URL: %s\n\n", doc.Content.Target)
	b.WriteString("Page text:\n")
	b.WriteString(text)
	return b.String()
}

func kindHint(k model.FieldKind) string {
	switch k {
	case model.KindList:
		return "array of strings"
	case model.KindCount:
		return "integer"
	case model.KindYear:
		return "four-digit year"
	case model.KindURL:
		return "absolute URL"
	default:
		return "string"
	}
}

// cleanJSON strips code fences and surrounding prose from a model reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
