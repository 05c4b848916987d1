package model

// Platform names a social or profile platform.
type Platform string

const (
	PlatformLinkedIn   Platform = "linkedin"
	PlatformInstagram  Platform = "instagram"
	PlatformFacebook   Platform = "facebook"
	PlatformTwitter    Platform = "twitter"
	PlatformYouTube    Platform = "youtube"
	PlatformTikTok     Platform = "tiktok"
	PlatformPinterest  Platform = "pinterest"
	PlatformGitHub     Platform = "github"
	PlatformCrunchbase Platform = "crunchbase"
	PlatformTelegram   Platform = "telegram"
	PlatformWhatsApp   Platform = "whatsapp"
)

// SocialLink is a normalized link to a platform profile.
type SocialLink struct {
	Platform   Platform `json:"platform"`
	URL        string   `json:"url"`
	Handle     string   `json:"handle,omitempty"`
	Confidence float64  `json:"confidence"`
	Method     Method   `json:"method"`
	Verified   bool     `json:"verified"`
}

// ExtractionResult is what one strategy produced from one RawContent.
// Fields holds every candidate per field in emission order.
type ExtractionResult struct {
	Method Method                 `json:"method"`
	Source string                 `json:"source"`
	Fields map[Field][]FieldValue `json:"fields,omitempty"`
	Links  []SocialLink           `json:"links,omitempty"`
	Err    string                 `json:"error,omitempty"`
}

// NewExtractionResult returns an empty result for the given method.
func NewExtractionResult(m Method) *ExtractionResult {
	return &ExtractionResult{Method: m, Fields: make(map[Field][]FieldValue)}
}

// Add records a candidate under a canonical field.
func (r *ExtractionResult) Add(f Field, v FieldValue) {
	if v.IsZero() {
		return
	}
	if v.Key == "" {
		v.Key = string(f)
	}
	r.Fields[f] = append(r.Fields[f], v)
}

// AddKey records a candidate under a raw key, resolving aliases.
// Unknown keys are ignored and reported false.
func (r *ExtractionResult) AddKey(key string, v FieldValue) bool {
	f, ok := LookupField(key)
	if !ok {
		return false
	}
	v.Key = key
	r.Add(f, v)
	return true
}

// AddLink records a platform link candidate.
func (r *ExtractionResult) AddLink(l SocialLink) {
	r.Links = append(r.Links, l)
}

// Empty reports whether the strategy found nothing.
func (r *ExtractionResult) Empty() bool {
	return len(r.Fields) == 0 && len(r.Links) == 0
}

// Outcome is the terminal state of an enrichment.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeDegraded Outcome = "degraded"
)

// AttemptSummary describes one acquisition attempt for diagnostics.
type AttemptSummary struct {
	Kind       string  `json:"kind"`
	Target     string  `json:"target"`
	Provider   string  `json:"provider,omitempty"`
	Retries    int     `json:"retries"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// ConsolidatedRecord is the pipeline's output for one reference.
type ConsolidatedRecord struct {
	Reference         EntityReference      `json:"reference"`
	Fields            map[Field]FieldValue `json:"fields"`
	SocialLinks       []SocialLink         `json:"social_links"`
	ConfidenceScore   float64              `json:"confidence_score"`
	ExtractionMethods []Method             `json:"extraction_methods"`
	DataSources       []string             `json:"data_sources"`
	Outcome           Outcome              `json:"outcome"`
	Reason            string               `json:"reason,omitempty"`
	Attempts          []AttemptSummary     `json:"attempts,omitempty"`
}

// NewRecord returns an empty record for ref.
func NewRecord(ref EntityReference) *ConsolidatedRecord {
	return &ConsolidatedRecord{
		Reference:         ref,
		Fields:            make(map[Field]FieldValue),
		SocialLinks:       []SocialLink{},
		ExtractionMethods: []Method{},
		DataSources:       []string{},
	}
}

// Get returns a field value if present.
func (r *ConsolidatedRecord) Get(f Field) (FieldValue, bool) {
	if r == nil {
		return FieldValue{}, false
	}
	v, ok := r.Fields[f]
	return v, ok && !v.IsZero()
}

// TextOf returns the string form of a field, or "".
func (r *ConsolidatedRecord) TextOf(f Field) string {
	v, ok := r.Get(f)
	if !ok {
		return ""
	}
	return v.String()
}

// MissingContact lists contact fields that are still empty.
func (r *ConsolidatedRecord) MissingContact() []Field {
	var out []Field
	for _, f := range ContactFields() {
		if _, ok := r.Get(f); !ok {
			out = append(out, f)
		}
	}
	return out
}
