package model

import "time"

// ContentType is the body format of fetched content.
type ContentType string

const (
	ContentHTML     ContentType = "html"
	ContentMarkdown ContentType = "markdown"
	ContentText     ContentType = "text"
)

// RawContent is one fetched page or research answer.
type RawContent struct {
	Target     string      `json:"target"`
	FinalURL   string      `json:"final_url,omitempty"`
	Provider   string      `json:"provider"`
	Type       ContentType `json:"type"`
	Title      string      `json:"title,omitempty"`
	Body       string      `json:"body"`
	StatusCode int         `json:"status_code,omitempty"`
	FetchedAt  time.Time   `json:"fetched_at"`
}
