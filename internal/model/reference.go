package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EntityReference is the partial identity handed to the pipeline.
// At least one field must be set.
type EntityReference struct {
	Domain     string `json:"domain,omitempty" yaml:"domain"`
	ProfileURL string `json:"profile_url,omitempty" yaml:"profile_url"`
	Name       string `json:"name,omitempty" yaml:"name"`
	Region     string `json:"region,omitempty" yaml:"region"`
	Email      string `json:"email,omitempty" yaml:"email"`
	Phone      string `json:"phone,omitempty" yaml:"phone"`
}

// ErrEmptyReference is returned when no identifying field is present.
var ErrEmptyReference = eris.New("model: entity reference has no identifying fields")

// Validate checks that the reference carries something to search on.
func (r EntityReference) Validate() error {
	if r.Domain == "" && r.ProfileURL == "" && r.Name == "" && r.Email == "" && r.Phone == "" {
		return ErrEmptyReference
	}
	return nil
}

// Trimmed returns a copy with whitespace removed from every field.
func (r EntityReference) Trimmed() EntityReference {
	return EntityReference{
		Domain:     strings.TrimSpace(r.Domain),
		ProfileURL: strings.TrimSpace(r.ProfileURL),
		Name:       strings.TrimSpace(r.Name),
		Region:     strings.TrimSpace(r.Region),
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
	}
}

// Label is a short human identifier used in logs.
func (r EntityReference) Label() string {
	switch {
	case r.ProfileURL != "":
		return r.ProfileURL
	case r.Domain != "":
		return r.Domain
	case r.Name != "":
		return r.Name
	case r.Email != "":
		return r.Email
	default:
		return r.Phone
	}
}
