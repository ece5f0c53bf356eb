package narration

import (
	"strings"
	"time"
)

// Origin tells where a voice or an asset came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginDevice Origin = "device"
)

// Gender of a voice persona.
type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderNeutral Gender = "neutral"
)

// Request asks for one narration. It is a value and is never mutated after
// construction.
type Request struct {
	Text         string `json:"text"`
	LanguageHint string `json:"languageHint"`
	VoiceID      string `json:"voiceId,omitempty"`
}

// NewRequest builds a Request and validates it.
func NewRequest(text, languageHint, voiceID string) (Request, error) {
	r := Request{Text: text, LanguageHint: languageHint, VoiceID: voiceID}
	return r, r.Validate()
}

// Validate reports a *ValidationError when the request cannot be narrated.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.LanguageHint) == "" {
		return &ValidationError{Field: "languageHint", Reason: "must not be empty"}
	}
	return nil
}

// Asset is a synthesized narration. Assets are created once per cache key and
// never mutated afterwards.
type Asset struct {
	ID           string        `json:"id"`
	CacheKey     string        `json:"cacheKey"`
	Payload      []byte        `json:"payload,omitempty"`
	Encoding     string        `json:"encoding"`
	LanguageCode string        `json:"languageCode"`
	VoiceID      string        `json:"voiceId"`
	Provider     string        `json:"provider"`
	Duration     time.Duration `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Voice describes a voice that can be selected for narration.
type Voice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LanguageCode string `json:"languageCode"`
	Gender       Gender `json:"gender,omitempty"`
	Origin       Origin `json:"origin"`
}

func (v Voice) String() string {
	if v.Name != "" && v.Name != v.ID {
		return v.Name + " (" + v.LanguageCode + ")"
	}
	return v.ID + " (" + v.LanguageCode + ")"
}
