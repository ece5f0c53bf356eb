package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"kidlingo/internal/domain/narration"
)

// Key identifies one cached narration. It is a structured value so that the
// same text in two languages, or in two voices, never collides.
type Key struct {
	Version  string
	Text     string
	Language string
	Voice    string
}

// String renders a compact, log-safe form of the key. The text is hashed.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Text))
	return fmt.Sprintf("%s/%s/%s/%s", k.Version, k.Language, k.Voice, hex.EncodeToString(sum[:8]))
}

// Normalizer derives stable cache keys from narration requests.
type Normalizer struct {
	version string
}

// NewNormalizer returns a Normalizer whose keys are namespaced by version.
// Bumping the version invalidates every previously cached narration.
func NewNormalizer(version string) *Normalizer {
	return &Normalizer{version: version}
}

// Key validates req and derives its cache key. Text is NFC-normalized and
// whitespace-collapsed; the language is canonicalized as a BCP 47 tag.
func (n *Normalizer) Key(req narration.Request) (Key, error) {
	if err := req.Validate(); err != nil {
		return Key{}, err
	}
	lang, err := narration.CanonicalLanguage(req.LanguageHint)
	if err != nil {
		return Key{}, &narration.ValidationError{Field: "languageHint", Reason: fmt.Sprintf("is not a language tag (%v)", err)}
	}
	return Key{
		Version:  n.version,
		Text:     NormalizeText(req.Text),
		Language: lang,
		Voice:    strings.TrimSpace(req.VoiceID),
	}, nil
}

// NormalizeText applies the same text normalization used for keys.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}
