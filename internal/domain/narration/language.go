package narration

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// CanonicalLanguage parses a BCP 47 tag (also accepting the underscore form
// used by some platforms, e.g. "en_US") and returns its canonical spelling.
func CanonicalLanguage(code string) (string, error) {
	tag, err := parseTag(code)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// SameLanguage reports whether a voice tagged voiceCode speaks exactly the
// language asked for by hint. The base language must match; a region or
// script is only compared when the hint names one explicitly, so "en" accepts
// "en-GB" but "en-US" does not.
func SameLanguage(hint, voiceCode string) bool {
	want, err := parseTag(hint)
	if err != nil {
		return false
	}
	have, err := parseTag(voiceCode)
	if err != nil {
		return false
	}

	wantBase, conf := want.Base()
	if conf == language.No {
		return false
	}
	haveBase, _ := have.Base()
	if wantBase != haveBase {
		return false
	}

	if wantScript, conf := want.Script(); conf == language.Exact {
		if haveScript, _ := have.Script(); haveScript != wantScript {
			return false
		}
	}
	if wantRegion, conf := want.Region(); conf == language.Exact {
		haveRegion, haveConf := have.Region()
		if haveConf != language.Exact || haveRegion != wantRegion {
			return false
		}
	}
	return true
}

func parseTag(code string) (language.Tag, error) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, err
	}
	if tag == language.Und {
		return language.Und, errUndetermined
	}
	return tag, nil
}

var errUndetermined = errors.New("language is undetermined")
