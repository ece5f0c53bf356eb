package playback

import (
	"strings"

	"kidlingo/internal/domain/narration"
)

// Selection is the outcome of choosing an on-device voice. Voice is nil in
// degraded mode, meaning the engine's default voice.
type Selection struct {
	Voice    *narration.Voice
	Degraded bool
	Err      error
}

// SelectVoice picks a voice whose language tag matches language. Names are
// never consulted for language: a voice called "English" tagged de-DE does
// not speak English as far as selection is concerned. A preferred ID or name
// is honoured only among compliant voices. When nothing complies the
// selection is degraded and Err is a *narration.NoCompliantVoiceError.
func SelectVoice(voices []narration.Voice, language, preferred string) Selection {
	var compliant []narration.Voice
	for _, v := range voices {
		if narration.SameLanguage(language, v.LanguageCode) {
			compliant = append(compliant, v)
		}
	}

	if len(compliant) == 0 {
		available := make([]string, 0, len(voices))
		for _, v := range voices {
			available = append(available, v.LanguageCode)
		}
		return Selection{
			Degraded: true,
			Err:      &narration.NoCompliantVoiceError{Language: language, Available: available},
		}
	}

	if preferred != "" {
		for i, v := range compliant {
			if strings.EqualFold(v.ID, preferred) || strings.EqualFold(v.Name, preferred) {
				return Selection{Voice: &compliant[i]}
			}
		}
	}

	want, _ := narration.CanonicalLanguage(language)
	for i, v := range compliant {
		if have, err := narration.CanonicalLanguage(v.LanguageCode); err == nil && have == want {
			return Selection{Voice: &compliant[i]}
		}
	}
	return Selection{Voice: &compliant[0]}
}
