package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

// SAPI speaks through System.Speech on Windows, driven by PowerShell. Text
// is passed on stdin so it never needs quoting.
type SAPI struct {
	path string
	proc process
	log  logrus.FieldLogger
}

const sapiListScript = `Add-Type -AssemblyName System.Speech
$s = New-Object System.Speech.Synthesis.SpeechSynthesizer
$s.GetInstalledVoices() | Where-Object { $_.Enabled } | ForEach-Object {
  $v = $_.VoiceInfo
  "$($v.Name)|$($v.Culture.Name)|$($v.Gender)"
}`

func newSAPI(log logrus.FieldLogger) (*SAPI, error) {
	path, err := exec.LookPath("powershell")
	if err != nil {
		return nil, ErrNotAvailable
	}
	return &SAPI{path: path, log: log.WithField("device", "sapi")}, nil
}

func (s *SAPI) Name() string { return "sapi" }

func (s *SAPI) Voices(ctx context.Context) ([]narration.Voice, error) {
	out, err := exec.CommandContext(ctx, s.path, "-NoProfile", "-Command", sapiListScript).Output()
	if err != nil {
		return nil, fmt.Errorf("list SAPI voices: %w", err)
	}
	return parseSAPIVoices(string(out)), nil
}

func (s *SAPI) Speak(ctx context.Context, text string, voice *narration.Voice, rate float64) error {
	s.log.WithFields(logrus.Fields{"voice": voiceName(voice), "chars": len(text)}).Debug("speaking")
	return s.proc.run(ctx, strings.NewReader(text), s.path, "-NoProfile", "-Command", sapiSpeakScript(voice, rate))
}

func (s *SAPI) Stop() error { return s.proc.stop() }

func sapiSpeakScript(voice *narration.Voice, rate float64) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech\n")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer\n")
	if voice != nil {
		fmt.Fprintf(&b, "$s.SelectVoice('%s')\n", strings.ReplaceAll(voice.ID, "'", "''"))
	}
	fmt.Fprintf(&b, "$s.Rate = %d\n", sapiRate(rate))
	b.WriteString("$s.Speak([Console]::In.ReadToEnd())\n")
	return b.String()
}

// sapiRate maps a multiplier onto SAPI's -10..10 scale where 0 is normal.
func sapiRate(rate float64) int {
	r := int(rate*10) - 10
	return max(-10, min(10, r))
}

func parseSAPIVoices(output string) []narration.Voice {
	var voices []narration.Voice
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(strings.TrimSpace(line), "|")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		lang, err := narration.CanonicalLanguage(parts[1])
		if err != nil {
			continue
		}
		gender := narration.Gender(strings.ToLower(parts[2]))
		if gender != narration.GenderFemale && gender != narration.GenderMale {
			gender = narration.GenderNeutral
		}
		voices = append(voices, narration.Voice{
			ID:           parts[0],
			Name:         parts[0],
			LanguageCode: lang,
			Gender:       gender,
			Origin:       narration.OriginDevice,
		})
	}
	return voices
}
