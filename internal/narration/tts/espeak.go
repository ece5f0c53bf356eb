package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

// ESpeak speaks through eSpeak or eSpeak NG. It is available on most Linux
// systems and is the default device there.
type ESpeak struct {
	path string
	wpm  int
	proc process
	log  logrus.FieldLogger
}

func newESpeak(wpm int, log logrus.FieldLogger) (*ESpeak, error) {
	path, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}
	return &ESpeak{path: path, wpm: wpm, log: log.WithField("device", "espeak")}, nil
}

func findESpeakExecutable() (string, error) {
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", ErrNotAvailable
}

func (e *ESpeak) Name() string { return "espeak" }

func (e *ESpeak) Voices(ctx context.Context) ([]narration.Voice, error) {
	out, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list eSpeak voices: %w", err)
	}
	return parseESpeakVoices(string(out)), nil
}

func (e *ESpeak) Speak(ctx context.Context, text string, voice *narration.Voice, rate float64) error {
	args := []string{"-s", strconv.Itoa(speed(e.wpm, rate))}
	if voice != nil {
		args = append(args, "-v", voice.ID)
	}
	args = append(args, "--stdin")

	e.log.WithFields(logrus.Fields{"voice": voiceName(voice), "chars": len(text)}).Debug("speaking")
	return e.proc.run(ctx, strings.NewReader(text), e.path, args...)
}

func (e *ESpeak) Stop() error { return e.proc.stop() }

// parseESpeakVoices reads the table printed by `espeak --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 3)
func parseESpeakVoices(output string) []narration.Voice {
	var voices []narration.Voice
	for i, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 4 {
			continue
		}
		lang, err := narration.CanonicalLanguage(fields[1])
		if err != nil {
			continue
		}

		gender := narration.GenderNeutral
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch g {
			case "F":
				gender = narration.GenderFemale
			case "M":
				gender = narration.GenderMale
			}
		}

		voices = append(voices, narration.Voice{
			ID:           fields[1],
			Name:         strings.ReplaceAll(fields[3], "_", " "),
			LanguageCode: lang,
			Gender:       gender,
			Origin:       narration.OriginDevice,
		})
	}
	return voices
}

func voiceName(v *narration.Voice) string {
	if v == nil {
		return "default"
	}
	return v.ID
}
