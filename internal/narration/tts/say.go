package tts

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

// Say speaks through the macOS say command.
type Say struct {
	path string
	wpm  int
	proc process
	log  logrus.FieldLogger
}

func newSay(wpm int, log logrus.FieldLogger) (*Say, error) {
	path, err := exec.LookPath("say")
	if err != nil {
		return nil, ErrNotAvailable
	}
	return &Say{path: path, wpm: wpm, log: log.WithField("device", "say")}, nil
}

func (s *Say) Name() string { return "say" }

func (s *Say) Voices(ctx context.Context) ([]narration.Voice, error) {
	out, err := exec.CommandContext(ctx, s.path, "-v", "?").Output()
	if err != nil {
		return nil, fmt.Errorf("list say voices: %w", err)
	}
	return parseSayVoices(string(out)), nil
}

func (s *Say) Speak(ctx context.Context, text string, voice *narration.Voice, rate float64) error {
	args := []string{"-r", strconv.Itoa(speed(s.wpm, rate))}
	if voice != nil {
		args = append(args, "-v", voice.ID)
	}
	args = append(args, "-f", "-")

	s.log.WithFields(logrus.Fields{"voice": voiceName(voice), "chars": len(text)}).Debug("speaking")
	return s.proc.run(ctx, strings.NewReader(text), s.path, args...)
}

func (s *Say) Stop() error { return s.proc.stop() }

// Lines look like "Samantha            en_US    # Hello! My name is Samantha."
// and newer systems add a parenthesised variant to the name.
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9_-]+)\s+#`)

func parseSayVoices(output string) []narration.Voice {
	var voices []narration.Voice
	for _, line := range strings.Split(output, "\n") {
		m := sayVoiceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lang, err := narration.CanonicalLanguage(m[2])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, narration.Voice{
			ID:           name,
			Name:         name,
			LanguageCode: lang,
			Origin:       narration.OriginDevice,
		})
	}
	return voices
}
