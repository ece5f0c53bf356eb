package tts

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"kidlingo/internal/config"
	"kidlingo/internal/domain/narration"
)

// Google's request limit is 5000 bytes of input.
const googleChunkLimit = 4800

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// Google synthesizes narration with Google Cloud Text-to-Speech. It is the
// primary provider.
type Google struct {
	cfg        config.GoogleConfig
	synthesize synthesizeFunc
	close      func() error
	log        logrus.FieldLogger
}

func newGoogle(ctx context.Context, cfg config.GoogleConfig, log logrus.FieldLogger) (*Google, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	g := newGoogleWithFunc(cfg, func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, log)
	g.close = client.Close
	return g, nil
}

func newGoogleWithFunc(cfg config.GoogleConfig, fn synthesizeFunc, log logrus.FieldLogger) *Google {
	return &Google{
		cfg:        cfg,
		synthesize: fn,
		close:      func() error { return nil },
		log:        log.WithField("provider", "google"),
	}
}

func (g *Google) Name() string { return "google" }

// Close releases the underlying gRPC connection.
func (g *Google) Close() error { return g.close() }

func (g *Google) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voice := g.voiceParams(req)

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices reject speakingRate and pitch.
	if !strings.Contains(strings.ToLower(voice.Name), "chirp") {
		audioCfg.SpeakingRate = g.cfg.SpeakingRate
		audioCfg.Pitch = g.cfg.Pitch
	}

	var audio []byte
	chunks := splitIntoChunks(req.Text, googleChunkLimit)
	for i, chunk := range chunks {
		resp, err := g.synthesize(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice:       voice,
			AudioConfig: audioCfg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}
		// MP3 frames concatenate cleanly.
		audio = append(audio, resp.AudioContent...)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	g.log.WithFields(logrus.Fields{
		"voice":  voice.Name,
		"chunks": len(chunks),
		"bytes":  len(audio),
	}).Debug("synthesized narration")

	return &Result{
		Audio:    audio,
		Encoding: EncodingMP3,
		VoiceID:  firstNonEmpty(voice.Name, voice.LanguageCode),
		Language: voice.LanguageCode,
	}, nil
}

// voiceParams picks the voice for req: an explicit Google voice name in the
// right language wins, then the persona voice configured for the language,
// then Google's own choice for the language and persona gender.
func (g *Google) voiceParams(req Request) *texttospeechpb.VoiceSelectionParams {
	params := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: req.Language,
		SsmlGender:   googleGender(g.cfg.Gender),
	}

	if name := req.VoiceID; name != "" && narration.SameLanguage(req.Language, googleVoiceLanguage(name)) {
		params.Name = name
		params.LanguageCode = googleVoiceLanguage(name)
		return params
	}

	if name := lookupVoice(g.cfg.Voices, req.Language); name != "" {
		params.Name = name
		params.LanguageCode = googleVoiceLanguage(name)
	}
	return params
}

// googleVoiceLanguage extracts "en-US" from "en-US-Neural2-F".
func googleVoiceLanguage(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

func googleGender(g string) texttospeechpb.SsmlVoiceGender {
	switch narration.Gender(strings.ToLower(g)) {
	case narration.GenderFemale:
		return texttospeechpb.SsmlVoiceGender_FEMALE
	case narration.GenderMale:
		return texttospeechpb.SsmlVoiceGender_MALE
	case narration.GenderNeutral:
		return texttospeechpb.SsmlVoiceGender_NEUTRAL
	default:
		return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
	}
}

// lookupVoice finds the configured voice for a language, trying the full tag
// first and then its base language. Map keys are compared case-insensitively
// because viper lowercases them.
func lookupVoice(voices map[string]string, lang string) string {
	lang = strings.ToLower(lang)
	if v, ok := voices[lang]; ok && narration.SameLanguage(lang, googleVoiceLanguage(v)) {
		return v
	}
	if base, _, found := strings.Cut(lang, "-"); found {
		if v, ok := voices[base]; ok && narration.SameLanguage(lang, googleVoiceLanguage(v)) {
			return v
		}
	}
	return ""
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
