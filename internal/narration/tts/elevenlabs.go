package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/config"
)

const elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel

// ElevenLabs synthesizes narration through the ElevenLabs REST API. It is the
// secondary provider and receives the same persona as Google, mapped onto
// ElevenLabs voice IDs.
type ElevenLabs struct {
	cfg    config.ElevenLabsConfig
	client *http.Client
	log    logrus.FieldLogger
}

func newElevenLabs(cfg config.ElevenLabsConfig, log logrus.FieldLogger) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key not set")
	}
	return &ElevenLabs{
		cfg: cfg,
		// The gateway bounds each call with its own deadline.
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log.WithField("provider", "elevenlabs"),
	}, nil
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voiceID := e.voiceID(req.VoiceID)

	body, err := json.Marshal(elevenLabsRequest{
		Text:         req.Text,
		ModelID:      e.cfg.ModelID,
		LanguageCode: baseLanguage(req.Language),
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
			Speed:           e.cfg.SpeakingRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128", strings.TrimRight(e.cfg.Endpoint, "/"), voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ElevenLabs API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	e.log.WithFields(logrus.Fields{"voice": voiceID, "bytes": len(audio)}).Debug("synthesized narration")

	return &Result{
		Audio:    audio,
		Encoding: EncodingMP3,
		VoiceID:  voiceID,
		Language: req.Language,
	}, nil
}

// voiceID maps a caller preference onto an ElevenLabs voice. Known aliases
// and genders are looked up in the configured map; unknown preferences fall
// back to the persona gender so a foreign voice name never reaches the API.
func (e *ElevenLabs) voiceID(preferred string) string {
	if id, ok := e.cfg.Voices[strings.ToLower(preferred)]; ok && preferred != "" {
		return id
	}
	if id, ok := e.cfg.Voices[strings.ToLower(e.cfg.Gender)]; ok {
		return id
	}
	return elevenLabsDefaultVoice
}

func baseLanguage(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}
