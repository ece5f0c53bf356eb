// Package tts holds the remote speech providers used by the synthesis
// gateway and the on-device speech engines used for offline narration.
package tts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyAudio   = errors.New("provider returned no audio")
	ErrNotAvailable = errors.New("speech engine not available")
)

// Request is what a remote provider is asked to speak. Language is a
// canonical BCP 47 tag; VoiceID is an optional caller preference that each
// provider maps onto its own voice vocabulary.
type Request struct {
	Text     string
	Language string
	VoiceID  string
}

// Result is synthesized audio. Duration is zero when the provider does not
// report one.
type Result struct {
	Audio    []byte
	Encoding string
	VoiceID  string
	Language string
	Duration time.Duration
}

// Provider is a remote text-to-speech service.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

const EncodingMP3 = "mp3"
