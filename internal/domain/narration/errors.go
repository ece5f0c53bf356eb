package narration

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds as they appear on the wire.
const (
	KindValidation          = "validation"
	KindProviderUnavailable = "provider_unavailable"
	KindNoCompliantVoice    = "no_compliant_voice"
	KindPlaybackInterrupted = "playback_interrupted"
	KindInternal            = "internal"
)

// ErrPlaybackInterrupted marks an utterance that was superseded by a newer
// play call. It is not a user-facing failure.
var ErrPlaybackInterrupted = errors.New("playback interrupted by a newer narration")

// ValidationError is returned for requests that can never be narrated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid narration request: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() string { return KindValidation }

// ProviderFailure records why a single provider did not produce audio.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ProviderUnavailableError is returned when every remote provider failed.
type ProviderUnavailableError struct {
	Failures []ProviderFailure
}

func (e *ProviderUnavailableError) Error() string {
	if len(e.Failures) == 0 {
		return "no speech provider configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return "all speech providers failed: " + strings.Join(parts, "; ")
}

func (e *ProviderUnavailableError) Kind() string { return KindProviderUnavailable }

// Unwrap exposes the individual provider errors to errors.Is and errors.As.
func (e *ProviderUnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// NoCompliantVoiceError reports that no on-device voice speaks the requested
// language. The arbiter degrades instead of failing, so this error is mostly
// seen in logs and lifecycle events.
type NoCompliantVoiceError struct {
	Language  string
	Available []string
}

func (e *NoCompliantVoiceError) Error() string {
	return fmt.Sprintf("no on-device voice for language %q (have %s)", e.Language, strings.Join(e.Available, ", "))
}

func (e *NoCompliantVoiceError) Kind() string { return KindNoCompliantVoice }

// KindOf maps an error to its wire kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, ErrPlaybackInterrupted) {
		return KindPlaybackInterrupted
	}
	return KindInternal
}
