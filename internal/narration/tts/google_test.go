package tts

import (
	"context"
	"errors"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"kidlingo/internal/config"
)

func testGoogleConfig() config.GoogleConfig {
	return config.GoogleConfig{
		Voices:       map[string]string{"en": "en-US-Neural2-F", "es": "es-US-Neural2-A", "fr-ca": "fr-CA-Neural2-A"},
		Gender:       "female",
		SpeakingRate: 0.85,
		Pitch:        2,
	}
}

func TestGoogle_SynthesizeUsesPersonaVoice(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	var got []*texttospeechpb.SynthesizeSpeechRequest
	g := newGoogleWithFunc(testGoogleConfig(), func(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		got = append(got, req)
		return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3")}, nil
	}, log)

	res, err := g.Synthesize(context.Background(), Request{Text: "Hola", Language: "es"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "es-US-Neural2-A", got[0].Voice.Name)
	assert.Equal(t, "es-US", got[0].Voice.LanguageCode)
	assert.Equal(t, texttospeechpb.SsmlVoiceGender_FEMALE, got[0].Voice.SsmlGender)
	assert.InDelta(t, 0.85, got[0].AudioConfig.SpeakingRate, 1e-9)
	assert.Equal(t, "es-US-Neural2-A", res.VoiceID)
	assert.Equal(t, EncodingMP3, res.Encoding)
}

func TestGoogle_IgnoresForeignVoicePreference(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	g := newGoogleWithFunc(testGoogleConfig(), nil, log)

	params := g.voiceParams(Request{Text: "Bonjour", Language: "fr-CA", VoiceID: "en-US-Neural2-F"})
	assert.Equal(t, "fr-CA-Neural2-A", params.Name)

	params = g.voiceParams(Request{Text: "Hello", Language: "en-GB", VoiceID: "en-GB-Neural2-C"})
	assert.Equal(t, "en-GB-Neural2-C", params.Name)

	// en-US voice is not acceptable for an explicit en-GB request.
	params = g.voiceParams(Request{Text: "Hello", Language: "en-GB"})
	assert.Empty(t, params.Name)
	assert.Equal(t, "en-GB", params.LanguageCode)
}

func TestGoogle_ChunksLongText(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	calls := 0
	g := newGoogleWithFunc(testGoogleConfig(), func(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		calls++
		return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte{byte(calls)}}, nil
	}, log)

	res, err := g.Synthesize(context.Background(), Request{Text: strings.Repeat("a", googleChunkLimit*2+1), Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []byte{1, 2, 3}, res.Audio)
}

func TestGoogle_Errors(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	boom := errors.New("quota exceeded")
	g := newGoogleWithFunc(testGoogleConfig(), func(context.Context, *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return nil, boom
	}, log)
	_, err := g.Synthesize(context.Background(), Request{Text: "Hi", Language: "en"})
	assert.ErrorIs(t, err, boom)

	g = newGoogleWithFunc(testGoogleConfig(), func(context.Context, *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return &texttospeechpb.SynthesizeSpeechResponse{}, nil
	}, log)
	_, err = g.Synthesize(context.Background(), Request{Text: "Hi", Language: "en"})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSplitIntoChunks(t *testing.T) {
	assert.Equal(t, []string{"ab", "cd", "e"}, splitIntoChunks("abcde", 2))
	assert.Equal(t, []string{"¡Ho", "la!"}, splitIntoChunks("¡Hola!", 3))
	assert.Nil(t, splitIntoChunks("", 3))
}
