package tts

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidlingo/internal/config"
)

func TestNewProviders_KeepsOrderAndSkipsBroken(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	cfg := config.Default()
	cfg.ElevenLabs.APIKey = ""
	cfg.Gateway.Providers = []string{"mock", "elevenlabs", "MOCK"}

	providers, err := NewProviders(context.Background(), cfg, log)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "mock", providers[0].Name())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "elevenlabs", hook.LastEntry().Data["provider"])
	assert.NoError(t, CloseProviders(providers))
}

func TestNewProviders_NoneUsable(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := config.Default()
	cfg.ElevenLabs.APIKey = ""

	cfg.Gateway.Providers = []string{"elevenlabs", "carrier-pigeon"}
	_, err := NewProviders(context.Background(), cfg, log)
	assert.Error(t, err)

	cfg.Gateway.Providers = nil
	_, err = NewProviders(context.Background(), cfg, log)
	assert.Error(t, err)
}

func TestNewDevice(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	_, err := NewDevice(config.PlaybackConfig{Device: "none"}, log)
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = NewDevice(config.PlaybackConfig{Device: "gramophone"}, log)
	assert.Error(t, err)
}
