package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock(t *testing.T) {
	m := NewMock("primary")
	assert.Equal(t, "primary", m.Name())

	res, err := m.Synthesize(context.Background(), Request{Text: "one two three", Language: "en"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Audio)
	assert.Equal(t, "primary-voice", res.VoiceID)
	assert.Equal(t, 1200*time.Millisecond, res.Duration)

	boom := errors.New("boom")
	m.FailWith(boom)
	_, err = m.Synthesize(context.Background(), Request{Text: "x", Language: "en"})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 2, m.Calls())
	assert.Len(t, m.Requests(), 2)
}

func TestMock_DelayHonoursContext(t *testing.T) {
	m := NewMock("slow")
	m.SetDelay(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Synthesize(ctx, Request{Text: "x", Language: "en"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
