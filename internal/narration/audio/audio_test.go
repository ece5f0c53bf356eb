package audio

import (
	"testing"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
)

func TestDuration_RejectsEmptyAndGarbage(t *testing.T) {
	_, err := Duration(nil)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = Duration([]byte("definitely not an mp3"))
	assert.Error(t, err)
}

func TestStoppable(t *testing.T) {
	st := &stoppable{Streamer: beep.Silence(-1)}
	buf := make([][2]float64, 512)

	n, ok := st.Stream(buf)
	assert.Equal(t, 512, n)
	assert.True(t, ok)

	st.stopped.Store(true)
	n, ok = st.Stream(buf)
	assert.Zero(t, n)
	assert.False(t, ok)
}
