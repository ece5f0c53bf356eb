// Package audio decodes synthesized narration and plays it on the local
// speaker.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

var (
	ErrNoAudio       = errors.New("asset has no audio payload")
	ErrUnknownLength = errors.New("audio length is unknown")
)

const sampleRate = beep.SampleRate(44100)

// go-mp3 only computes the stream length when the source can seek.
type readSeekNopCloser struct{ *bytes.Reader }

func (readSeekNopCloser) Close() error { return nil }

// Decode opens an MP3 payload for streaming.
func Decode(payload []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(payload) == 0 {
		return nil, beep.Format{}, ErrNoAudio
	}
	s, format, err := mp3.Decode(readSeekNopCloser{bytes.NewReader(payload)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
	}
	return s, format, nil
}

// Duration measures how long an MP3 payload plays.
func Duration(payload []byte) (time.Duration, error) {
	s, format, err := Decode(payload)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	n := s.Len()
	if n <= 0 {
		return 0, ErrUnknownLength
	}
	return format.SampleRate.D(n), nil
}

// Speaker plays one asset at a time on the default output device.
type Speaker struct {
	mu      sync.Mutex
	ready   bool
	current *stoppable
	log     logrus.FieldLogger
}

func NewSpeaker(log logrus.FieldLogger) *Speaker {
	return &Speaker{log: log.WithField("component", "speaker")}
}

// Play blocks until the asset has been heard in full. A call to Stop makes it
// return narration.ErrPlaybackInterrupted.
func (s *Speaker) Play(ctx context.Context, asset *narration.Asset) error {
	streamer, format, err := Decode(asset.Payload)
	if err != nil {
		return err
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		src = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}
	st := &stoppable{Streamer: src}
	done := make(chan struct{})

	s.mu.Lock()
	if !s.ready {
		if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("init speaker: %w", err)
		}
		s.ready = true
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.stopLocked()
	s.current = st
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"asset": asset.ID, "duration": asset.Duration}).Debug("playing")
	speaker.Play(beep.Seq(st, beep.Callback(func() { close(done) })))

	select {
	case <-done:
	case <-ctx.Done():
		s.halt(st)
		return ctx.Err()
	}

	s.mu.Lock()
	if s.current == st {
		s.current = nil
	}
	s.mu.Unlock()

	if st.stopped.Load() {
		return narration.ErrPlaybackInterrupted
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// Stop silences whatever is playing.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Speaker) stopLocked() {
	if s.current != nil {
		s.halt(s.current)
		s.current = nil
	}
}

// halt marks st stopped under the speaker lock so the mixer never reads the
// decoder again once halt returns.
func (s *Speaker) halt(st *stoppable) {
	speaker.Lock()
	st.stopped.Store(true)
	speaker.Unlock()
}

type stoppable struct {
	beep.Streamer
	stopped atomic.Bool
}

func (s *stoppable) Stream(samples [][2]float64) (int, bool) {
	if s.stopped.Load() {
		return 0, false
	}
	return s.Streamer.Stream(samples)
}
