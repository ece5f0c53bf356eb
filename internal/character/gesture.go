// Package character drives the teaching character's gestures from narration
// lifecycle events.
package character

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Gesture is an animation pose of the character.
type Gesture string

const (
	GestureIdle  Gesture = "idle"
	GestureTalk  Gesture = "talk"
	GestureWave  Gesture = "wave"
	GestureCheer Gesture = "cheer"
	GestureThink Gesture = "think"
)

// ParseGesture maps a lesson's gesture name to a Gesture, defaulting to talk.
func ParseGesture(name string) Gesture {
	switch g := Gesture(name); g {
	case GestureIdle, GestureTalk, GestureWave, GestureCheer, GestureThink:
		return g
	default:
		return GestureTalk
	}
}

// Scheduler is a timed gesture state machine. Every non-idle gesture returns
// to idle on its own timer, whether or not the audio it accompanies has
// finished.
type Scheduler struct {
	mu       sync.Mutex
	state    Gesture
	gen      uint64
	timer    *time.Timer
	onChange func(Gesture)
	log      logrus.FieldLogger
}

// NewScheduler starts idle. onChange, when set, is called after every state
// change, outside the scheduler's lock.
func NewScheduler(onChange func(Gesture), log logrus.FieldLogger) *Scheduler {
	return &Scheduler{state: GestureIdle, onChange: onChange, log: log.WithField("component", "gestures")}
}

// Trigger shows g for d and then returns to idle. A later Trigger replaces
// an earlier one along with its timer.
func (s *Scheduler) Trigger(g Gesture, d time.Duration) {
	if d <= 0 || g == GestureIdle {
		s.set(GestureIdle)
		return
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() { s.expire(gen) })
	s.state = g
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"gesture": g, "duration": d}).Debug("gesture")
	s.notify(g)
}

// State returns the current gesture.
func (s *Scheduler) State() Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop returns to idle and cancels the pending reset.
func (s *Scheduler) Stop() {
	s.set(GestureIdle)
}

func (s *Scheduler) set(g Gesture) {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	changed := s.state != g
	s.state = g
	s.mu.Unlock()

	if changed {
		s.notify(g)
	}
}

// expire resets to idle unless a newer gesture has taken over.
func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = GestureIdle
	s.mu.Unlock()

	s.notify(GestureIdle)
}

func (s *Scheduler) notify(g Gesture) {
	if s.onChange != nil {
		s.onChange(g)
	}
}
