package character

import (
	"kidlingo/internal/narration/playback"
)

// Bridge feeds narration lifecycle events to a Scheduler. Only OnStart
// matters: the scheduler resets itself when the duration elapses.
type Bridge struct {
	scheduler *Scheduler
}

func NewBridge(s *Scheduler) *Bridge {
	return &Bridge{scheduler: s}
}

func (b *Bridge) OnStart(ev playback.Event) {
	b.scheduler.Trigger(ParseGesture(ev.Gesture), ev.Duration)
}

func (b *Bridge) OnEnd(playback.Event) {}

func (b *Bridge) OnError(playback.Event) {}
