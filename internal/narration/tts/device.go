package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"kidlingo/internal/domain/narration"
)

// Device is an on-device speech engine. Speak blocks until the utterance has
// finished, the context is cancelled or Stop is called.
type Device interface {
	Name() string
	Voices(ctx context.Context) ([]narration.Voice, error)
	// Speak says text with voice. A nil voice means the engine default.
	// Rate scales the engine's normal speed; 1.0 is unchanged.
	Speak(ctx context.Context, text string, voice *narration.Voice, rate float64) error
	Stop() error
}

// process runs one speech command at a time and lets another goroutine stop
// it.
type process struct {
	mu      sync.Mutex
	current *running
}

type running struct {
	cmd     *exec.Cmd
	stopped bool
}

func (p *process) run(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r := &running{cmd: cmd}
	p.mu.Lock()
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", name, err)
	}
	p.current = r
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	stopped := r.stopped
	if p.current == r {
		p.current = nil
	}
	p.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stopped:
		return narration.ErrPlaybackInterrupted
	case err != nil:
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (p *process) stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.cmd.Process == nil {
		return nil
	}
	p.current.stopped = true
	return interrupt(p.current.cmd.Process)
}

// speed converts a rate multiplier into an engine's words-per-minute value.
func speed(wpm int, rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	s := int(float64(wpm) * rate)
	if s < 80 {
		s = 80
	}
	return s
}
