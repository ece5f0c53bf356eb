package tts

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Mock is a scripted provider. It is used by tests and by the "mock"
// provider type for running the gateway without credentials.
type Mock struct {
	name string

	mu       sync.Mutex
	calls    int
	requests []Request
	fail     error
	delay    time.Duration
	audio    []byte
}

// NewMock creates a provider that answers every request with fake MP3 bytes
// and a duration estimated at 150 words per minute.
func NewMock(name string) *Mock {
	return &Mock{name: name, audio: []byte("ID3-mock-audio")}
}

func (m *Mock) Name() string { return m.name }

// FailWith makes every following call return err. Pass nil to recover.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// SetDelay makes every following call take at least d.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times Synthesize was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns every request received so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *Mock) Synthesize(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	fail, delay, audio := m.fail, m.delay, m.audio
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	words := len(strings.Fields(req.Text))
	return &Result{
		Audio:    append([]byte(nil), audio...),
		Encoding: EncodingMP3,
		VoiceID:  firstNonEmpty(req.VoiceID, m.name+"-voice"),
		Language: req.Language,
		Duration: time.Duration(words) * time.Minute / 150,
	}, nil
}
