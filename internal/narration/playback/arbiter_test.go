package playback

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidlingo/internal/domain/narration"
)

type fakeSynth struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(ctx context.Context, req narration.Request) (*narration.Asset, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &narration.Asset{
		ID:           "asset-" + req.Text,
		Payload:      []byte("mp3"),
		LanguageCode: req.LanguageHint,
		VoiceID:      "en-US-Neural2-F",
		Provider:     "google",
		Duration:     2 * time.Second,
	}, nil
}

// fakePlayer blocks every Play until release is closed or the utterance is
// cancelled, and records how many plays overlapped.
type fakePlayer struct {
	release chan struct{}

	mu         sync.Mutex
	playing    int
	maxPlaying int
	played     []string
}

func newFakePlayer() *fakePlayer { return &fakePlayer{release: make(chan struct{})} }

func (p *fakePlayer) Play(ctx context.Context, a *narration.Asset) error {
	p.mu.Lock()
	p.playing++
	p.maxPlaying = max(p.maxPlaying, p.playing)
	p.played = append(p.played, a.ID)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing--
		p.mu.Unlock()
	}()

	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return narration.ErrPlaybackInterrupted
	}
}

func (p *fakePlayer) Stop() {}

func (p *fakePlayer) overlap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxPlaying
}

type spoken struct {
	text  string
	voice *narration.Voice
}

type fakeDevice struct {
	voices []narration.Voice

	mu     sync.Mutex
	spoken []spoken
}

func (d *fakeDevice) Voices(context.Context) ([]narration.Voice, error) { return d.voices, nil }

func (d *fakeDevice) Speak(_ context.Context, text string, voice *narration.Voice, _ float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spoken = append(d.spoken, spoken{text: text, voice: voice})
	return nil
}

func (d *fakeDevice) Stop() error { return nil }

func (d *fakeDevice) said() []spoken {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.spoken)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]Event
}

func (r *recorder) record(kind string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := kind + ":" + ev.Text
	if ev.Err != nil {
		name += ":" + narration.KindOf(ev.Err)
	}
	r.events = append(r.events, name)
	if r.last == nil {
		r.last = map[string]Event{}
	}
	r.last[kind+":"+ev.Text] = ev
}

func (r *recorder) OnStart(ev Event) { r.record("start", ev) }
func (r *recorder) OnEnd(ev Event)   { r.record("end", ev) }
func (r *recorder) OnError(ev Event) { r.record("error", ev) }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) event(name string) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[name]
}

func (r *recorder) waitFor(t *testing.T, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.ContainsFunc(r.snapshot(), func(e string) bool { return strings.HasPrefix(e, name) })
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s, got %v", name, r.snapshot())
}

func testConfig() Config {
	return Config{Language: "en", WordsPerMinute: 150, SpeakingRate: 1}
}

func newTestArbiter(t *testing.T, synth Synthesizer, player AssetPlayer, device Device, cfg Config) (*Arbiter, *recorder, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	a := NewArbiter(synth, player, device, cfg, NewMetrics(nil), log)
	t.Cleanup(a.Close)
	rec := &recorder{}
	a.AddListener(rec)
	return a, rec, hook
}

func TestPlay_RemoteNarration(t *testing.T) {
	player := newFakePlayer()
	a, rec, _ := newTestArbiter(t, &fakeSynth{}, player, nil, testConfig())

	var played Event
	id, err := a.Play("Hello! I'm Teacher Sam.", Options{Title: "Greetings", Gesture: "wave", OnPlay: func(ev Event) { played = ev }})
	require.NoError(t, err)
	rec.waitFor(t, "start:")

	sess, ok := a.Session()
	require.True(t, ok)
	assert.Equal(t, id, sess.UtteranceID)
	assert.Equal(t, 2*time.Second, sess.ExpectedDuration)

	close(player.release)
	rec.waitFor(t, "end:")

	assert.Equal(t, []string{"start:Hello! I'm Teacher Sam.", "end:Hello! I'm Teacher Sam."}, rec.snapshot())
	assert.Equal(t, narration.OriginRemote, played.Origin)
	assert.Equal(t, "en-US-Neural2-F", played.Voice)
	assert.Equal(t, "wave", played.Gesture)
	assert.Equal(t, "Greetings", played.Title)
	assert.Equal(t, id, played.UtteranceID)

	_, ok = a.Session()
	assert.False(t, ok)
}

func TestPlay_NewerUtteranceSupersedesOlder(t *testing.T) {
	player := newFakePlayer()
	a, rec, _ := newTestArbiter(t, &fakeSynth{}, player, nil, testConfig())

	firstEnded := false
	_, err := a.Play("one", Options{OnEnd: func(Event) { firstEnded = true }})
	require.NoError(t, err)
	rec.waitFor(t, "start:one")

	_, err = a.Play("two", Options{})
	require.NoError(t, err)
	rec.waitFor(t, "start:two")

	close(player.release)
	rec.waitFor(t, "end:two")
	a.Close()

	assert.Equal(t, []string{
		"start:one",
		"error:one:playback_interrupted",
		"start:two",
		"end:two",
	}, rec.snapshot())
	assert.False(t, firstEnded)
	assert.Equal(t, 1, player.overlap(), "two narrations were audible at once")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.Interruptions))
}

func TestPlay_RapidFireOnlyLastIsHeard(t *testing.T) {
	player := newFakePlayer()
	a, rec, _ := newTestArbiter(t, &fakeSynth{}, player, nil, testConfig())

	for _, word := range []string{"red", "blue", "green", "yellow"} {
		_, err := a.Play(word, Options{})
		require.NoError(t, err)
	}
	close(player.release)
	rec.waitFor(t, "end:yellow")

	for _, e := range rec.snapshot() {
		if strings.HasPrefix(e, "end:") {
			assert.Equal(t, "end:yellow", e)
		}
	}
	assert.LessOrEqual(t, player.overlap(), 1)
}

func TestPlay_FallsBackToDeviceVoice(t *testing.T) {
	synth := &fakeSynth{err: &narration.ProviderUnavailableError{}}
	device := &fakeDevice{voices: deviceVoices}
	a, rec, _ := newTestArbiter(t, synth, newFakePlayer(), device, testConfig())

	_, err := a.Play("Hola, amigos", Options{Language: "es"})
	require.NoError(t, err)
	rec.waitFor(t, "end:")

	said := device.said()
	require.Len(t, said, 1)
	require.NotNil(t, said[0].voice)
	assert.Equal(t, "es-ES", said[0].voice.LanguageCode)

	ev := rec.event("start:Hola, amigos")
	assert.Equal(t, narration.OriginDevice, ev.Origin)
	assert.False(t, ev.Degraded)
	assert.Equal(t, EstimateDuration("Hola, amigos", 150, 1), ev.Duration)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.DeviceFallbacks))
}

func TestPlay_NoCompliantVoiceDegrades(t *testing.T) {
	device := &fakeDevice{voices: []narration.Voice{
		{ID: "espanol", Name: "Spanish Teacher", LanguageCode: "en-US"},
		{ID: "fr", Name: "French", LanguageCode: "fr-FR"},
	}}
	cfg := testConfig()
	cfg.Offline = true
	a, rec, hook := newTestArbiter(t, &fakeSynth{}, newFakePlayer(), device, cfg)

	_, err := a.Play("Hola", Options{Language: "es", VoiceID: "espanol"})
	require.NoError(t, err)
	rec.waitFor(t, "end:Hola")

	said := device.said()
	require.Len(t, said, 1)
	assert.Nil(t, said[0].voice, "a voice in another language must not be used")

	ev := rec.event("start:Hola")
	assert.True(t, ev.Degraded)
	assert.Equal(t, "default", ev.Voice)

	flagged := slices.ContainsFunc(hook.AllEntries(), func(e *logrus.Entry) bool {
		return e.Level == logrus.WarnLevel && e.Data["degraded"] == true
	})
	assert.True(t, flagged, "degraded mode must be logged")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.Degraded))
}

func TestPlay_MuteWhenDegraded(t *testing.T) {
	device := &fakeDevice{voices: []narration.Voice{{ID: "en", LanguageCode: "en-US"}}}
	cfg := testConfig()
	cfg.Offline = true
	cfg.MuteWhenDegraded = true
	a, rec, _ := newTestArbiter(t, nil, nil, device, cfg)

	_, err := a.Play("Bonjour", Options{Language: "fr"})
	require.NoError(t, err)
	rec.waitFor(t, "error:Bonjour")

	assert.Empty(t, device.said())
	ev := rec.event("error:Bonjour")
	assert.True(t, ev.Degraded)
	var noVoice *narration.NoCompliantVoiceError
	assert.ErrorAs(t, ev.Err, &noVoice)
}

func TestPlay_NoDeviceAndNoRemote(t *testing.T) {
	a, rec, _ := newTestArbiter(t, &fakeSynth{err: errors.New("offline")}, newFakePlayer(), nil, testConfig())

	_, err := a.Play("Hi", Options{})
	require.NoError(t, err)
	rec.waitFor(t, "error:Hi")
	assert.Equal(t, []string{"error:Hi:no_compliant_voice"}, rec.snapshot())
}

func TestPlay_Validation(t *testing.T) {
	a, _, _ := newTestArbiter(t, &fakeSynth{}, newFakePlayer(), nil, testConfig())

	_, err := a.Play("  \n", Options{})
	assert.Equal(t, narration.KindValidation, narration.KindOf(err))

	_, err = a.Play("Hi", Options{Language: "???"})
	assert.Equal(t, narration.KindValidation, narration.KindOf(err))

	_, ok := a.Session()
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	player := newFakePlayer()
	a, rec, _ := newTestArbiter(t, &fakeSynth{}, player, nil, testConfig())

	_, err := a.Play("Counting to ten", Options{})
	require.NoError(t, err)
	rec.waitFor(t, "start:")

	a.Cancel()
	rec.waitFor(t, "error:")
	_, ok := a.Session()
	assert.False(t, ok)

	a.Cancel() // nothing to cancel
	close(player.release)
	assert.Equal(t, []string{"start:Counting to ten", "error:Counting to ten:playback_interrupted"}, rec.snapshot())
}

func TestCallbacksMayPlay(t *testing.T) {
	player := newFakePlayer()
	close(player.release)
	a, rec, _ := newTestArbiter(t, &fakeSynth{}, player, nil, testConfig())

	_, err := a.Play("first", Options{OnEnd: func(Event) {
		_, _ = a.Play("second", Options{})
	}})
	require.NoError(t, err)
	rec.waitFor(t, "end:second")
}

func TestClose(t *testing.T) {
	a, _, _ := newTestArbiter(t, &fakeSynth{}, newFakePlayer(), nil, testConfig())
	_, err := a.Play("still talking", Options{})
	require.NoError(t, err)

	a.Close()
	a.Close()

	_, err = a.Play("too late", Options{})
	assert.ErrorIs(t, err, ErrClosed)
}
