// Package playback owns the single narration that may be audible at any
// moment. Every Play supersedes the previous utterance before anything new
// is heard.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kidlingo/internal/config"
	"kidlingo/internal/domain/narration"
)

var ErrClosed = errors.New("playback arbiter is closed")

// Synthesizer produces remote narration. Both the in-process gateway and
// its HTTP client satisfy it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req narration.Request) (*narration.Asset, error)
}

// AssetPlayer plays synthesized audio. Play blocks until the audio ends.
type AssetPlayer interface {
	Play(ctx context.Context, asset *narration.Asset) error
	Stop()
}

// VoiceProvider lists the voices installed on this device.
type VoiceProvider interface {
	Voices(ctx context.Context) ([]narration.Voice, error)
}

// Device speaks on-device. Speak blocks until speech ends; a nil voice is the
// engine default.
type Device interface {
	VoiceProvider
	Speak(ctx context.Context, text string, voice *narration.Voice, rate float64) error
	Stop() error
}

// Config is the arbiter's slice of the application configuration.
type Config struct {
	Language         string
	Offline          bool
	WordsPerMinute   int
	SpeakingRate     float64
	MuteWhenDegraded bool
}

func ConfigFrom(c config.Config) Config {
	return Config{
		Language:         c.Language,
		Offline:          c.Playback.Offline,
		WordsPerMinute:   c.Playback.WordsPerMinute,
		SpeakingRate:     c.Playback.SpeakingRate,
		MuteWhenDegraded: c.Playback.MuteWhenDegraded,
	}
}

// Options describe one utterance. Callbacks run on the arbiter's event
// goroutine, one at a time and in order; they may call Play or Cancel but
// must not call Close.
type Options struct {
	Title       string
	Description string
	// Language overrides the configured lesson language.
	Language string
	VoiceID  string
	// Gesture is forwarded to listeners with OnStart.
	Gesture string

	OnPlay  func(Event)
	OnEnd   func(Event)
	OnError func(Event)
}

// Event describes an utterance at a lifecycle transition.
type Event struct {
	UtteranceID string
	Text        string
	Title       string
	Language    string
	Origin      narration.Origin
	Voice       string
	Duration    time.Duration
	Degraded    bool
	Gesture     string
	Err         error
}

// Listener observes every utterance.
type Listener interface {
	OnStart(Event)
	OnEnd(Event)
	OnError(Event)
}

// Session is the utterance currently owned by the arbiter.
type Session struct {
	UtteranceID      string
	StartedAt        time.Time
	ExpectedDuration time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	opts   Options
	ev     Event
}

type utterance struct {
	id       string
	text     string
	language string
	opts     Options
}

func (u utterance) event() Event {
	return Event{
		UtteranceID: u.id,
		Text:        u.text,
		Title:       u.opts.Title,
		Language:    u.language,
		Gesture:     u.opts.Gesture,
	}
}

// Arbiter is the single-flight narration controller.
type Arbiter struct {
	synth   Synthesizer
	player  AssetPlayer
	device  Device
	cfg     Config
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time

	mu        sync.Mutex
	session   *Session
	last      *Session
	closed    bool
	listeners []Listener
	voices    []narration.Voice

	queue      []func()
	notify     chan struct{}
	dispatched chan struct{}
	runs       sync.WaitGroup
}

// NewArbiter wires the remote path (synth and player, either may be nil) and
// the on-device path (device, may be nil).
func NewArbiter(synth Synthesizer, player AssetPlayer, device Device, cfg Config, metrics *Metrics, log logrus.FieldLogger) *Arbiter {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	a := &Arbiter{
		synth:      synth,
		player:     player,
		device:     device,
		cfg:        cfg,
		metrics:    metrics,
		log:        log.WithField("component", "arbiter"),
		now:        time.Now,
		notify:     make(chan struct{}, 1),
		dispatched: make(chan struct{}),
	}
	go a.dispatch()
	return a
}

// AddListener registers l for every following utterance.
func (a *Arbiter) AddListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Play cancels whatever is playing or pending and starts narrating text. It
// returns the new utterance ID without waiting for audio.
func (a *Arbiter) Play(text string, opts Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &narration.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	lang := opts.Language
	if lang == "" {
		lang = a.cfg.Language
	}
	lang, err := narration.CanonicalLanguage(lang)
	if err != nil {
		return "", &narration.ValidationError{Field: "languageHint", Reason: "is not a language tag"}
	}

	u := utterance{id: uuid.NewString(), text: text, language: lang, opts: opts}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		UtteranceID: u.id,
		StartedAt:   a.now(),
		cancel:      cancel,
		done:        make(chan struct{}),
		opts:        opts,
		ev:          u.event(),
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	a.interruptLocked()
	prev := a.last
	a.session, a.last = sess, sess
	a.runs.Add(1)
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{"utterance": u.id, "language": lang, "title": opts.Title}).Debug("play")
	go a.run(ctx, sess, prev, u)
	return u.id, nil
}

// Cancel stops the current utterance, if any. Its OnError fires with
// narration.ErrPlaybackInterrupted.
func (a *Arbiter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interruptLocked()
}

// Session returns the active utterance.
func (a *Arbiter) Session() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return Session{}, false
	}
	return Session{
		UtteranceID:      a.session.UtteranceID,
		StartedAt:        a.session.StartedAt,
		ExpectedDuration: a.session.ExpectedDuration,
	}, true
}

// Close cancels playback, waits for pending events to be delivered and
// stops the event goroutine.
func (a *Arbiter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.interruptLocked()
	a.closed = true
	a.signal()
	a.mu.Unlock()

	a.runs.Wait()
	<-a.dispatched
}

// interruptLocked clears the session, forces the engines to stop and queues
// the interruption event. Must be called with a.mu held.
func (a *Arbiter) interruptLocked() {
	sess := a.session
	if sess == nil {
		return
	}
	a.session = nil
	sess.cancel()
	if a.player != nil {
		a.player.Stop()
	}
	if a.device != nil {
		if err := a.device.Stop(); err != nil {
			a.log.WithError(err).Debug("device stop")
		}
	}
	a.metrics.Interruptions.Inc()

	ev := sess.ev
	ev.Err = narration.ErrPlaybackInterrupted
	a.log.WithField("utterance", ev.UtteranceID).Debug("narration interrupted")
	a.queueErrorLocked(sess, ev)
}

func (a *Arbiter) run(ctx context.Context, sess, prev *Session, u utterance) {
	defer a.runs.Done()
	defer close(sess.done)

	// The previous utterance has been cancelled; wait until its engines have
	// actually gone quiet.
	if prev != nil {
		<-prev.done
	}

	ev := u.event()
	if ctx.Err() != nil {
		a.finish(sess, ev, ctx.Err())
		return
	}

	if a.synth != nil && a.player != nil && !a.cfg.Offline {
		started, err := a.playRemote(ctx, sess, u, &ev)
		if started || ctx.Err() != nil || narration.KindOf(err) == narration.KindValidation {
			a.finish(sess, ev, err)
			return
		}
		a.metrics.DeviceFallbacks.Inc()
		a.log.WithError(err).WithField("utterance", u.id).Warn("remote narration unavailable, using on-device voice")
	}

	err := a.playDevice(ctx, sess, u, &ev)
	a.finish(sess, ev, err)
}

func (a *Arbiter) playRemote(ctx context.Context, sess *Session, u utterance, ev *Event) (bool, error) {
	asset, err := a.synth.Synthesize(ctx, narration.Request{Text: u.text, LanguageHint: u.language, VoiceID: u.opts.VoiceID})
	if err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	ev.Origin = narration.OriginRemote
	ev.Voice = asset.VoiceID
	ev.Duration = asset.Duration
	if ev.Duration <= 0 {
		ev.Duration = EstimateDuration(u.text, a.cfg.WordsPerMinute, a.cfg.SpeakingRate)
	}
	if !a.start(sess, *ev) {
		return true, narration.ErrPlaybackInterrupted
	}
	return true, a.player.Play(ctx, asset)
}

func (a *Arbiter) playDevice(ctx context.Context, sess *Session, u utterance, ev *Event) error {
	ev.Origin = narration.OriginDevice
	if a.device == nil {
		ev.Degraded = true
		a.metrics.Degraded.Inc()
		return &narration.NoCompliantVoiceError{Language: u.language}
	}

	voices, err := a.deviceVoices(ctx)
	if err != nil {
		a.log.WithError(err).Warn("could not list on-device voices")
	}

	sel := SelectVoice(voices, u.language, u.opts.VoiceID)
	if sel.Degraded {
		ev.Degraded = true
		a.metrics.Degraded.Inc()
		a.log.WithError(sel.Err).WithFields(logrus.Fields{
			"utterance": u.id,
			"language":  u.language,
			"degraded":  true,
		}).Warn("no on-device voice speaks the lesson language")
		if a.cfg.MuteWhenDegraded {
			return sel.Err
		}
		ev.Voice = "default"
	} else {
		ev.Voice = sel.Voice.ID
	}

	ev.Duration = EstimateDuration(u.text, a.cfg.WordsPerMinute, a.cfg.SpeakingRate)
	if !a.start(sess, *ev) {
		return narration.ErrPlaybackInterrupted
	}
	return a.device.Speak(ctx, u.text, sel.Voice, a.cfg.SpeakingRate)
}

// deviceVoices lists device voices once and remembers a successful answer.
func (a *Arbiter) deviceVoices(ctx context.Context) ([]narration.Voice, error) {
	a.mu.Lock()
	cached := a.voices
	a.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	voices, err := a.device.Voices(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.voices = voices
	a.mu.Unlock()
	return voices, nil
}

// start marks the session audible and queues OnStart. It reports false when
// the session has already been superseded.
func (a *Arbiter) start(sess *Session, ev Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != sess {
		return false
	}
	sess.StartedAt = a.now()
	sess.ExpectedDuration = ev.Duration
	sess.ev = ev
	a.metrics.Utterances.WithLabelValues(string(ev.Origin)).Inc()

	a.log.WithFields(logrus.Fields{
		"utterance": ev.UtteranceID,
		"origin":    ev.Origin,
		"voice":     ev.Voice,
		"duration":  ev.Duration,
		"degraded":  ev.Degraded,
	}).Info("narration started")

	listeners, onPlay := a.listeners, sess.opts.OnPlay
	a.enqueueLocked(func() {
		for _, l := range listeners {
			l.OnStart(ev)
		}
		if onPlay != nil {
			onPlay(ev)
		}
	})
	return true
}

// finish ends sess with OnEnd or OnError unless it was superseded, in which
// case the interruption has already been reported.
func (a *Arbiter) finish(sess *Session, ev Event, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != sess {
		return
	}
	a.session = nil
	sess.cancel()

	log := a.log.WithField("utterance", ev.UtteranceID)
	if err != nil {
		ev.Err = err
		log.WithError(err).WithField("kind", narration.KindOf(err)).Warn("narration failed")
		a.queueErrorLocked(sess, ev)
		return
	}

	log.Debug("narration finished")
	listeners, onEnd := a.listeners, sess.opts.OnEnd
	a.enqueueLocked(func() {
		for _, l := range listeners {
			l.OnEnd(ev)
		}
		if onEnd != nil {
			onEnd(ev)
		}
	})
}

func (a *Arbiter) queueErrorLocked(sess *Session, ev Event) {
	listeners, onError := a.listeners, sess.opts.OnError
	a.enqueueLocked(func() {
		for _, l := range listeners {
			l.OnError(ev)
		}
		if onError != nil {
			onError(ev)
		}
	})
}

func (a *Arbiter) enqueueLocked(fn func()) {
	a.queue = append(a.queue, fn)
	a.signal()
}

func (a *Arbiter) signal() {
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// dispatch delivers lifecycle callbacks in the order they were queued. It
// drains the queue before exiting on Close.
func (a *Arbiter) dispatch() {
	defer close(a.dispatched)
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.mu.Unlock()
			<-a.notify
			a.mu.Lock()
		}
		batch := a.queue
		a.queue = nil
		closed := a.closed
		a.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}
