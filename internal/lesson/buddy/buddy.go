// Package buddy is the kidlingo application: Teacher Sam reads lessons aloud
// through the playback arbiter, and the same binary can serve the synthesis
// gateway to other devices.
package buddy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"kidlingo/internal/character"
	"kidlingo/internal/cli/scheme/colours"
	"kidlingo/internal/config"
	"kidlingo/internal/domain/lesson"
	"kidlingo/internal/domain/narration"
	"kidlingo/internal/lesson/packs"
	"kidlingo/internal/narration/audio"
	"kidlingo/internal/narration/cache"
	"kidlingo/internal/narration/gateway"
	"kidlingo/internal/narration/playback"
	"kidlingo/internal/narration/tts"
)

const shutdownTimeout = 5 * time.Second

// Buddy is the main application structure. Speech components are built on
// first use so that commands like `lessons` never touch audio hardware or
// provider credentials.
type Buddy struct {
	cfg     config.Config
	log     logrus.FieldLogger
	reg     *prometheus.Registry
	catalog lesson.Catalog
	in      *bufio.Reader
	out     io.Writer

	player    playback.AssetPlayer
	device    playback.Device
	deviceSet bool

	providers []tts.Provider
	gateway   *gateway.Gateway
	arbiter   *playback.Arbiter
	gestures  *character.Scheduler
}

type Option func(*Buddy)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(b *Buddy) {
		b.in = bufio.NewReader(in)
		b.out = out
	}
}

// WithPlayer replaces the speaker used for synthesized audio.
func WithPlayer(p playback.AssetPlayer) Option {
	return func(b *Buddy) { b.player = p }
}

// WithDevice replaces the on-device speech engine. A nil device disables
// on-device narration.
func WithDevice(d playback.Device) Option {
	return func(b *Buddy) {
		b.device = d
		b.deviceSet = true
	}
}

func WithCatalog(c lesson.Catalog) Option {
	return func(b *Buddy) { b.catalog = c }
}

func New(cfg config.Config, log logrus.FieldLogger, opts ...Option) *Buddy {
	b := &Buddy{
		cfg: cfg,
		log: log,
		reg: prometheus.NewRegistry(),
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	// Gesture changes are printed from timer goroutines.
	b.out = &lockedWriter{w: b.out}

	if b.catalog == nil {
		var pack *packs.Cache
		if cfg.Lessons.PackURL != "" {
			pack = packs.NewCache(cfg.Lessons.PackURL, cfg.Lessons.CacheDir, cfg.Lessons.MaxAge, log)
		}
		b.catalog = packs.NewCatalog(pack, log)
	}
	return b
}

// Close stops narration and releases provider connections.
func (b *Buddy) Close() error {
	if b.arbiter != nil {
		b.arbiter.Close()
	}
	if b.gestures != nil {
		b.gestures.Stop()
	}
	return tts.CloseProviders(b.providers)
}

func (b *Buddy) ShowWelcome() {
	fmt.Fprintln(b.out)
	colours.Title.Fprintln(b.out, "🌟 Welcome to KidLingo! 🌟")
	fmt.Fprintln(b.out)
	colours.Info.Fprintln(b.out, "📚 Available commands:")
	fmt.Fprintln(b.out, "  • kidlingo lessons           - Browse lessons")
	fmt.Fprintln(b.out, "  • kidlingo lesson play <id>  - Learn with Teacher Sam")
	fmt.Fprintln(b.out, "  • kidlingo say <text>        - Hear any phrase")
	fmt.Fprintln(b.out, "  • kidlingo voices            - Check the voices on this device")
	fmt.Fprintln(b.out, "  • kidlingo serve             - Run the narration gateway")
	fmt.Fprintln(b.out, "  • kidlingo cache             - Show gateway cache statistics")
	fmt.Fprintln(b.out)
	colours.Prompt.Fprintln(b.out, "✨ Ready to learn some new words? ✨")
}

// ListLessons prints every lesson, optionally only those taught in lang.
func (b *Buddy) ListLessons(ctx context.Context, lang string) error {
	modules, err := b.catalog.Modules(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(b.out)
	colours.Title.Fprintln(b.out, "📚 Available Lessons 📚")
	fmt.Fprintln(b.out)

	count := 0
	for _, m := range modules {
		colours.Info.Fprintf(b.out, "📖 From %s:\n", m.Name)
		for _, l := range m.Lessons {
			if lang != "" && !narration.SameLanguage(lang, l.Language) {
				continue
			}
			count++
			fmt.Fprintf(b.out, "  %d. ", count)
			colours.Lesson.Fprintf(b.out, "%s", l.Title)
			fmt.Fprintf(b.out, "\n     🗣️ Language: %s | 🎯 Age: %s | 💬 Phrases: %d\n", l.Language, l.AgeGroup, len(l.Phrases))
			fmt.Fprintf(b.out, "     💡 %s\n", l.Description)
			colours.Info.Fprintf(b.out, "     ID: %s\n", l.ID)
			fmt.Fprintln(b.out)
		}
	}

	if count == 0 {
		colours.Warning.Fprintln(b.out, "🔍 No lessons found for that language.")
	} else {
		colours.Success.Fprintf(b.out, "✨ Found %d lessons! ✨\n", count)
	}
	return nil
}

// PlayLesson narrates a lesson one phrase at a time. Narration failures are
// reported and the phrase text stays on screen, so a lesson can always be
// finished by reading along.
func (b *Buddy) PlayLesson(ctx context.Context, id string) error {
	modules, err := b.catalog.Modules(ctx)
	if err != nil {
		return err
	}
	l, ok := lesson.Find(modules, id)
	if !ok {
		return fmt.Errorf("lesson %q not found", id)
	}

	arb, err := b.narrator(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(b.out)
	colours.Lesson.Fprintf(b.out, "📖 %s\n", l.Title)
	fmt.Fprintf(b.out, "🗣️ Language: %s | 🎯 Age Group: %s\n", l.Language, l.AgeGroup)
	fmt.Fprintf(b.out, "💡 %s\n", l.Description)
	fmt.Fprintln(b.out)

	for i, p := range l.Phrases {
		colours.Phrase.Fprintf(b.out, "%d. %s\n", i+1, p.Text)
		if p.Translation != "" {
			colours.Translation.Fprintf(b.out, "   %s\n", p.Translation)
		}

		err := b.narrate(ctx, arb, p.Text, playback.Options{
			Title:       l.Title,
			Description: l.Description,
			Language:    l.Language,
			Gesture:     p.Gesture,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			colours.Warning.Fprintf(b.out, "   ⚠️  Could not read this one aloud: %v\n", err)
		}

		if i < len(l.Phrases)-1 {
			colours.Prompt.Fprint(b.out, "⏭️  Press Enter for the next phrase (or 'q' to quit): ")
			if b.quit() {
				colours.Warning.Fprintln(b.out, "👋 See you next time!")
				return nil
			}
		}
	}

	fmt.Fprintln(b.out)
	colours.Success.Fprintf(b.out, "🌟 Great job! You finished %s! 🌟\n", l.Title)
	return nil
}

// Say narrates a single phrase and waits for it to finish.
func (b *Buddy) Say(ctx context.Context, text, lang, voice string) error {
	arb, err := b.narrator(ctx)
	if err != nil {
		return err
	}
	colours.Phrase.Fprintln(b.out, text)
	return b.narrate(ctx, arb, text, playback.Options{
		Language: lang,
		VoiceID:  voice,
		Gesture:  string(character.GestureTalk),
	})
}

// ListVoices prints the on-device voices and which one a lesson in lang
// would use.
func (b *Buddy) ListVoices(ctx context.Context, lang string) error {
	if lang == "" {
		lang = b.cfg.Language
	}
	lang, err := narration.CanonicalLanguage(lang)
	if err != nil {
		return &narration.ValidationError{Field: "language", Reason: "is not a language tag"}
	}

	fmt.Fprintln(b.out)
	colours.Title.Fprintf(b.out, "🎤 Voices on this device for %s 🎤\n", lang)
	fmt.Fprintln(b.out)

	device := b.onDevice()
	if device == nil {
		colours.Warning.Fprintln(b.out, "❌ No on-device speech engine is available.")
		return nil
	}
	voices, err := device.Voices(ctx)
	if err != nil {
		return fmt.Errorf("listing voices: %w", err)
	}

	sel := playback.SelectVoice(voices, lang, "")
	for _, v := range voices {
		mark := "  "
		switch {
		case sel.Voice != nil && sel.Voice.ID == v.ID:
			mark = "★ "
		case narration.SameLanguage(lang, v.LanguageCode):
			mark = "✓ "
		}
		fmt.Fprintf(b.out, "  %s%s\n", mark, v)
	}
	fmt.Fprintln(b.out)

	switch {
	case !sel.Degraded:
		colours.Success.Fprintf(b.out, "✨ %s lessons will use %s\n", lang, sel.Voice)
	case b.cfg.Playback.MuteWhenDegraded:
		colours.Degraded.Fprintf(b.out, "No installed voice speaks %s; on-device narration will stay silent.\n", lang)
	default:
		colours.Degraded.Fprintf(b.out, "No installed voice speaks %s; lessons will use the default voice.\n", lang)
	}
	return nil
}

// CacheStats prints the cache counters of a running gateway. baseURL
// defaults to playback.gateway_url, then to the local server address.
func (b *Buddy) CacheStats(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = b.cfg.Playback.GatewayURL
	}
	if baseURL == "" {
		baseURL = localURL(b.cfg.Server.Addr)
	}

	stats, err := gateway.NewClient(baseURL, b.cfg.Playback.GatewayTimeout, b.log).Stats(ctx)
	if err != nil {
		return err
	}

	colours.Title.Fprintln(b.out, "📊 Narration Cache Status")
	colours.Info.Fprintf(b.out, "🔗 Gateway: %s\n", baseURL)
	colours.Info.Fprintf(b.out, "🎧 Entries: %d\n", stats.Entries)
	if stats.MaxEntries > 0 {
		colours.Info.Fprintf(b.out, "📏 Limit: %d (evicted %d)\n", stats.MaxEntries, stats.Evictions)
	} else {
		colours.Info.Fprintln(b.out, "📏 Limit: none")
	}
	colours.Success.Fprintf(b.out, "✅ Hits: %d | Misses: %d\n", stats.Hits, stats.Misses)
	return nil
}

// Serve runs the synthesis gateway over HTTP until ctx is cancelled.
func (b *Buddy) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", b.cfg.Server.Addr, err)
	}
	return b.serve(ctx, ln)
}

func (b *Buddy) serve(ctx context.Context, ln net.Listener) error {
	gw, err := b.localGateway(ctx)
	if err != nil {
		ln.Close()
		return err
	}
	b.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Handler:      gateway.NewHandler(gw, b.reg, b.cfg.Server.RequestTimeout, b.log),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	b.log.WithFields(logrus.Fields{
		"addr":      ln.Addr().String(),
		"providers": gw.Providers(),
	}).Info("Narration gateway listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	b.log.Info("Shutting down narration gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// narrate plays text and blocks until the utterance ends, fails or ctx is
// cancelled.
func (b *Buddy) narrate(ctx context.Context, arb *playback.Arbiter, text string, opts playback.Options) error {
	done := make(chan error, 1)
	opts.OnPlay = func(ev playback.Event) {
		if ev.Degraded {
			colours.Degraded.Fprintf(b.out, "   (no %s voice on this device, using the default voice)\n", ev.Language)
		}
	}
	opts.OnEnd = func(playback.Event) { done <- nil }
	opts.OnError = func(ev playback.Event) { done <- ev.Err }

	if _, err := arb.Play(text, opts); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		arb.Cancel()
		return ctx.Err()
	}
}

// quit reads one line of input and reports whether the learner asked to
// stop. End of input never quits, so lessons can be piped.
func (b *Buddy) quit() bool {
	line, err := b.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(b.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit":
		return true
	default:
		return false
	}
}

// narrator builds the playback arbiter: remote narration through a gateway
// (in-process, or a server at playback.gateway_url) with the on-device
// engine as fallback.
func (b *Buddy) narrator(ctx context.Context) (*playback.Arbiter, error) {
	if b.arbiter != nil {
		return b.arbiter, nil
	}

	var synth playback.Synthesizer
	switch {
	case b.cfg.Playback.Offline:
		b.log.Debug("Offline mode, narrating on-device only")
	case b.cfg.Playback.GatewayURL != "":
		synth = gateway.NewClient(b.cfg.Playback.GatewayURL, b.cfg.Playback.GatewayTimeout, b.log)
	default:
		gw, err := b.localGateway(ctx)
		if err != nil {
			b.log.WithError(err).Warn("No speech provider available, narrating on-device only")
		} else {
			synth = gw
		}
	}

	device := b.onDevice()
	if synth == nil && device == nil {
		return nil, errors.New("no way to narrate: no speech provider and no on-device speech engine")
	}
	if b.player == nil {
		b.player = audio.NewSpeaker(b.log)
	}

	b.gestures = character.NewScheduler(b.showGesture, b.log)
	b.arbiter = playback.NewArbiter(synth, b.player, device, playback.ConfigFrom(b.cfg), playback.NewMetrics(b.reg), b.log)
	b.arbiter.AddListener(character.NewBridge(b.gestures))
	return b.arbiter, nil
}

func (b *Buddy) localGateway(ctx context.Context) (*gateway.Gateway, error) {
	if b.gateway != nil {
		return b.gateway, nil
	}
	providers, err := tts.NewProviders(ctx, b.cfg, b.log)
	if err != nil {
		return nil, err
	}
	b.providers = providers
	b.gateway = gateway.New(
		providers,
		cache.NewStore(b.cfg.Gateway.CacheMaxEntries, b.log),
		cache.NewNormalizer(b.cfg.Version),
		gateway.OptionsFromConfig(b.cfg.Gateway),
		gateway.NewMetrics(b.reg),
		b.log,
	)
	return b.gateway, nil
}

func (b *Buddy) onDevice() playback.Device {
	if b.deviceSet {
		return b.device
	}
	b.deviceSet = true
	d, err := tts.NewDevice(b.cfg.Playback, b.log)
	if err != nil {
		b.log.WithError(err).Warn("On-device speech unavailable")
		return nil
	}
	b.device = d
	return d
}

func (b *Buddy) showGesture(g character.Gesture) {
	if g == character.GestureIdle {
		return
	}
	colours.Gesture.Fprintf(b.out, "   🧑‍🏫 *%s*\n", g)
}

// localURL turns a listen address like ":8085" into a URL on this host.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
