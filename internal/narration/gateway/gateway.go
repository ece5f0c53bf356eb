// Package gateway turns narration requests into cached audio assets. Remote
// providers are tried in a fixed order and the first success is stored.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"kidlingo/internal/config"
	"kidlingo/internal/domain/narration"
	"kidlingo/internal/narration/audio"
	"kidlingo/internal/narration/cache"
	"kidlingo/internal/narration/tts"
)

// Options bound how hard the gateway leans on each provider.
type Options struct {
	ProviderTimeout   time.Duration
	FailureThreshold  int
	Cooldown          time.Duration
	RequestsPerMinute int
}

func OptionsFromConfig(c config.GatewayConfig) Options {
	return Options{
		ProviderTimeout:   c.ProviderTimeout,
		FailureThreshold:  c.FailureThreshold,
		Cooldown:          c.Cooldown,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

type guarded struct {
	tts.Provider
	breaker *breaker
}

// Gateway is safe for concurrent use. Concurrent requests for the same key
// share one synthesis.
type Gateway struct {
	providers []guarded
	store     *cache.Store
	keys      *cache.Normalizer
	opts      Options
	flight    singleflight.Group
	metrics   *Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func New(providers []tts.Provider, store *cache.Store, keys *cache.Normalizer, opts Options, metrics *Metrics, log logrus.FieldLogger) *Gateway {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	g := &Gateway{
		store:   store,
		keys:    keys,
		opts:    opts,
		metrics: metrics,
		log:     log.WithField("component", "gateway"),
		now:     time.Now,
	}
	for _, p := range providers {
		g.providers = append(g.providers, guarded{
			Provider: p,
			breaker:  newBreaker(opts, func() time.Time { return g.now() }),
		})
	}
	return g
}

// Synthesize returns the asset for req, from the cache when possible.
// Identical requests return the same asset for the life of the cache.
func (g *Gateway) Synthesize(ctx context.Context, req narration.Request) (*narration.Asset, error) {
	key, err := g.keys.Key(req)
	if err != nil {
		return nil, err
	}

	if a, ok := g.store.Get(key); ok {
		g.metrics.CacheLookups.WithLabelValues("hit").Inc()
		g.log.WithField("key", key.String()).Debug("cache hit")
		return a, nil
	}
	g.metrics.CacheLookups.WithLabelValues("miss").Inc()

	// The shared synthesis outlives any single caller; each provider call is
	// bounded by its own timeout instead.
	flightCtx := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(flightKey(key), func() (any, error) {
		if a, ok := g.store.Peek(key); ok {
			return a, nil
		}
		return g.synthesize(flightCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*narration.Asset), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Asset looks up a previously synthesized asset by ID.
func (g *Gateway) Asset(id string) (*narration.Asset, bool) {
	return g.store.GetByID(id)
}

func (g *Gateway) Stats() cache.Stats {
	return g.store.Stats()
}

// Providers lists provider names in fallback order.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

func (g *Gateway) synthesize(ctx context.Context, key cache.Key) (*narration.Asset, error) {
	start := time.Now()
	req := tts.Request{Text: key.Text, Language: key.Language, VoiceID: key.Voice}
	log := g.log.WithField("key", key.String())

	var failures []narration.ProviderFailure
	for i, p := range g.providers {
		plog := log.WithField("provider", p.Name())

		if err := p.breaker.allow(); err != nil {
			g.metrics.ProviderCalls.WithLabelValues(p.Name(), "skipped").Inc()
			plog.WithError(err).Debug("provider skipped")
			failures = append(failures, narration.ProviderFailure{Provider: p.Name(), Err: err})
			continue
		}

		res, err := g.call(ctx, p, req)
		if err != nil {
			g.metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
			plog.WithError(err).Warn("speech provider failed")
			if p.breaker.failure() {
				plog.WithField("cooldown", g.opts.Cooldown).Warn("provider cooling down")
			}
			failures = append(failures, narration.ProviderFailure{Provider: p.Name(), Err: err})
			continue
		}

		p.breaker.success()
		g.metrics.ProviderCalls.WithLabelValues(p.Name(), "ok").Inc()
		if i > 0 {
			g.metrics.Fallbacks.Inc()
		}

		a := g.newAsset(key, p.Name(), res)
		g.store.Put(key, a)
		g.metrics.observe(start)

		plog.WithFields(logrus.Fields{
			"asset":    a.ID,
			"voice":    a.VoiceID,
			"duration": a.Duration,
			"attempts": i + 1,
		}).Info("narration synthesized")
		return a, nil
	}

	g.metrics.Unavailable.Inc()
	err := &narration.ProviderUnavailableError{Failures: failures}
	log.WithError(err).Error("no provider could narrate")
	return nil, err
}

func (g *Gateway) call(ctx context.Context, p guarded, req tts.Request) (*tts.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.ProviderTimeout)
	defer cancel()

	res, err := p.Synthesize(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s: %w", g.opts.ProviderTimeout, err)
		}
		return nil, err
	}
	if res == nil || len(res.Audio) == 0 {
		return nil, tts.ErrEmptyAudio
	}
	return res, nil
}

func (g *Gateway) newAsset(key cache.Key, provider string, res *tts.Result) *narration.Asset {
	a := &narration.Asset{
		ID:           uuid.NewString(),
		CacheKey:     key.String(),
		Payload:      res.Audio,
		Encoding:     res.Encoding,
		LanguageCode: key.Language,
		VoiceID:      res.VoiceID,
		Provider:     provider,
		Duration:     res.Duration,
		CreatedAt:    g.now().UTC(),
	}
	if a.Encoding == "" {
		a.Encoding = tts.EncodingMP3
	}
	if lang, err := narration.CanonicalLanguage(res.Language); err == nil && narration.SameLanguage(key.Language, lang) {
		a.LanguageCode = lang
	}
	if a.Duration <= 0 && a.Encoding == tts.EncodingMP3 {
		d, err := audio.Duration(a.Payload)
		if err != nil {
			g.log.WithError(err).WithField("provider", provider).Debug("could not measure narration length")
		}
		a.Duration = d
	}
	return a
}

func flightKey(k cache.Key) string {
	return k.Version + "\x00" + k.Language + "\x00" + k.Voice + "\x00" + k.Text
}
