package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Utterances      *prometheus.CounterVec
	Interruptions   prometheus.Counter
	DeviceFallbacks prometheus.Counter
	Degraded        prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidlingo_utterances_total",
			Help: "Utterances started, by origin.",
		}, []string{"origin"}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "kidlingo_utterance_interruptions_total",
			Help: "Utterances cancelled before they finished.",
		}),
		DeviceFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "kidlingo_device_fallbacks_total",
			Help: "Utterances spoken on-device because remote synthesis failed.",
		}),
		Degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "kidlingo_degraded_voice_total",
			Help: "On-device utterances with no voice matching the requested language.",
		}),
	}
}
