package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

const maxRequestBytes = 64 << 10

type wireAsset struct {
	ID           string    `json:"id"`
	CacheKey     string    `json:"cacheKey"`
	PayloadRef   string    `json:"payloadRef"`
	Payload      []byte    `json:"payload,omitempty"`
	Encoding     string    `json:"encoding"`
	LanguageCode string    `json:"languageCode"`
	VoiceID      string    `json:"voiceId"`
	Provider     string    `json:"provider"`
	DurationMs   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type narrateResponse struct {
	AudioAsset *wireAsset `json:"audioAsset,omitempty"`
	Error      *wireError `json:"error,omitempty"`
}

func toWire(a *narration.Asset, inline bool) *wireAsset {
	w := &wireAsset{
		ID:           a.ID,
		CacheKey:     a.CacheKey,
		PayloadRef:   "/v1/audio/" + a.ID,
		Encoding:     a.Encoding,
		LanguageCode: a.LanguageCode,
		VoiceID:      a.VoiceID,
		Provider:     a.Provider,
		DurationMs:   a.Duration.Milliseconds(),
		CreatedAt:    a.CreatedAt,
	}
	if inline {
		w.Payload = a.Payload
	}
	return w
}

func (w *wireAsset) asset() *narration.Asset {
	return &narration.Asset{
		ID:           w.ID,
		CacheKey:     w.CacheKey,
		Payload:      w.Payload,
		Encoding:     w.Encoding,
		LanguageCode: w.LanguageCode,
		VoiceID:      w.VoiceID,
		Provider:     w.Provider,
		Duration:     time.Duration(w.DurationMs) * time.Millisecond,
		CreatedAt:    w.CreatedAt,
	}
}

type handler struct {
	gw      *Gateway
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewHandler exposes the gateway over HTTP:
//
//	POST /v1/narrations   synthesize (or fetch from cache) one narration
//	GET  /v1/audio/{id}   raw audio of a cached asset
//	GET  /v1/cache/stats  cache counters
//	GET  /healthz         liveness and provider order
//	GET  /metrics         Prometheus metrics, when gatherer is not nil
func NewHandler(gw *Gateway, gatherer prometheus.Gatherer, timeout time.Duration, log logrus.FieldLogger) http.Handler {
	h := &handler{gw: gw, timeout: timeout, log: log.WithField("component", "http")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/narrations", h.narrate)
	mux.HandleFunc("GET /v1/audio/{id}", h.audio)
	mux.HandleFunc("GET /v1/cache/stats", h.stats)
	mux.HandleFunc("GET /healthz", h.health)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (h *handler) narrate(w http.ResponseWriter, r *http.Request) {
	var req narration.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, &narration.ValidationError{Field: "body", Reason: fmt.Sprintf("is not valid JSON (%v)", err)})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	a, err := h.gw.Synthesize(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	inline := r.URL.Query().Get("inline") != "false"
	writeJSON(w, http.StatusOK, narrateResponse{AudioAsset: toWire(a, inline)})
}

func (h *handler) audio(w http.ResponseWriter, r *http.Request) {
	a, ok := h.gw.Asset(r.PathValue("id"))
	if !ok {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType(a.Encoding))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(a.Payload)
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.Stats())
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": h.gw.Providers(),
	})
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	entry := h.log.WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Warn("narration request failed")
	} else {
		entry.Debug("narration request rejected")
	}
	writeJSON(w, status, narrateResponse{Error: &wireError{Kind: narration.KindOf(err), Message: err.Error()}})
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch narration.KindOf(err) {
	case narration.KindValidation:
		return http.StatusBadRequest
	case narration.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(encoding string) string {
	if encoding == "mp3" {
		return "audio/mpeg"
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
