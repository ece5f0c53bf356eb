package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "1")
	v.SetDefault("language", "en")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8085")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 25*time.Second)

	v.SetDefault("gateway.providers", []string{"google", "elevenlabs"})
	v.SetDefault("gateway.provider_timeout", 8*time.Second)
	v.SetDefault("gateway.failure_threshold", 3)
	v.SetDefault("gateway.cooldown", 30*time.Second)
	v.SetDefault("gateway.requests_per_minute", 120)
	v.SetDefault("gateway.cache_max_entries", 0) // unbounded

	// Slower speech and a friendly persona for young listeners.
	v.SetDefault("google.voices", map[string]string{
		"en": "en-US-Neural2-F",
		"es": "es-US-Neural2-A",
		"fr": "fr-FR-Neural2-A",
	})
	v.SetDefault("google.gender", "female")
	v.SetDefault("google.speaking_rate", 0.85)
	v.SetDefault("google.pitch", 2.0)

	v.SetDefault("elevenlabs.api_key", "")
	v.SetDefault("elevenlabs.endpoint", "https://api.elevenlabs.io/v1")
	v.SetDefault("elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("elevenlabs.voices", map[string]string{
		"female":  "EXAVITQu4vr4xnSDxMaL", // Bella
		"male":    "TxGEqnHWrfWFTfGW9XjX", // Josh
		"neutral": "21m00Tcm4TlvDq8ikWAM", // Rachel
	})
	v.SetDefault("elevenlabs.gender", "female")
	v.SetDefault("elevenlabs.stability", 0.6)
	v.SetDefault("elevenlabs.similarity", 0.75)
	v.SetDefault("elevenlabs.speaking_rate", 0.85)

	v.SetDefault("playback.gateway_url", "")
	v.SetDefault("playback.gateway_timeout", 30*time.Second)
	v.SetDefault("playback.offline", false)
	v.SetDefault("playback.device", "auto")
	v.SetDefault("playback.words_per_minute", 150)
	v.SetDefault("playback.speaking_rate", 0.85)
	v.SetDefault("playback.mute_when_degraded", false)

	v.SetDefault("lessons.pack_url", "")
	v.SetDefault("lessons.cache_dir", "./cache")
	v.SetDefault("lessons.max_age", 24*time.Hour)
}

func lookupEnv(key string) string {
	val, _ := os.LookupEnv(key)
	return val
}
