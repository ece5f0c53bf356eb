package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kidlingo/internal/domain/narration"
)

// Config is loaded once at startup and passed to every component that needs
// it. Nothing reads viper after Load returns.
type Config struct {
	// Version namespaces cached narrations; bump it to bust the cache.
	Version    string           `mapstructure:"version"`
	Language   string           `mapstructure:"language"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Google     GoogleConfig     `mapstructure:"google"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Playback   PlaybackConfig   `mapstructure:"playback"`
	Lessons    LessonsConfig    `mapstructure:"lessons"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GatewayConfig controls the synthesis gateway. Providers are tried strictly
// in the listed order.
type GatewayConfig struct {
	Providers         []string      `mapstructure:"providers"`
	ProviderTimeout   time.Duration `mapstructure:"provider_timeout"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CacheMaxEntries   int           `mapstructure:"cache_max_entries"`
}

// GoogleConfig is the persona used with Google Cloud Text-to-Speech.
type GoogleConfig struct {
	// Voices maps a language tag to a Google voice name.
	Voices       map[string]string `mapstructure:"voices"`
	Gender       string            `mapstructure:"gender"`
	SpeakingRate float64           `mapstructure:"speaking_rate"`
	Pitch        float64           `mapstructure:"pitch"`
}

// ElevenLabsConfig is the same persona expressed in ElevenLabs terms.
type ElevenLabsConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	ModelID  string `mapstructure:"model_id"`
	// Voices maps a persona gender (female, male, neutral) or a voice alias
	// to an ElevenLabs voice ID.
	Voices       map[string]string `mapstructure:"voices"`
	Gender       string            `mapstructure:"gender"`
	Stability    float64           `mapstructure:"stability"`
	Similarity   float64           `mapstructure:"similarity"`
	SpeakingRate float64           `mapstructure:"speaking_rate"`
}

type PlaybackConfig struct {
	// GatewayURL points at a running `kidlingo serve`. When empty the gateway
	// runs in-process.
	GatewayURL       string        `mapstructure:"gateway_url"`
	GatewayTimeout   time.Duration `mapstructure:"gateway_timeout"`
	Offline          bool          `mapstructure:"offline"`
	Device           string        `mapstructure:"device"`
	WordsPerMinute   int           `mapstructure:"words_per_minute"`
	SpeakingRate     float64       `mapstructure:"speaking_rate"`
	MuteWhenDegraded bool          `mapstructure:"mute_when_degraded"`
}

type LessonsConfig struct {
	PackURL  string        `mapstructure:"pack_url"`
	CacheDir string        `mapstructure:"cache_dir"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from path (or the default search path when path
// is empty), the environment and built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kidlingo")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.kidlingo")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("KIDLINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	_ = cfg.normalize()
	return cfg
}

func (c *Config) normalize() error {
	lang, err := narration.CanonicalLanguage(c.Language)
	if err != nil {
		return fmt.Errorf("config: language %q: %w", c.Language, err)
	}
	c.Language = lang

	if c.Gateway.ProviderTimeout <= 0 {
		return fmt.Errorf("config: gateway.provider_timeout must be positive")
	}
	if c.Gateway.CacheMaxEntries < 0 {
		return fmt.Errorf("config: gateway.cache_max_entries must not be negative")
	}
	if c.Playback.SpeakingRate <= 0 || c.Playback.SpeakingRate > 3 {
		return fmt.Errorf("config: playback.speaking_rate must be in (0, 3]")
	}
	if c.ElevenLabs.APIKey == "" {
		c.ElevenLabs.APIKey = lookupEnv("ELEVENLABS_API_KEY")
	}
	return nil
}
