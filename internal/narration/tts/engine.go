package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/config"
)

type ProviderType string

const (
	ProviderTypeGoogle     ProviderType = "google"
	ProviderTypeElevenLabs ProviderType = "elevenlabs"
	ProviderTypeMock       ProviderType = "mock"
)

type DeviceType string

const (
	DeviceTypeAuto   DeviceType = "auto" // best engine for the platform
	DeviceTypeESpeak DeviceType = "espeak"
	DeviceTypeSay    DeviceType = "say"  // macOS only
	DeviceTypeSAPI   DeviceType = "sapi" // Windows only
	DeviceTypeNone   DeviceType = "none"
)

// NewProviders builds the remote providers listed in cfg.Gateway.Providers,
// keeping their order. A provider that cannot be constructed (missing
// credentials, for example) is skipped with a warning; it is an error only
// when none is left.
func NewProviders(ctx context.Context, cfg config.Config, log logrus.FieldLogger) ([]Provider, error) {
	var (
		providers []Provider
		errs      []error
	)
	for _, name := range cfg.Gateway.Providers {
		p, err := newProvider(ctx, ProviderType(strings.ToLower(name)), cfg, log)
		if err != nil {
			log.WithError(err).WithField("provider", name).Warn("speech provider disabled")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no speech providers configured")
		}
		return nil, fmt.Errorf("no usable speech providers: %w", errors.Join(errs...))
	}
	return providers, nil
}

func newProvider(ctx context.Context, t ProviderType, cfg config.Config, log logrus.FieldLogger) (Provider, error) {
	switch t {
	case ProviderTypeGoogle:
		if !hasGoogleCredentials() {
			log.Debug("GOOGLE_APPLICATION_CREDENTIALS not set, relying on default credentials")
		}
		return newGoogle(ctx, cfg.Google, log)
	case ProviderTypeElevenLabs:
		return newElevenLabs(cfg.ElevenLabs, log)
	case ProviderTypeMock:
		return NewMock(string(ProviderTypeMock)), nil
	default:
		return nil, fmt.Errorf("unsupported speech provider: %s", t)
	}
}

// CloseProviders releases providers that hold connections.
func CloseProviders(providers []Provider) error {
	var errs []error
	for _, p := range providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// NewDevice creates the on-device engine named by cfg.Device.
func NewDevice(cfg config.PlaybackConfig, log logrus.FieldLogger) (Device, error) {
	t := DeviceType(strings.ToLower(cfg.Device))
	if t == DeviceTypeAuto || t == "" {
		t = bestDeviceForPlatform()
	}

	switch t {
	case DeviceTypeESpeak:
		return newESpeak(cfg.WordsPerMinute, log)
	case DeviceTypeSay:
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("say device only supports macOS")
		}
		return newSay(cfg.WordsPerMinute, log)
	case DeviceTypeSAPI:
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("SAPI device only supports Windows")
		}
		return newSAPI(log)
	case DeviceTypeNone:
		return nil, ErrNotAvailable
	default:
		return nil, fmt.Errorf("unsupported speech device: %s", t)
	}
}

func bestDeviceForPlatform() DeviceType {
	switch runtime.GOOS {
	case "windows":
		return DeviceTypeSAPI
	case "darwin":
		return DeviceTypeSay
	default:
		return DeviceTypeESpeak
	}
}

func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
